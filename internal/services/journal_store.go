package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
)

const journalsCollection = "journals"

// JournalStore keeps journals in MongoDB.
type JournalStore struct {
	col *mongo.Collection
}

func NewJournalStore(db *mongo.Database) *JournalStore {
	return &JournalStore{col: db.Collection(journalsCollection)}
}

// EnsureIndexes is called on startup after Mongo has connected.
func (s *JournalStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_client_created"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created"),
		},
		{
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "idempotency_key", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_client_idempotency_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
		},
	}

	for _, m := range indexes {
		if _, err := s.col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *JournalStore) CreateJournal(ctx context.Context, j *models.Journal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if j.ID.IsZero() {
		j.ID = primitive.NewObjectID()
	}
	if j.Responses == nil {
		j.Responses = [][]string{}
	}
	if _, err := s.col.InsertOne(ctx, j); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.New(apperr.Conflict, "journal already exists", err)
		}
		return err
	}
	return nil
}

func (s *JournalStore) GetJournal(ctx context.Context, id string) (*models.Journal, error) {
	oid, err := parseObjectID(id, "journal")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var j models.Journal
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&j); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Newf(apperr.NotFound, "Journal not found.")
		}
		return nil, err
	}
	return &j, nil
}

func (s *JournalStore) ListJournals(ctx context.Context) ([]models.Journal, error) {
	return s.find(ctx, bson.M{})
}

func (s *JournalStore) ListJournalsByClient(ctx context.Context, clientID string) ([]models.Journal, error) {
	return s.find(ctx, bson.M{"client_id": clientID})
}

func (s *JournalStore) find(ctx context.Context, filter bson.M) ([]models.Journal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	journals := []models.Journal{}
	if err := cur.All(ctx, &journals); err != nil {
		return nil, err
	}
	return journals, nil
}

func (s *JournalStore) UpdateResponses(ctx context.Context, id string, responses [][]string) error {
	oid, err := parseObjectID(id, "journal")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"responses": responses, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.Newf(apperr.NotFound, "Journal not found.")
	}
	return nil
}

func (s *JournalStore) FindJournalByIdempotencyKey(ctx context.Context, clientID, key string) (*models.Journal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var j models.Journal
	err := s.col.FindOne(ctx, bson.M{"client_id": clientID, "idempotency_key": key}).Decode(&j)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Newf(apperr.NotFound, "Journal not found.")
		}
		return nil, err
	}
	return &j, nil
}

func parseObjectID(id, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.Validation, "Invalid "+what+" ID.", err)
	}
	return oid, nil
}
