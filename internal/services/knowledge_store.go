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

const knowledgeCollection = "knowledge_docs"

// KnowledgeStore keeps knowledge document metadata in MongoDB. File bodies
// live in the file store.
type KnowledgeStore struct {
	col *mongo.Collection
}

func NewKnowledgeStore(db *mongo.Database) *KnowledgeStore {
	return &KnowledgeStore{col: db.Collection(knowledgeCollection)}
}

func (s *KnowledgeStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uploaded_at", Value: -1}},
		Options: options.Index().SetName("idx_uploaded_at"),
	})
	return err
}

func (s *KnowledgeStore) CreateKnowledgeDoc(ctx context.Context, d *models.KnowledgeDoc) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	_, err := s.col.InsertOne(ctx, d)
	return err
}

// ListKnowledgeDocs returns documents most recently uploaded first.
func (s *KnowledgeStore) ListKnowledgeDocs(ctx context.Context) ([]models.KnowledgeDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	docs := []models.KnowledgeDoc{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *KnowledgeStore) GetKnowledgeDoc(ctx context.Context, id string) (*models.KnowledgeDoc, error) {
	oid, err := parseObjectID(id, "document")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var d models.KnowledgeDoc
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Newf(apperr.NotFound, "Document not found.")
		}
		return nil, err
	}
	return &d, nil
}

func (s *KnowledgeStore) DeleteKnowledgeDoc(ctx context.Context, id string) error {
	oid, err := parseObjectID(id, "document")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.Newf(apperr.NotFound, "Document not found.")
	}
	return nil
}
