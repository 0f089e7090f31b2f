// Package testutil holds in-memory stand-ins for the datastores, file store,
// mailer and model client.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
)

// ClientStore keeps clients in a map keyed by id.
type ClientStore struct {
	mu      sync.Mutex
	clients map[string]*models.Client
}

func NewClientStore() *ClientStore {
	return &ClientStore{clients: make(map[string]*models.Client)}
}

func copyClient(c *models.Client) *models.Client {
	cp := *c
	cp.FileUploads = append([]models.ClientFile{}, c.FileUploads...)
	cp.Notes = append([]models.ClientNote(nil), c.Notes...)
	return &cp
}

// Put inserts or replaces a client as is.
func (s *ClientStore) Put(c *models.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.clients[c.ID] = copyClient(c)
}

func (s *ClientStore) CreateClient(ctx context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.clients {
		if strings.EqualFold(existing.Email, c.Email) {
			return apperr.Newf(apperr.Conflict, "A client with this email already exists.")
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.clients[c.ID] = copyClient(c)
	return nil
}

func (s *ClientStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "Client not found.")
	}
	return copyClient(c), nil
}

func (s *ClientStore) FindClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	return s.find(func(c *models.Client) bool { return strings.EqualFold(c.Email, email) })
}

func (s *ClientStore) FindClientByInviteToken(ctx context.Context, token string) (*models.Client, error) {
	return s.find(func(c *models.Client) bool { return token != "" && c.InviteToken == token })
}

func (s *ClientStore) find(match func(*models.Client) bool) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if match(c) {
			return copyClient(c), nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "Client not found.")
}

func (s *ClientStore) ListClients(ctx context.Context) ([]models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *copyClient(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (s *ClientStore) UpdateClient(ctx context.Context, id string, u models.ClientUpdate) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "Client not found.")
	}
	if u.Email != nil {
		for _, other := range s.clients {
			if other.ID != id && strings.EqualFold(other.Email, *u.Email) {
				return nil, apperr.Newf(apperr.Conflict, "A client with this email already exists.")
			}
		}
		c.Email = *u.Email
	}
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		c.LastName = *u.LastName
	}
	if u.Gender != nil {
		c.Gender = *u.Gender
	}
	if u.DateOfBirth != nil {
		c.DateOfBirth = u.DateOfBirth
	}
	if u.Background != nil {
		c.Background = *u.Background
	}
	c.UpdatedAt = time.Now().UTC()
	return copyClient(c), nil
}

func (s *ClientStore) ActivateClient(ctx context.Context, id, token, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok || token == "" || c.InviteToken != token {
		return apperr.Newf(apperr.NotFound, "Client not found.")
	}
	c.PasswordHash = passwordHash
	c.IsActive = true
	c.InviteToken = ""
	c.InviteIssuedAt = nil
	return nil
}

func (s *ClientStore) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return apperr.Newf(apperr.NotFound, "Client not found.")
	}
	delete(s.clients, id)
	return nil
}

func (s *ClientStore) AddClientFile(ctx context.Context, id string, f models.ClientFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return apperr.Newf(apperr.NotFound, "Client not found.")
	}
	c.FileUploads = append(c.FileUploads, f)
	return nil
}

func (s *ClientStore) AddClientNote(ctx context.Context, id, body string) (*models.ClientNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "Client not found.")
	}
	note := models.ClientNote{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Body: body}
	c.Notes = append(c.Notes, note)
	return &note, nil
}

// JournalStore keeps journals in insertion order.
type JournalStore struct {
	mu       sync.Mutex
	journals []*models.Journal
	// FailCreate makes CreateJournal return this error.
	FailCreate error
}

func NewJournalStore() *JournalStore { return &JournalStore{} }

func copyJournal(j *models.Journal) *models.Journal {
	cp := *j
	cp.TableOfContents = append([]models.Section(nil), j.TableOfContents...)
	cp.Responses = append([][]string(nil), j.Responses...)
	return &cp
}

func (s *JournalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.journals)
}

func (s *JournalStore) CreateJournal(ctx context.Context, j *models.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	if j.IdempotencyKey != "" {
		for _, existing := range s.journals {
			if existing.ClientID == j.ClientID && existing.IdempotencyKey == j.IdempotencyKey {
				return apperr.Newf(apperr.Conflict, "duplicate idempotency key")
			}
		}
	}
	if j.ID.IsZero() {
		j.ID = primitive.NewObjectID()
	}
	s.journals = append(s.journals, copyJournal(j))
	return nil
}

func (s *JournalStore) GetJournal(ctx context.Context, id string) (*models.Journal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "Invalid journal ID.", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journals {
		if j.ID == oid {
			return copyJournal(j), nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "Journal not found.")
}

func (s *JournalStore) ListJournals(ctx context.Context) ([]models.Journal, error) {
	return s.list(func(*models.Journal) bool { return true }), nil
}

func (s *JournalStore) ListJournalsByClient(ctx context.Context, clientID string) ([]models.Journal, error) {
	return s.list(func(j *models.Journal) bool { return j.ClientID == clientID }), nil
}

// list returns matches newest first.
func (s *JournalStore) list(match func(*models.Journal) bool) []models.Journal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Journal{}
	for i := len(s.journals) - 1; i >= 0; i-- {
		if match(s.journals[i]) {
			out = append(out, *copyJournal(s.journals[i]))
		}
	}
	return out
}

func (s *JournalStore) UpdateResponses(ctx context.Context, id string, responses [][]string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.New(apperr.Validation, "Invalid journal ID.", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journals {
		if j.ID == oid {
			j.Responses = responses
			j.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return apperr.Newf(apperr.NotFound, "Journal not found.")
}

func (s *JournalStore) FindJournalByIdempotencyKey(ctx context.Context, clientID, key string) (*models.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journals {
		if j.ClientID == clientID && j.IdempotencyKey == key {
			return copyJournal(j), nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "Journal not found.")
}

// KnowledgeStore keeps knowledge documents in memory.
type KnowledgeStore struct {
	mu   sync.Mutex
	docs []models.KnowledgeDoc
	// FailList makes ListKnowledgeDocs return this error.
	FailList error
	// FailDelete makes DeleteKnowledgeDoc return this error.
	FailDelete error
}

func NewKnowledgeStore() *KnowledgeStore { return &KnowledgeStore{} }

func (s *KnowledgeStore) CreateKnowledgeDoc(ctx context.Context, d *models.KnowledgeDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	s.docs = append(s.docs, *d)
	return nil
}

func (s *KnowledgeStore) ListKnowledgeDocs(ctx context.Context) ([]models.KnowledgeDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != nil {
		return nil, s.FailList
	}
	out := append([]models.KnowledgeDoc(nil), s.docs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *KnowledgeStore) GetKnowledgeDoc(ctx context.Context, id string) (*models.KnowledgeDoc, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "Invalid document ID.", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == oid {
			cp := d
			return &cp, nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "Document not found.")
}

func (s *KnowledgeStore) DeleteKnowledgeDoc(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.New(apperr.Validation, "Invalid document ID.", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return s.FailDelete
	}
	for i, d := range s.docs {
		if d.ID == oid {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return apperr.Newf(apperr.NotFound, "Document not found.")
}

func (s *ClientStore) SetInviteToken(ctx context.Context, id, token string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok || c.IsActive {
		return apperr.Newf(apperr.NotFound, "no pending invitation for client")
	}
	c.InviteToken = token
	c.InviteIssuedAt = &issuedAt
	return nil
}
