package services

import (
	"context"
	"strings"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/internal/storage"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

type KnowledgeRepository interface {
	CreateKnowledgeDoc(ctx context.Context, d *models.KnowledgeDoc) error
	ListKnowledgeDocs(ctx context.Context) ([]models.KnowledgeDoc, error)
	GetKnowledgeDoc(ctx context.Context, id string) (*models.KnowledgeDoc, error)
	DeleteKnowledgeDoc(ctx context.Context, id string) error
}

// KnowledgeService manages the documents that ground every generation call.
type KnowledgeService struct {
	store  KnowledgeRepository
	files  storage.FileStore
	events events.Publisher
	log    *logger.Logger
}

func NewKnowledgeService(store KnowledgeRepository, files storage.FileStore, pub events.Publisher, log *logger.Logger) *KnowledgeService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &KnowledgeService{store: store, files: files, events: pub, log: log}
}

// Upload stores the file and records it. name defaults to the original filename.
func (s *KnowledgeService) Upload(ctx context.Context, name string, up *Upload) (*models.KnowledgeDoc, error) {
	if up == nil {
		return nil, apperr.Newf(apperr.Validation, "No file uploaded.")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = up.Filename
	}

	locator, err := s.files.Save(ctx, up.Filename, up.Body)
	if err != nil {
		return nil, err
	}
	doc := &models.KnowledgeDoc{Name: name, FileURL: locator}
	if err := s.store.CreateKnowledgeDoc(ctx, doc); err != nil {
		_ = s.files.Delete(ctx, locator)
		return nil, err
	}

	s.log.Info("knowledge document uploaded", "doc_id", doc.ID.Hex(), "name", name)
	s.events.Publish(ctx, events.Event{Type: events.TypeKnowledgeChanged, Title: name})
	return doc, nil
}

func (s *KnowledgeService) List(ctx context.Context) ([]models.KnowledgeDoc, error) {
	return s.store.ListKnowledgeDocs(ctx)
}

// Delete removes the record, then its file. The file stays when the record
// cannot be removed; a missing file is ignored.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	doc, err := s.store.GetKnowledgeDoc(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteKnowledgeDoc(ctx, id); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.FileURL); err != nil {
		s.log.Warn("failed to delete knowledge file", "doc_id", id, "error", err)
	}
	s.events.Publish(ctx, events.Event{Type: events.TypeKnowledgeChanged, Title: doc.Name})
	return nil
}
