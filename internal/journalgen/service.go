// Package journalgen generates guided journals and coaching reports.
package journalgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/llm"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

// JournalStore persists journals. Lookups return an apperr NotFound when
// nothing matches and Validation for an id that cannot exist.
type JournalStore interface {
	CreateJournal(ctx context.Context, j *models.Journal) error
	GetJournal(ctx context.Context, id string) (*models.Journal, error)
	ListJournals(ctx context.Context) ([]models.Journal, error)
	ListJournalsByClient(ctx context.Context, clientID string) ([]models.Journal, error)
	UpdateResponses(ctx context.Context, id string, responses [][]string) error
	FindJournalByIdempotencyKey(ctx context.Context, clientID, key string) (*models.Journal, error)
}

type ClientGetter interface {
	GetClient(ctx context.Context, id string) (*models.Client, error)
}

type Config struct {
	JournalModel      string
	ReportModel       string
	JournalMaxTokens  int
	ReportMaxTokens   int
	ReportTemperature float32
	Policy            PromptPolicy
}

type Service struct {
	cfg      Config
	agg      *Aggregator
	gen      llm.Generator
	journals JournalStore
	clients  ClientGetter
	events   events.Publisher
	log      *logger.Logger
	now      func() time.Time
}

func NewService(cfg Config, agg *Aggregator, gen llm.Generator, journals JournalStore, clients ClientGetter, pub events.Publisher, log *logger.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyPad
	}
	return &Service{
		cfg:      cfg,
		agg:      agg,
		gen:      gen,
		journals: journals,
		clients:  clients,
		events:   pub,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateRequest struct {
	Topic          string
	Background     string
	BookingLink    string
	ClientID       string
	IdempotencyKey string
}

// CreateJournal runs the full generation pipeline and stores the result. The
// bool is false when an earlier journal with the same idempotency key was
// returned instead.
func (s *Service) CreateJournal(ctx context.Context, id auth.Identity, req CreateRequest) (*models.Journal, bool, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, false, err
	}
	req.Topic = strings.TrimSpace(req.Topic)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.Topic == "" {
		return nil, false, apperr.Newf(apperr.Validation, "Missing or invalid \"topic\".")
	}
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, false, apperr.Newf(apperr.Validation, "Missing or invalid \"clientId\".")
	}

	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, false, clientLookupErr(err)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.journals.FindJournalByIdempotencyKey(ctx, client.ID, req.IdempotencyKey)
		switch {
		case err == nil:
			return existing, false, nil
		case !apperr.IsKind(err, apperr.NotFound):
			return nil, false, persistenceErr(err)
		}
	}

	pc, err := s.agg.Build(ctx, client, req.Background)
	if err != nil {
		return nil, false, persistenceErr(err)
	}
	system, user := JournalPrompts(pc, req.Topic)

	raw, err := s.generate(ctx, intentJournal, llm.Request{
		System:    system,
		User:      user,
		Model:     s.cfg.JournalModel,
		MaxTokens: s.cfg.JournalMaxTokens,
	})
	if err != nil {
		return nil, false, err
	}

	parsed, err := ParseJournal(raw, s.cfg.Policy)
	if err != nil {
		s.logGenerationFailure(intentJournal, err)
		return nil, false, err
	}
	recordRepairs(parsed.Repairs)

	now := s.now()
	journal := &models.Journal{
		CreatedAt:       now,
		UpdatedAt:       now,
		Topic:           req.Topic,
		Title:           parsed.Title,
		Description:     parsed.Description,
		OwnerID:         id.Name(),
		ClientID:        client.ID,
		BookingLink:     strings.TrimSpace(req.BookingLink),
		TableOfContents: parsed.TableOfContents,
		Responses:       [][]string{},
		IdempotencyKey:  req.IdempotencyKey,
	}
	if err := s.journals.CreateJournal(ctx, journal); err != nil {
		// A concurrent request with the same key won the insert.
		if req.IdempotencyKey != "" && apperr.IsKind(err, apperr.Conflict) {
			if existing, findErr := s.journals.FindJournalByIdempotencyKey(ctx, client.ID, req.IdempotencyKey); findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, persistenceErr(err)
	}

	s.log.Info("journal created",
		"journal_id", journal.ID.Hex(),
		"client_id", client.ID,
		"sections", len(journal.TableOfContents),
		"background_source", string(pc.Source),
		"closing_added", parsed.Repairs.ClosingAdded,
	)
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeJournalCreated,
		JournalID: journal.ID.Hex(),
		ClientID:  client.ID,
		Title:     journal.Title,
	})
	return journal, true, nil
}

// GenerateReport produces a free-text report for a journal. A nil answers
// matrix falls back to the stored responses.
func (s *Service) GenerateReport(ctx context.Context, id auth.Identity, journalID string, answers [][]string) (string, error) {
	journal, err := s.Get(ctx, id, journalID)
	if err != nil {
		return "", err
	}
	if answers == nil {
		answers = journal.Responses
	}

	client, err := s.clients.GetClient(ctx, journal.ClientID)
	if err != nil {
		return "", clientLookupErr(err)
	}

	pc, err := s.agg.Build(ctx, client, "")
	if err != nil {
		return "", persistenceErr(err)
	}
	system, user := ReportPrompts(pc, journal, answers)

	temp := s.cfg.ReportTemperature
	report, err := s.generate(ctx, intentReport, llm.Request{
		System:      system,
		User:        user,
		Model:       s.cfg.ReportModel,
		MaxTokens:   s.cfg.ReportMaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}

	s.log.Info("report generated", "journal_id", journalID, "client_id", client.ID, "chars", len(report))
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeReportGenerated,
		JournalID: journalID,
		ClientID:  client.ID,
		Title:     journal.Title,
	})
	return report, nil
}

// Get loads a journal the caller is allowed to see.
func (s *Service) Get(ctx context.Context, id auth.Identity, journalID string) (*models.Journal, error) {
	if !id.Authenticated() {
		return nil, apperr.Newf(apperr.Unauthenticated, "Authentication required.")
	}
	journal, err := s.journals.GetJournal(ctx, journalID)
	if err != nil {
		return nil, journalLookupErr(err)
	}
	if err := auth.CanAccessJournal(id, journal); err != nil {
		return nil, err
	}
	return journal, nil
}

// List returns every journal, newest first. Admin only.
func (s *Service) List(ctx context.Context, id auth.Identity) ([]models.Journal, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, err
	}
	journals, err := s.journals.ListJournals(ctx)
	if err != nil {
		return nil, persistenceErr(err)
	}
	return journals, nil
}

func (s *Service) ListForClient(ctx context.Context, id auth.Identity, clientID string) ([]models.Journal, error) {
	if err := auth.CanAccessClient(id, clientID); err != nil {
		return nil, err
	}
	journals, err := s.journals.ListJournalsByClient(ctx, clientID)
	if err != nil {
		return nil, persistenceErr(err)
	}
	return journals, nil
}

// SaveResponses stores the answer matrix. It may cover fewer sections or
// prompts than the journal has, never more.
func (s *Service) SaveResponses(ctx context.Context, id auth.Identity, journalID string, responses [][]string) error {
	journal, err := s.Get(ctx, id, journalID)
	if err != nil {
		return err
	}
	if err := CheckResponses(journal, responses); err != nil {
		return err
	}
	if err := s.journals.UpdateResponses(ctx, journalID, responses); err != nil {
		return journalLookupErr(err)
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeResponsesSaved,
		JournalID: journalID,
		ClientID:  journal.ClientID,
	})
	return nil
}

// CheckResponses rejects an answer matrix larger than the journal's shape.
func CheckResponses(j *models.Journal, responses [][]string) error {
	if len(responses) > len(j.TableOfContents) {
		return apperr.Newf(apperr.Validation, "\"responses\" has %d sections but the journal has %d.", len(responses), len(j.TableOfContents))
	}
	for i, row := range responses {
		if want := len(j.TableOfContents[i].Prompts); len(row) > want {
			return apperr.Newf(apperr.Validation, "\"responses[%d]\" has %d answers but the section has %d prompts.", i, len(row), want)
		}
	}
	return nil
}

func (s *Service) generate(ctx context.Context, intent string, req llm.Request) (string, error) {
	start := time.Now()
	text, err := s.gen.Generate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	generationDuration.WithLabelValues(intent, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.New(apperr.GenerationUnavailable, "generation failed", err)
		}
		s.logGenerationFailure(intent, err)
		return "", err
	}
	return text, nil
}

func (s *Service) logGenerationFailure(intent string, err error) {
	kind := apperr.KindOf(err)
	generationFailures.WithLabelValues(intent, string(kind)).Inc()

	var malformed *MalformedOutput
	if errors.As(err, &malformed) {
		s.log.Error("model returned malformed output", "intent", intent, "error", err, "raw", malformed.Raw)
		return
	}
	s.log.Error("generation failed", "intent", intent, "kind", string(kind), "error", err)
}

func clientLookupErr(err error) error {
	if apperr.IsKind(err, apperr.NotFound) {
		return apperr.New(apperr.NotFound, "Client not found.", err)
	}
	if apperr.IsKind(err, apperr.Validation) {
		return apperr.New(apperr.Validation, "Missing or invalid \"clientId\".", err)
	}
	return persistenceErr(err)
}

func journalLookupErr(err error) error {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		return apperr.New(apperr.NotFound, "Journal not found.", err)
	case apperr.Validation:
		return apperr.New(apperr.Validation, "Invalid journal ID.", err)
	}
	return persistenceErr(err)
}

func persistenceErr(err error) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.New(apperr.Persistence, "datastore error", fmt.Errorf("journalgen: %w", err))
}
