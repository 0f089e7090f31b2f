// Package app connects the datastores and builds the services shared by the
// HTTP server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/internal/config"
	"github.com/AnshRaj112/journeygen-backend/internal/database"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/journalgen"
	"github.com/AnshRaj112/journeygen-backend/internal/llm"
	"github.com/AnshRaj112/journeygen-backend/internal/mailer"
	"github.com/AnshRaj112/journeygen-backend/internal/services"
	"github.com/AnshRaj112/journeygen-backend/internal/storage"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
	"github.com/AnshRaj112/journeygen-backend/pkg/utils"
)

type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Files     storage.FileStore
	UploadDir string // set when files live on local disk
	Hub       *events.Hub
	Events    events.Publisher
	Guard     *auth.Guard
	Journals  *journalgen.Service
	Clients   *services.ClientService
	Knowledge *services.KnowledgeService

	redisBus *events.RedisBus
}

// New connects MongoDB and PostgreSQL (both required) and Redis (optional),
// then wires every service.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Hub: events.NewHub()}

	cipher, err := fieldCipher(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := database.Connect(cfg.MongoURI, log); err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := database.ConnectPostgres(cfg.PostgresURI, log); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.ConnectRedis(cfg.RedisURI, log); err != nil {
		log.Warn("redis unavailable, using in-process events and rate limits", "error", err)
	}

	journalStore := services.NewJournalStore(database.DB)
	knowledgeStore := services.NewKnowledgeStore(database.DB)
	clientStore := services.NewClientStore(database.PostgresDB, cipher)
	if err := journalStore.EnsureIndexes(ctx); err != nil {
		log.Warn("failed to ensure journal indexes", "error", err)
	}
	if err := knowledgeStore.EnsureIndexes(ctx); err != nil {
		log.Warn("failed to ensure knowledge indexes", "error", err)
	}

	if a.Files, a.UploadDir, err = fileStore(cfg, log); err != nil {
		return nil, err
	}
	if database.RedisClient != nil {
		a.Files = services.NewCachedFileStore(a.Files, database.RedisClient, log)
	}

	a.Events = events.LocalBus{Hub: a.Hub}
	if database.RedisClient != nil {
		a.redisBus = events.NewRedisBus(database.RedisClient, a.Hub, log)
		a.Events = a.redisBus
	}

	gen, err := generator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	journalModel, reportModel := cfg.Models()
	agg := journalgen.NewAggregator(knowledgeStore, a.Files, cfg.DefaultBackgroundFile, log)
	a.Journals = journalgen.NewService(journalgen.Config{
		JournalModel:      journalModel,
		ReportModel:       reportModel,
		JournalMaxTokens:  cfg.JournalMaxTokens,
		ReportMaxTokens:   cfg.ReportMaxTokens,
		ReportTemperature: cfg.ReportTemperature,
		Policy:            journalgen.PromptPolicy(cfg.PromptPolicy),
	}, agg, gen, journalStore, clientStore, a.Events, log)

	a.Clients = services.NewClientService(clientStore, a.Files, inviteMailer(cfg, log), a.Events, log, cfg.FrontendURL, cfg.InviteTokenTTL)
	a.Knowledge = services.NewKnowledgeService(knowledgeStore, a.Files, a.Events, log)
	a.Guard = auth.NewGuard(cfg.AdminUsername, cfg.AdminPassword, clientStore)
	return a, nil
}

// StartEvents begins relaying Redis events into the local hub.
func (a *App) StartEvents(ctx context.Context) {
	if a.redisBus != nil {
		a.redisBus.Start(ctx)
	}
}

func (a *App) Close() {
	if err := database.DisconnectRedis(); err != nil {
		a.Log.Warn("redis disconnect", "error", err)
	}
	if err := database.DisconnectPostgres(); err != nil {
		a.Log.Warn("postgres disconnect", "error", err)
	}
	if err := database.Disconnect(); err != nil {
		a.Log.Warn("mongodb disconnect", "error", err)
	}
}

func fieldCipher(cfg *config.Config, log *logger.Logger) (*utils.FieldCipher, error) {
	if cfg.EncryptionKey == "" {
		log.Warn("ENCRYPTION_KEY not set, client backgrounds and notes are stored in plain text")
		return nil, nil
	}
	key, err := utils.ParseEncryptionKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	return utils.NewFieldCipher(key)
}

func fileStore(cfg *config.Config, log *logger.Logger) (storage.FileStore, string, error) {
	if cfg.CloudinaryEnabled() {
		store, err := storage.NewCloudinaryStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, "", fmt.Errorf("init cloudinary: %w", err)
		}
		log.Info("file storage: cloudinary", "folder", cfg.CloudinaryFolder)
		return store, "", nil
	}
	store, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, "", fmt.Errorf("init upload dir: %w", err)
	}
	log.Info("file storage: local disk", "dir", store.Dir())
	return store, store.Dir(), nil
}

func generator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	switch cfg.GenerationProvider {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GenerationTimeout)
	default:
		return llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenerationTimeout), nil
	}
}

func inviteMailer(cfg *config.Config, log *logger.Logger) mailer.Mailer {
	if cfg.SendGridAPIKey == "" {
		log.Warn("SENDGRID_API_KEY not set, invite links are only logged")
		return mailer.NewLog(log)
	}
	return mailer.NewSendGrid(cfg.SendGridAPIKey, cfg.MailFrom, "")
}
