package handlers

import (
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/journalgen"
	"github.com/AnshRaj112/journeygen-backend/internal/services"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

// defaultMaxUpload bounds multipart bodies for client files and knowledge documents.
const defaultMaxUpload = 20 << 20

// Handler serves the HTTP API.
type Handler struct {
	journals  *journalgen.Service
	clients   *services.ClientService
	knowledge *services.KnowledgeService
	hub       *events.Hub
	log       *logger.Logger
	maxUpload int64
}

func New(journals *journalgen.Service, clients *services.ClientService, knowledge *services.KnowledgeService, hub *events.Hub, log *logger.Logger) *Handler {
	return &Handler{
		journals:  journals,
		clients:   clients,
		knowledge: knowledge,
		hub:       hub,
		log:       log,
		maxUpload: defaultMaxUpload,
	}
}
