package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnshRaj112/journeygen-backend/internal/handlers"
	"github.com/AnshRaj112/journeygen-backend/internal/middleware"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

// SetupRoutes registers the API. uploadDir, when set, is served under /uploads/.
func SetupRoutes(r chi.Router, h *handlers.Handler, resolver middleware.Resolver, uploadDir string, log *logger.Logger) {
	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	}

	// Account activation and login (no credential yet)
	r.Post("/api/clients/login", h.ClientLogin)
	r.Post("/api/clients/set-password", h.SetPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(resolver, log))

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/api/clients", h.CreateClient)
			r.Get("/api/clients", h.ListClients)
			r.Get("/api/clients/{id}", h.GetClient)
			r.Put("/api/clients/{id}", h.UpdateClient)
			r.Delete("/api/clients/{id}", h.DeleteClient)
			r.Post("/api/clients/{id}/files", h.AddClientFile)
			r.Post("/api/clients/{id}/notes", h.AddClientNote)
			r.Post("/api/clients/{id}/invite", h.ResendInvite)

			r.Post("/api/knowledge", h.UploadKnowledgeDoc)
			r.Get("/api/knowledge", h.ListKnowledgeDocs)
			r.Delete("/api/knowledge/{id}", h.DeleteKnowledgeDoc)

			r.Get("/ws/events", h.EventsWebSocket)
		})

		// Journals: the service checks admin or owning client per operation.
		r.Get("/api/journals", h.ListJournals)
		r.Get("/api/journals/client/{clientId}", h.ListClientJournals)
		r.Get("/api/journals/{id}", h.GetJournal)
		r.Put("/api/journals/{id}/responses", h.SaveResponses)
		r.With(middleware.GenerationRateLimit).Post("/api/journals", h.CreateJournal)
		r.With(middleware.GenerationRateLimit).Post("/api/journals/{id}/report", h.GenerateReport)
	})
}
