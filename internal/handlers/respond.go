package handlers

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": message}. Server-side failures are
// logged with their detail and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"kind", string(apperr.KindOf(err)),
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: apperr.Public(err)})
}
