package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/internal/journalgen"
)

// IdempotencyHeader makes journal creation safe to retry.
const IdempotencyHeader = "Idempotency-Key"

type createJournalRequest struct {
	Topic       string `json:"topic" validate:"required"`
	Background  string `json:"background"`
	BookingLink string `json:"bookingLink" validate:"max=2048"`
	ClientID    string `json:"clientId" validate:"required"`
}

// CreateJournal handles POST /api/journals. It answers 201 for a new journal
// and 200 when the idempotency key matched an earlier one.
func (h *Handler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	var req createJournalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	journal, created, err := h.journals.CreateJournal(r.Context(), auth.FromContext(r.Context()), journalgen.CreateRequest{
		Topic:          req.Topic,
		Background:     req.Background,
		BookingLink:    req.BookingLink,
		ClientID:       req.ClientID,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, journal)
}

func (h *Handler) ListJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := h.journals.List(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journals)
}

func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	journal, err := h.journals.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journal)
}

func (h *Handler) ListClientJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := h.journals.ListForClient(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "clientId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journals)
}

type saveResponsesRequest struct {
	Responses [][]string `json:"responses" validate:"required"`
}

func (h *Handler) SaveResponses(w http.ResponseWriter, r *http.Request) {
	var req saveResponsesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.journals.SaveResponses(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), req.Responses); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type reportRequest struct {
	Responses [][]string `json:"responses"`
}

type reportResponse struct {
	Report string `json:"report"`
}

// GenerateReport handles POST /api/journals/{id}/report. Without "responses"
// the stored answers are used.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.journals.GenerateReport(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), req.Responses)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Report: report})
}
