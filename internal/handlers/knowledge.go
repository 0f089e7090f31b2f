package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
)

// UploadKnowledgeDoc handles POST /api/knowledge (multipart "doc", optional "name").
func (h *Handler) UploadKnowledgeDoc(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	upload, file, err := formFile(r, "doc")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if upload == nil {
		h.writeError(w, r, apperr.Newf(apperr.Validation, "No file uploaded."))
		return
	}
	defer file.Close()

	doc, err := h.knowledge.Upload(r.Context(), r.FormValue("name"), upload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) ListKnowledgeDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := h.knowledge.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) DeleteKnowledgeDoc(w http.ResponseWriter, r *http.Request) {
	if err := h.knowledge.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
