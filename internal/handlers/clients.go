package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/internal/services"
)

// formFile returns the named multipart file, or nil when the field is absent.
// The caller closes the returned file.
func formFile(r *http.Request, field string) (*services.Upload, multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.New(apperr.Validation, "Invalid file upload.", err)
	}
	return &services.Upload{
		Filename: header.Filename,
		Mimetype: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	}, file, nil
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return apperr.New(apperr.Validation, "Invalid multipart form.", err)
	}
	return nil
}

// CreateClient handles POST /api/clients (multipart, optional "file").
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	upload, file, err := formFile(r, "file")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	client, err := h.clients.Create(r.Context(), services.NewClient{
		FirstName:   r.FormValue("firstName"),
		LastName:    r.FormValue("lastName"),
		Email:       r.FormValue("email"),
		Gender:      r.FormValue("gender"),
		DateOfBirth: r.FormValue("dateOfBirth"),
		Background:  r.FormValue("background"),
		File:        upload,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

type updateClientRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	DateOfBirth *string `json:"dateOfBirth"`
	Background  *string `json:"background"`
}

func (req updateClientRequest) toUpdate() (models.ClientUpdate, error) {
	u := models.ClientUpdate{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Background: req.Background,
	}
	if req.Gender != nil {
		g := models.Gender(*req.Gender)
		u.Gender = &g
	}
	if req.DateOfBirth != nil && strings.TrimSpace(*req.DateOfBirth) != "" {
		dob, err := services.ParseDate(*req.DateOfBirth)
		if err != nil {
			return u, err
		}
		u.DateOfBirth = dob
	}
	return u, nil
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req updateClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	update, err := req.toUpdate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	client, err := h.clients.Update(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// AddClientFile handles POST /api/clients/{id}/files.
func (h *Handler) AddClientFile(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	upload, file, err := formFile(r, "file")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if upload == nil {
		h.writeError(w, r, apperr.Newf(apperr.Validation, "No file uploaded."))
		return
	}
	defer file.Close()

	f, err := h.clients.AttachFile(r.Context(), chi.URLParam(r, "id"), upload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

type addNoteRequest struct {
	Body string `json:"body" validate:"required"`
}

func (h *Handler) AddClientNote(w http.ResponseWriter, r *http.Request) {
	var req addNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	note, err := h.clients.AddNote(r.Context(), chi.URLParam(r, "id"), req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// ResendInvite handles POST /api/clients/{id}/invite.
func (h *Handler) ResendInvite(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.ReissueInvite(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
