package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/enroll"
	"github.com/ayusman/hajira/internal/store"
)

// maxPhotoSize bounds enrollment uploads.
const maxPhotoSize = 10 << 20

// SubjectHandler serves the subject directory and its face samples.
type SubjectHandler struct {
	store   *store.Store
	trainer Trainer
	logger  *zap.Logger
}

func NewSubjectHandler(s *store.Store, trainer Trainer, logger *zap.Logger) *SubjectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectHandler{store: s, trainer: trainer, logger: logger}
}

// Routes registers the subject endpoints on a router mounted at /subjects.
func (h *SubjectHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/faces", h.listFaces)
	r.Post("/{id}/faces", h.uploadFace)
	r.Delete("/{id}/faces/{sampleID}", h.deleteFace)
}

type subjectRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Email      string `json:"email"`
	Contact    string `json:"contact"`
}

type listSubjectsResponse struct {
	Subjects []store.Subject `json:"subjects"`
}

type listSamplesResponse struct {
	Samples []store.Sample `json:"samples"`
}

func (h *SubjectHandler) list(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.Subjects().List(r.Context())
	if err != nil {
		h.logger.Error("list subjects", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list subjects")
		return
	}
	if subjects == nil {
		subjects = []store.Subject{}
	}
	writeJSON(w, http.StatusOK, listSubjectsResponse{Subjects: subjects})
}

func (h *SubjectHandler) get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.Subjects().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "Failed to get subject")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubjectHandler) create(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "ID and name are required")
		return
	}

	sub := &store.Subject{
		ID:         req.ID,
		Name:       req.Name,
		Department: req.Department,
		Year:       req.Year,
		Email:      req.Email,
		Contact:    req.Contact,
	}
	if err := h.store.Subjects().Create(r.Context(), sub); err != nil {
		h.storeError(w, err, "Failed to create subject")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubjectHandler) update(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.Subjects().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "Failed to get subject")
		return
	}

	var req subjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Empty fields keep their current value.
	if v := strings.TrimSpace(req.Name); v != "" {
		sub.Name = v
	}
	if req.Department != "" {
		sub.Department = req.Department
	}
	if req.Year != "" {
		sub.Year = req.Year
	}
	if req.Email != "" {
		sub.Email = req.Email
	}
	if req.Contact != "" {
		sub.Contact = req.Contact
	}

	if err := h.store.Subjects().Update(r.Context(), sub); err != nil {
		h.storeError(w, err, "Failed to update subject")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubjectHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.trainer.DeleteSubject(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err, "Failed to delete subject")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubjectHandler) listFaces(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.Subjects().GetByID(r.Context(), id); err != nil {
		h.storeError(w, err, "Failed to get subject")
		return
	}

	samples, err := h.store.Samples().ListBySubject(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "Failed to list samples")
		return
	}
	if samples == nil {
		samples = []store.Sample{}
	}
	writeJSON(w, http.StatusOK, listSamplesResponse{Samples: samples})
}

// uploadFace handles POST /api/subjects/{id}/faces with a multipart "photo"
// field. The recognizer is retrained before responding.
func (h *SubjectHandler) uploadFace(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing photo")
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read photo")
		return
	}

	sample, err := h.trainer.Enroll(r.Context(), chi.URLParam(r, "id"), photo)
	switch {
	case errors.Is(err, enroll.ErrNoFace):
		writeError(w, http.StatusUnprocessableEntity, "No face found in photo")
		return
	case errors.Is(err, enroll.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	case err != nil && sample == nil:
		h.storeError(w, err, "Failed to enroll face")
		return
	case err != nil:
		h.logger.Warn("sample stored but recognizer not retrained", zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, sample)
}

func (h *SubjectHandler) deleteFace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sampleID := chi.URLParam(r, "sampleID")

	sample, err := h.store.Samples().GetByID(r.Context(), sampleID)
	if err != nil {
		h.storeError(w, err, "Failed to get sample")
		return
	}
	if sample.SubjectID != id {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if err := h.trainer.DeleteSample(r.Context(), sampleID); err != nil {
		h.storeError(w, err, "Failed to delete sample")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubjectHandler) storeError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Already exists")
	default:
		h.logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message)
	}
}
