package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/store"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// AttendanceHandler serves attendance reports and manual status overrides.
type AttendanceHandler struct {
	store  *store.Store
	now    func() time.Time
	logger *zap.Logger
}

func NewAttendanceHandler(s *store.Store, logger *zap.Logger) *AttendanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{store: s, now: time.Now, logger: logger}
}

// Routes registers the day and month endpoints on a router mounted at
// /attendance.
func (h *AttendanceHandler) Routes(r chi.Router) {
	r.Get("/", h.listDay)
	r.Get("/months", h.months)
}

// SubjectRoutes registers the per-subject endpoints on a router mounted at
// /subjects.
func (h *AttendanceHandler) SubjectRoutes(r chi.Router) {
	r.Get("/{id}/summary", h.summary)
	r.Put("/{id}/attendance/{day}", h.setStatus)
}

type dayResponse struct {
	Day     string             `json:"day"`
	Records []store.Attendance `json:"records"`
}

type monthsResponse struct {
	Months []store.Month `json:"months"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// listDay handles GET /api/attendance?date=YYYY-MM-DD. The date defaults to today.
func (h *AttendanceHandler) listDay(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = h.now().Format(dayLayout)
	} else if _, err := time.Parse(dayLayout, day); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	records, err := h.store.Attendance().ListByDay(r.Context(), day)
	if err != nil {
		h.logger.Error("list attendance", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list attendance")
		return
	}
	if records == nil {
		records = []store.Attendance{}
	}
	writeJSON(w, http.StatusOK, dayResponse{Day: day, Records: records})
}

func (h *AttendanceHandler) months(w http.ResponseWriter, r *http.Request) {
	months, err := h.store.Attendance().AvailableMonths(r.Context())
	if err != nil {
		h.logger.Error("list months", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list months")
		return
	}
	writeJSON(w, http.StatusOK, monthsResponse{Months: months})
}

// summary handles GET /api/subjects/{id}/summary?month=YYYY-MM&status=Present.
func (h *AttendanceHandler) summary(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month != "" {
		if _, err := time.Parse(monthLayout, month); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM")
			return
		}
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", "all", store.StatusPresent, store.StatusOD, store.StatusAbsent:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	summary, err := h.store.Attendance().Summary(r.Context(), chi.URLParam(r, "id"), month, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Subject not found")
			return
		}
		h.logger.Error("attendance summary", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// setStatus handles PUT /api/subjects/{id}/attendance/{day} with {"status": "OD"}.
func (h *AttendanceHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(dayLayout, day); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day, expected YYYY-MM-DD")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := h.store.Attendance().SetStatus(r.Context(), chi.URLParam(r, "id"), day, req.Status)
	switch {
	case errors.Is(err, store.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Status must be Present or OD")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Subject not found")
	case err != nil:
		h.logger.Error("set attendance status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to set status")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"day": day, "status": req.Status})
	}
}
