package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/hajira/internal/enroll"
	"github.com/ayusman/hajira/internal/store"
)

// fakeTrainer stores samples without looking at the pixels.
type fakeTrainer struct {
	store     *store.Store
	enrollErr error
	reloads   int
}

func (f *fakeTrainer) Enroll(ctx context.Context, subjectID string, photo []byte) (*store.Sample, error) {
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	if _, err := f.store.Subjects().GetByID(ctx, subjectID); err != nil {
		return nil, err
	}
	f.reloads++
	return f.store.Samples().Create(ctx, subjectID, subjectID+"/face.jpg")
}

func (f *fakeTrainer) DeleteSample(ctx context.Context, sampleID string) error {
	f.reloads++
	return f.store.Samples().Delete(ctx, sampleID)
}

func (f *fakeTrainer) DeleteSubject(ctx context.Context, subjectID string) error {
	f.reloads++
	return f.store.Subjects().Delete(ctx, subjectID)
}

func (f *fakeTrainer) ReloadRecognizer(ctx context.Context) error {
	f.reloads++
	return nil
}

var testNow = time.Date(2026, 3, 4, 9, 30, 0, 0, time.Local)

func newTestRouter(t *testing.T) (http.Handler, *store.Store, *fakeTrainer) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.SetClock(func() time.Time { return testNow })

	trainer := &fakeTrainer{store: s}
	subjects := NewSubjectHandler(s, trainer, nil)
	attendance := NewAttendanceHandler(s, nil)
	attendance.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	r.Route("/api/subjects", func(r chi.Router) {
		subjects.Routes(r)
		attendance.SubjectRoutes(r)
	})
	r.Route("/api/attendance", attendance.Routes)

	return r, s, trainer
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSubject(t *testing.T, s *store.Store, id, name string) {
	t.Helper()
	require.NoError(t, s.Subjects().Create(context.Background(), &store.Subject{ID: id, Name: name}))
}

func TestSubjectHandler_CreateAndList(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/subjects", subjectRequest{ID: "21CS001", Name: "Asha", Department: "CSE"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = doJSON(t, h, http.MethodGet, "/api/subjects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listSubjectsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Subjects, 1)
	assert.Equal(t, "21CS001", resp.Subjects[0].ID)
	assert.Equal(t, "CSE", resp.Subjects[0].Department)
}

func TestSubjectHandler_CreateValidation(t *testing.T) {
	h, s, _ := newTestRouter(t)
	createSubject(t, s, "S1", "Asha")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing name", subjectRequest{ID: "S2"}, http.StatusBadRequest},
		{"missing id", subjectRequest{Name: "Ravi"}, http.StatusBadRequest},
		{"duplicate", subjectRequest{ID: "S1", Name: "Asha"}, http.StatusConflict},
		{"not json", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/subjects", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubjectHandler_GetUpdateDelete(t *testing.T) {
	h, s, trainer := newTestRouter(t)
	createSubject(t, s, "S1", "Asha")

	rec := doJSON(t, h, http.MethodGet, "/api/subjects/S1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/subjects/S1", subjectRequest{Name: "Asha K", Year: "3"})
	require.Equal(t, http.StatusOK, rec.Code)

	sub, err := s.Subjects().GetByID(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", sub.Name)
	assert.Equal(t, "3", sub.Year)

	rec = doJSON(t, h, http.MethodDelete, "/api/subjects/S1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, trainer.reloads)

	rec = doJSON(t, h, http.MethodGet, "/api/subjects/S1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/subjects/S1", subjectRequest{Name: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadRequest(t *testing.T, path string, field string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "face.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSubjectHandler_Faces(t *testing.T) {
	h, s, trainer := newTestRouter(t)
	createSubject(t, s, "S1", "Asha")
	createSubject(t, s, "S2", "Ravi")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/subjects/S1/faces", "photo"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var sample store.Sample
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sample))
	assert.Equal(t, "S1", sample.SubjectID)

	rec = doJSON(t, h, http.MethodGet, "/api/subjects/S1/faces", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listSamplesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Samples, 1)

	// A sample can only be deleted through its own subject.
	rec = doJSON(t, h, http.MethodDelete, "/api/subjects/S2/faces/"+sample.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/subjects/S1/faces/"+sample.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, trainer.reloads)
}

func TestSubjectHandler_UploadErrors(t *testing.T) {
	h, s, trainer := newTestRouter(t)
	createSubject(t, s, "S1", "Asha")

	tests := []struct {
		name  string
		err   error
		path  string
		field string
		want  int
	}{
		{"missing field", nil, "/api/subjects/S1/faces", "file", http.StatusBadRequest},
		{"unknown subject", nil, "/api/subjects/nobody/faces", "photo", http.StatusNotFound},
		{"no face", enroll.ErrNoFace, "/api/subjects/S1/faces", "photo", http.StatusUnprocessableEntity},
		{"bad image", enroll.ErrInvalidImage, "/api/subjects/S1/faces", "photo", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trainer.enrollErr = tt.err
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, uploadRequest(t, tt.path, tt.field))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAttendanceHandler_DayAndMonths(t *testing.T) {
	h, s, _ := newTestRouter(t)
	createSubject(t, s, "S1", "Asha")
	_, err := s.Attendance().Record(context.Background(), "S1", "Asha")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodGet, "/api/attendance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&day))
	assert.Equal(t, "2026-03-04", day.Day)
	require.Len(t, day.Records, 1)
	assert.Equal(t, "S1", day.Records[0].SubjectID)

	rec = doJSON(t, h, http.MethodGet, "/api/attendance?date=2026-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&day))
	assert.Empty(t, day.Records)

	rec = doJSON(t, h, http.MethodGet, "/api/attendance?date=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/attendance/months", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var months monthsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&months))
	require.Len(t, months.Months, 12)
	assert.Equal(t, store.Month{Value: "2026-12", Label: "December 2026"}, months.Months[0])
}

func TestAttendanceHandler_SummaryAndOverride(t *testing.T) {
	h, s, _ := newTestRouter(t)
	createSubject(t, s, "S1", "Asha")
	createSubject(t, s, "S2", "Ravi")
	ctx := context.Background()

	_, err := s.Attendance().Record(ctx, "S1", "Asha")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPut, "/api/subjects/S2/attendance/2026-03-04", statusRequest{Status: store.StatusOD})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/subjects/S2/summary?month=2026-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary store.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Statistics.TotalDays)
	assert.Equal(t, 1, summary.Statistics.OD)
	assert.InDelta(t, 100.0, summary.Statistics.Percentage, 1e-9)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad month", http.MethodGet, "/api/subjects/S1/summary?month=2026-3", nil, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/subjects/S1/summary?status=Late", nil, http.StatusBadRequest},
		{"unknown subject summary", http.MethodGet, "/api/subjects/nobody/summary", nil, http.StatusNotFound},
		{"bad day", http.MethodPut, "/api/subjects/S1/attendance/04-03-2026", statusRequest{Status: "OD"}, http.StatusBadRequest},
		{"bad override status", http.MethodPut, "/api/subjects/S1/attendance/2026-03-04", statusRequest{Status: "Absent"}, http.StatusBadRequest},
		{"unknown subject override", http.MethodPut, "/api/subjects/nobody/attendance/2026-03-04", statusRequest{Status: "OD"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
