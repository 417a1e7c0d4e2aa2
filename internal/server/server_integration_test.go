package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/hajira/internal/app"
	"github.com/ayusman/hajira/internal/capture"
	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/enroll"
	"github.com/ayusman/hajira/internal/recognition"
	"github.com/ayusman/hajira/internal/store"
)

func newTestApp(t *testing.T, cam capture.Camera) *app.App {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	samples, err := enroll.NewFSStore(t.TempDir())
	require.NoError(t, err)

	a := app.New(app.Config{
		Store:      st,
		Camera:     func() capture.Camera { return cam },
		Faces:      detector.NewMockFaceDetector(),
		Recognizer: recognition.NewMockRecognizer(1, 40).Factory(),
		Samples:    samples,
	})
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAPI_AttendanceWorkflow(t *testing.T) {
	a := newTestApp(t, capture.NewMockCamera(nil, false))
	srv := New(Config{App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	client := ts.Client()

	// 1. Register a subject
	resp, err := client.Post(ts.URL+"/api/subjects", "application/json",
		bytes.NewBufferString(`{"id": "21CS001", "name": "Asha", "department": "CSE"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// 2. Mark a day as on duty
	today := "2026-03-04"
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/subjects/21CS001/attendance/"+today,
		strings.NewReader(`{"status": "OD"}`))
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 3. Summary reflects the override
	resp, err = client.Get(ts.URL + "/api/subjects/21CS001/summary?month=2026-03")
	require.NoError(t, err)
	var summary store.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	resp.Body.Close()
	assert.Equal(t, 1, summary.Statistics.OD)
	require.Len(t, summary.History, 1)
	assert.Equal(t, today, summary.History[0].Day)

	// 4. Retraining without samples leaves the model untrained
	resp, err = client.Post(ts.URL+"/api/recognizer/reload", "application/json", nil)
	require.NoError(t, err)
	var reload map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reload))
	resp.Body.Close()
	assert.False(t, reload["trained"])

	// 5. Delete the subject
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/subjects/21CS001", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_KioskToggle(t *testing.T) {
	a := newTestApp(t, capture.NewMockCamera(nil, false))
	srv := New(Config{App: a})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/kiosk", strings.NewReader(`{"enabled": false}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, a.IsEnabled())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/kiosk", nil))
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())
}

func TestAPI_StreamSession(t *testing.T) {
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()
	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)

	a := newTestApp(t, cam)
	srv := New(Config{App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "--frame\r\n", line)

	// A second viewer is turned away while the first holds the camera.
	busy, err := ts.Client().Get(ts.URL + "/api/stream")
	require.NoError(t, err)
	busy.Body.Close()
	assert.Equal(t, http.StatusConflict, busy.StatusCode)

	cancel()
	resp.Body.Close()

	require.Eventually(t, func() bool { return !a.Streamer().Active() }, streamWait, pollEvery)
	assert.Equal(t, 1, cam.Closes())
}

const (
	streamWait = 5 * time.Second
	pollEvery  = 10 * time.Millisecond
)
