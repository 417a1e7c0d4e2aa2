// Package api provides the HTTP handlers for subjects, face samples and
// attendance.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/hajira/internal/store"
)

// Trainer enrolls face samples and keeps the recognizer in sync with them.
type Trainer interface {
	Enroll(ctx context.Context, subjectID string, photo []byte) (*store.Sample, error)
	DeleteSample(ctx context.Context, sampleID string) error
	DeleteSubject(ctx context.Context, subjectID string) error
	ReloadRecognizer(ctx context.Context) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
