// Package hook runs external executables when kiosk events occur.
//
// A hook lives in its own directory under the hooks dir with a hook.json
// manifest. For every matching event the executable is started with a JSON
// Request on stdin and must print a JSON Response on stdout.
package hook

import (
	"encoding/json"

	"github.com/ayusman/hajira/internal/events"
)

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook and the event types it wants.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to the hook's stdin.
type Request struct {
	Event  events.Event    `json:"event"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Wants reports whether the hook subscribed to eventType.
// An empty event list subscribes to attendance marks only.
func (h *Hook) Wants(eventType string) bool {
	if len(h.Manifest.Events) == 0 {
		return eventType == events.TypeAttendanceMarked
	}
	for _, e := range h.Manifest.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}
