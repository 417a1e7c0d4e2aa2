// Command csv-log is an event hook that appends every attendance mark to a
// CSV file, for sites that feed attendance into a spreadsheet.
//
// Build it into the hook directory next to hook.json:
//
//	go build -o hooks/csv-log/csv-log ./hooks/csv-log
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Request mirrors the hook request written by the kiosk.
type Request struct {
	Event  Event           `json:"event"`
	Config json.RawMessage `json:"config"`
}

type Event struct {
	Type      string    `json:"type"`
	SubjectID string    `json:"subject_id"`
	Name      string    `json:"name"`
	Outcome   string    `json:"outcome"`
	Mode      string    `json:"mode"`
	At        time.Time `json:"at"`
}

type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type settings struct {
	File string `json:"file"`
}

const defaultFile = "attendance.csv"

var header = []string{"date", "time", "subject_id", "name", "outcome", "mode"}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("decode request: %w", err))
		return
	}
	respond(handle(req))
}

func handle(req Request) error {
	if req.Event.Type != "attendance.marked" {
		return nil
	}

	s := settings{File: defaultFile}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &s); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	if s.File == "" {
		return errors.New("config.file is empty")
	}

	f, err := os.OpenFile(s.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return appendRow(f, info.Size() == 0, req.Event)
}

func appendRow(w io.Writer, withHeader bool, e Event) error {
	at := e.At.Local()
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{
		at.Format("2006-01-02"), at.Format("15:04:05"),
		e.SubjectID, e.Name, e.Outcome, e.Mode,
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
