package liveness

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// Tracker owns the challenge records of every subject seen today.
// Records are created lazily and dropped on Reset or when the day changes.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	day     string

	thresholds Thresholds
	now        func() time.Time
	logger     *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(thresholds Thresholds, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		records:    make(map[string]*Record),
		thresholds: thresholds,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Thresholds returns the challenge thresholds.
func (t *Tracker) Thresholds() Thresholds {
	return t.thresholds
}

// Reset drops every record.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.records)
	t.records = make(map[string]*Record)
	t.logger.Info("liveness records reset", zap.Int("dropped", n))
}

// Snapshot returns a copy of the subject's record.
func (t *Tracker) Snapshot(subjectID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[subjectID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Len returns the number of tracked subjects.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// lookup returns the subject's record, creating it on first sight.
// Must be called with mu held.
func (t *Tracker) lookup(subjectID string, now time.Time) *Record {
	if day := now.Format(dayLayout); day != t.day {
		if t.day != "" {
			t.logger.Info("new day, liveness records reset",
				zap.String("day", day), zap.Int("dropped", len(t.records)))
		}
		t.records = make(map[string]*Record)
		t.day = day
	}

	r, ok := t.records[subjectID]
	if !ok {
		r = &Record{Stage: AwaitingBlink}
		t.records[subjectID] = r
	}
	return r
}

// begin locks the record for a recorder call. It returns false if the
// record is already marked or another call is in flight. With a non-nil
// expected record it returns nil, false when expected has been replaced.
func (t *Tracker) begin(subjectID string, expected *Record) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if expected != nil && !t.current(subjectID, expected) {
		return nil, false
	}

	r := t.lookup(subjectID, t.now())
	if r.Marked || r.recording {
		return r, false
	}
	r.recording = true
	return r, true
}

// current reports whether r is still the live record for subjectID, i.e. no
// Reset or day rollover replaced it. Callers hold t.mu.
func (t *Tracker) current(subjectID string, r *Record) bool {
	return t.records[subjectID] == r && t.day == t.now().Format(dayLayout)
}

// finish ends a recorder call, marking the record on success.
func (t *Tracker) finish(r *Record, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r.recording = false
	if ok {
		r.Stage = Verified
		r.Marked = true
	}
}
