// Package liveness implements the blink then head turn challenge that
// gates attendance recording.
package liveness

import (
	"context"
	"time"

	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/recognition"
)

// Stage is a step of the liveness challenge. Stages only move forward.
type Stage int

const (
	AwaitingBlink Stage = iota
	AwaitingHeadTurn
	Verified
)

func (s Stage) String() string {
	switch s {
	case AwaitingBlink:
		return "awaiting_blink"
	case AwaitingHeadTurn:
		return "awaiting_head_turn"
	case Verified:
		return "verified"
	default:
		return "unknown"
	}
}

// Thresholds tune the challenge.
type Thresholds struct {
	// ClosedEye is the average eye openness below which eyes count as closed.
	ClosedEye float64
	// BlinkWindow is how soon eyes must reopen after closing to count as a blink.
	BlinkWindow time.Duration
	// HeadTurn is the absolute head turn ratio that completes the challenge.
	HeadTurn float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ClosedEye:   0.25,
		BlinkWindow: time.Second,
		HeadTurn:    0.3,
	}
}

// Outcome is what the attendance recorder did with a verified subject.
type Outcome int

const (
	OutcomeArrival Outcome = iota + 1
	OutcomeDeparture
	OutcomeAlreadyComplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeArrival:
		return "arrival"
	case OutcomeDeparture:
		return "departure"
	case OutcomeAlreadyComplete:
		return "already_complete"
	default:
		return "none"
	}
}

// Recorder persists an attendance mark. It is idempotent per subject per day.
type Recorder interface {
	Record(ctx context.Context, id recognition.Identity) (Outcome, error)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, id recognition.Identity) (Outcome, error)

func (f RecorderFunc) Record(ctx context.Context, id recognition.Identity) (Outcome, error) {
	return f(ctx, id)
}

// LandmarkSource returns the landmarks for the face being stepped, or nil.
// It is only called when the challenge needs geometry.
type LandmarkSource func() *detector.FaceLandmarks
