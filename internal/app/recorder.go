package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/events"
	"github.com/ayusman/hajira/internal/liveness"
	"github.com/ayusman/hajira/internal/recognition"
	"github.com/ayusman/hajira/internal/store"
)

// attendanceRecorder records verified subjects in the store and announces
// each successful mark on the hub.
type attendanceRecorder struct {
	repo   *store.AttendanceRepository
	hub    *events.Hub
	mode   func() string
	now    func() time.Time
	logger *zap.Logger
}

func (r *attendanceRecorder) Record(ctx context.Context, id recognition.Identity) (liveness.Outcome, error) {
	result, err := r.repo.Record(ctx, id.ID, id.Name)
	if err != nil {
		return 0, fmt.Errorf("record attendance for %s: %w", id.ID, err)
	}

	outcome := toLivenessOutcome(result)
	r.logger.Info("attendance marked",
		zap.String("subject", id.ID),
		zap.String("outcome", outcome.String()),
	)

	if r.hub != nil {
		r.hub.Publish(events.Event{
			Type:      events.TypeAttendanceMarked,
			SubjectID: id.ID,
			Name:      id.Name,
			Outcome:   string(result),
			Mode:      r.mode(),
			At:        r.now(),
		})
	}
	return outcome, nil
}

func toLivenessOutcome(o store.Outcome) liveness.Outcome {
	switch o {
	case store.OutcomeArrival:
		return liveness.OutcomeArrival
	case store.OutcomeDeparture:
		return liveness.OutcomeDeparture
	default:
		return liveness.OutcomeAlreadyComplete
	}
}
