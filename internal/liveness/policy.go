package liveness

import (
	"context"

	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/recognition"
)

// Policy decides, frame by frame, when a recognized subject is recorded.
type Policy interface {
	Step(ctx context.Context, id recognition.Identity, landmarks LandmarkSource) Status
	Name() string
}

// AdvanceFunc is notified when a subject moves to a new stage.
type AdvanceFunc func(id recognition.Identity, from, to Stage)

// ChallengePolicy records a subject only after a blink followed by a head turn.
type ChallengePolicy struct {
	tracker   *Tracker
	recorder  Recorder
	onAdvance AdvanceFunc
	logger    *zap.Logger
}

// NewChallengePolicy creates the liveness gated policy. onAdvance may be nil.
func NewChallengePolicy(tracker *Tracker, recorder Recorder, onAdvance AdvanceFunc, logger *zap.Logger) *ChallengePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChallengePolicy{
		tracker:   tracker,
		recorder:  recorder,
		onAdvance: onAdvance,
		logger:    logger,
	}
}

func (p *ChallengePolicy) Name() string { return "challenge" }

// Step advances the subject by at most one stage. Marked subjects return
// before landmarks are fetched.
func (p *ChallengePolicy) Step(ctx context.Context, id recognition.Identity, landmarks LandmarkSource) Status {
	t := p.tracker

	t.mu.Lock()
	now := t.now()
	r := t.lookup(id.ID, now)
	if r.Marked {
		t.mu.Unlock()
		return Status{Stage: Verified, Marked: true, Message: MsgMarked}
	}
	stage := r.Stage
	t.mu.Unlock()

	if landmarks == nil {
		return Status{Stage: stage, Message: MsgFaceNotClear}
	}
	lm := landmarks()
	if lm == nil {
		return Status{Stage: stage, Message: MsgFaceNotClear}
	}

	if stage == Verified {
		return p.record(ctx, id, r)
	}

	t.mu.Lock()
	if !t.current(id.ID, r) {
		t.mu.Unlock()
		return restarted()
	}
	from := r.Stage
	advanced := r.observe(lm, now, t.thresholds)
	to := r.Stage
	marked := r.Marked
	t.mu.Unlock()

	if marked {
		return Status{Stage: Verified, Marked: true, Message: MsgMarked}
	}

	if advanced {
		p.logger.Info("liveness stage advanced",
			zap.String("subject", id.ID),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if p.onAdvance != nil {
			p.onAdvance(id, from, to)
		}
	}

	return Status{Stage: to, Message: stageMessage(to)}
}

// restarted is reported when the record was reset while landmarks were
// being extracted.
func restarted() Status {
	return Status{Stage: AwaitingBlink, Message: stageMessage(AwaitingBlink)}
}

// record calls the recorder for expected, which must still be the subject's
// live record.
func (p *ChallengePolicy) record(ctx context.Context, id recognition.Identity, expected *Record) Status {
	r, ok := p.tracker.begin(id.ID, expected)
	if r == nil {
		return restarted()
	}
	if !ok {
		if r.Marked {
			return Status{Stage: Verified, Marked: true, Message: MsgMarked}
		}
		return Status{Stage: Verified, Message: MsgAlreadyRecording}
	}

	outcome, err := p.recorder.Record(ctx, id)
	p.tracker.finish(r, err == nil)
	if err != nil {
		p.logger.Warn("attendance recording failed, retrying next frame",
			zap.String("subject", id.ID), zap.Error(err))
		return Status{Stage: Verified, Message: MsgRecordingFailed}
	}

	p.logger.Info("attendance marked",
		zap.String("subject", id.ID),
		zap.Stringer("outcome", outcome))
	return Status{Stage: Verified, Marked: true, Message: MsgMarked, Outcome: outcome}
}

// ImmediatePolicy records a subject the first time it is recognized. It is
// used when landmark extraction is unavailable.
type ImmediatePolicy struct {
	tracker  *Tracker
	recorder Recorder
	logger   *zap.Logger
}

func NewImmediatePolicy(tracker *Tracker, recorder Recorder, logger *zap.Logger) *ImmediatePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImmediatePolicy{tracker: tracker, recorder: recorder, logger: logger}
}

func (p *ImmediatePolicy) Name() string { return "immediate" }

// Step never consults landmarks.
func (p *ImmediatePolicy) Step(ctx context.Context, id recognition.Identity, _ LandmarkSource) Status {
	r, ok := p.tracker.begin(id.ID, nil)
	if !ok {
		if r.Marked {
			return Status{Stage: Verified, Marked: true, Message: MsgMarkedNoLiveness}
		}
		return Status{Stage: r.Stage, Message: MsgAlreadyRecording}
	}

	outcome, err := p.recorder.Record(ctx, id)
	p.tracker.finish(r, err == nil)
	if err != nil {
		p.logger.Warn("attendance recording failed, retrying next frame",
			zap.String("subject", id.ID), zap.Error(err))
		return Status{Stage: AwaitingBlink, Message: MsgRecordingFailed}
	}

	p.logger.Info("attendance marked without liveness",
		zap.String("subject", id.ID),
		zap.Stringer("outcome", outcome))
	return Status{Stage: Verified, Marked: true, Message: MsgMarkedNoLiveness, Outcome: outcome}
}
