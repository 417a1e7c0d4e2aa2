package liveness

import (
	"math"
	"time"

	"github.com/ayusman/hajira/internal/detector"
)

// Record is the challenge progress of one subject.
type Record struct {
	Stage           Stage
	EyesClosedSince time.Time
	Marked          bool

	recording bool
}

// observe applies one frame of landmarks and reports whether the stage moved.
// Marked records and Verified records are not changed here.
func (r *Record) observe(lm *detector.FaceLandmarks, now time.Time, th Thresholds) bool {
	if r.Marked || lm == nil {
		return false
	}

	switch r.Stage {
	case AwaitingBlink:
		return r.observeBlink(lm.AverageEyeOpenness(), now, th)
	case AwaitingHeadTurn:
		return r.observeHeadTurn(lm.HeadTurn(), th)
	}
	return false
}

func (r *Record) observeBlink(openness float64, now time.Time, th Thresholds) bool {
	if openness == 0 {
		return false
	}

	if openness < th.ClosedEye {
		r.EyesClosedSince = now
		return false
	}

	blinked := !r.EyesClosedSince.IsZero() && now.Sub(r.EyesClosedSince) < th.BlinkWindow
	r.EyesClosedSince = time.Time{}
	if blinked {
		r.Stage = AwaitingHeadTurn
	}
	return blinked
}

func (r *Record) observeHeadTurn(ratio float64, th Thresholds) bool {
	if math.Abs(ratio) > th.HeadTurn {
		r.Stage = Verified
		return true
	}
	return false
}
