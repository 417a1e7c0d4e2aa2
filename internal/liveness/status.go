package liveness

// Status messages shown under a recognized face.
const (
	MsgBlink            = "Please blink"
	MsgTurnHead         = "Turn head left/right"
	MsgVerified         = "Verified, hold still"
	MsgFaceNotClear     = "Face not clear"
	MsgMarked           = "Attendance marked"
	MsgMarkedNoLiveness = "Marked (no liveness)"
	MsgRecordingFailed  = "Could not mark, retrying"
	MsgAlreadyRecording = "Marking..."
)

// Status is the result of stepping one subject for one frame.
type Status struct {
	Stage   Stage
	Marked  bool
	Message string
	// Outcome is set on the frame the recorder succeeded.
	Outcome Outcome
}

func stageMessage(s Stage) string {
	switch s {
	case AwaitingBlink:
		return MsgBlink
	case AwaitingHeadTurn:
		return MsgTurnHead
	default:
		return MsgVerified
	}
}
