package recognition

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// LBPH is a Recognizer backed by OpenCV's local binary patterns histogram
// face recognizer.
type LBPH struct {
	mu  sync.Mutex
	rec *contrib.LBPHFaceRecognizer
}

// NewLBPH creates an untrained LBPH recognizer.
func NewLBPH() Recognizer {
	return &LBPH{rec: contrib.NewLBPHFaceRecognizer()}
}

func (l *LBPH) Train(faces []gocv.Mat, labels []int) error {
	if len(faces) != len(labels) {
		return ErrTrainingMismatch
	}
	if len(faces) == 0 {
		return ErrModelNotTrained
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec.Train(faces, labels)
	return nil
}

func (l *LBPH) Predict(face gocv.Mat) (int, float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	resp := l.rec.PredictExtendedResponse(face)
	return int(resp.Label), float64(resp.Confidence), nil
}

func (l *LBPH) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rec == nil {
		return nil
	}
	var err error
	if c, ok := any(l.rec).(io.Closer); ok {
		err = c.Close()
	}
	l.rec = nil
	return err
}
