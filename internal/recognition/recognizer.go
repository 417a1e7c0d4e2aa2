// Package recognition matches cropped faces against the enrolled subjects.
package recognition

import (
	"errors"

	"gocv.io/x/gocv"
)

var (
	// ErrModelNotTrained is returned when no subject has a usable sample.
	ErrModelNotTrained = errors.New("recognition model not trained")

	// ErrTrainingMismatch is returned when faces and labels differ in length.
	ErrTrainingMismatch = errors.New("faces and labels length mismatch")
)

// Identity is an enrolled subject as shown on the kiosk.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether the identity is unknown.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Recognizer is a trainable face classifier. Lower distance is a closer match.
type Recognizer interface {
	Train(faces []gocv.Mat, labels []int) error
	Predict(face gocv.Mat) (label int, distance float64, err error)
	Close() error
}

// Factory creates an untrained Recognizer.
type Factory func() Recognizer
