package recognition

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockRecognizer returns a fixed prediction. Useful for pipeline tests where
// the face pixels are irrelevant.
type MockRecognizer struct {
	mu       sync.Mutex
	label    int
	distance float64
	err      error
	trained  int
	closed   bool
	sequence []int
	next     int
}

// NewMockRecognizer creates a recognizer predicting label at distance.
func NewMockRecognizer(label int, distance float64) *MockRecognizer {
	return &MockRecognizer{label: label, distance: distance}
}

// Factory returns a Factory that always hands out m.
func (m *MockRecognizer) Factory() Factory {
	return func() Recognizer { return m }
}

// SetPrediction changes the label and distance returned by Predict.
func (m *MockRecognizer) SetPrediction(label int, distance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
	m.distance = distance
}

// SetSequence makes successive Predict calls cycle through labels, so
// several faces in one frame can resolve to different subjects.
func (m *MockRecognizer) SetSequence(labels ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = labels
	m.next = 0
}

// SetError makes Predict fail with err.
func (m *MockRecognizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockRecognizer) Train(faces []gocv.Mat, labels []int) error {
	if len(faces) != len(labels) {
		return ErrTrainingMismatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trained++
	m.closed = false
	return nil
}

func (m *MockRecognizer) Predict(face gocv.Mat) (int, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	if len(m.sequence) > 0 {
		label := m.sequence[m.next%len(m.sequence)]
		m.next++
		return label, m.distance, nil
	}
	return m.label, m.distance, nil
}

func (m *MockRecognizer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// TrainCount reports how many times Train was called.
func (m *MockRecognizer) TrainCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trained
}

// Closed reports whether Close was called since the last Train.
func (m *MockRecognizer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
