package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockFaceDetector is a test implementation of FaceDetector.
type MockFaceDetector struct {
	mu    sync.Mutex
	faces []image.Rectangle
	err   error
	calls int
}

// NewMockFaceDetector creates a detector that reports the given boxes.
func NewMockFaceDetector(faces ...image.Rectangle) *MockFaceDetector {
	return &MockFaceDetector{faces: faces}
}

// SetFaces sets the boxes that will be returned by Detect.
func (m *MockFaceDetector) SetFaces(faces ...image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockFaceDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockFaceDetector) Detect(gray *gocv.Mat) ([]image.Rectangle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]image.Rectangle(nil), m.faces...), nil
}

func (m *MockFaceDetector) Close() error {
	return nil
}

// MockExtractor is a test implementation of LandmarkExtractor.
// Queued results are returned one per call; the last one repeats.
type MockExtractor struct {
	mu       sync.Mutex
	frames   [][]FaceLandmarks
	err      error
	startErr error
	calls    int
	closed   bool
}

// NewMockExtractor creates an extractor that plays back the given per-frame results.
func NewMockExtractor(frames ...[]FaceLandmarks) *MockExtractor {
	return &MockExtractor{frames: frames}
}

// Queue appends per-frame results.
func (m *MockExtractor) Queue(frames ...[]FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frames...)
}

// SetError sets the error that will be returned by Extract.
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetStartError makes Start fail with err.
func (m *MockExtractor) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

func (m *MockExtractor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startErr
}

func (m *MockExtractor) Extract(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.frames) == 0 {
		return nil, nil
	}

	next := m.frames[0]
	if len(m.frames) > 1 {
		m.frames = m.frames[1:]
	}
	return next, nil
}

// Calls reports how many times Extract was called.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockExtractor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockExtractor) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SyntheticLandmarks builds a face mesh inside box whose eyes have the given
// openness and whose head turn ratio equals turn.
func SyntheticLandmarks(box image.Rectangle, openness, turn float64) FaceLandmarks {
	lm := FaceLandmarks{Points: make([]Point, NumLandmarks)}

	left := float64(box.Min.X)
	span := float64(box.Dx())
	top := float64(box.Min.Y)
	height := float64(box.Dy())

	lm.Points[LeftCheek] = Point{X: left, Y: top + height*0.55}
	lm.Points[RightCheek] = Point{X: left + span, Y: top + height*0.55}
	lm.Points[NoseTip] = Point{X: left + span*(turn/2+0.5), Y: top + height*0.6}

	eyeWidth := span * 0.2
	eyeY := top + height*0.4
	placeEye(&lm, RightEye, left+span*0.2, eyeY, eyeWidth, openness)
	placeEye(&lm, LeftEye, left+span*0.6, eyeY, eyeWidth, openness)

	return lm
}

func placeEye(lm *FaceLandmarks, eye [6]int, x, y, width, openness float64) {
	half := openness * width / 2
	lm.Points[eye[0]] = Point{X: x, Y: y}
	lm.Points[eye[1]] = Point{X: x + width/3, Y: y - half}
	lm.Points[eye[2]] = Point{X: x + 2*width/3, Y: y - half}
	lm.Points[eye[3]] = Point{X: x + width, Y: y}
	lm.Points[eye[4]] = Point{X: x + 2*width/3, Y: y + half}
	lm.Points[eye[5]] = Point{X: x + width/3, Y: y + half}
}

// OpenEyesLandmarks returns a frontal face with open eyes.
func OpenEyesLandmarks(box image.Rectangle) FaceLandmarks {
	return SyntheticLandmarks(box, 0.32, 0)
}

// ClosedEyesLandmarks returns a frontal face with closed eyes.
func ClosedEyesLandmarks(box image.Rectangle) FaceLandmarks {
	return SyntheticLandmarks(box, 0.1, 0)
}

// TurnedHeadLandmarks returns a face with open eyes turned by ratio.
func TurnedHeadLandmarks(box image.Rectangle, ratio float64) FaceLandmarks {
	return SyntheticLandmarks(box, 0.32, ratio)
}
