// Package detector provides face detection, landmark extraction and the
// geometry used by the liveness challenge.
package detector

import (
	"image"
	"math"
)

// Face mesh landmark indices following the MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	NoseTip      = 1
	LeftCheek    = 234
	RightCheek   = 454
	NumLandmarks = 468
)

// Eye contours ordered as (outer corner, upper, upper, inner corner, lower, lower).
var (
	LeftEye  = [6]int{362, 385, 387, 263, 373, 380}
	RightEye = [6]int{33, 160, 158, 133, 153, 144}
)

// Point is a 2D landmark position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceLandmarks is an ordered set of face mesh points for a single face.
type FaceLandmarks struct {
	Points []Point `json:"points"`
}

// distance calculates the Euclidean distance between two points.
func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func inRange(points []Point, indices ...int) bool {
	for _, i := range indices {
		if i < 0 || i >= len(points) {
			return false
		}
	}
	return true
}

// EyeOpenness returns the eye aspect ratio for the six eye points:
// (|p1-p5| + |p2-p4|) / (2*|p0-p3|).
// It returns 0 when the horizontal span is zero or an index is missing.
func EyeOpenness(points []Point, eye [6]int) float64 {
	if !inRange(points, eye[:]...) {
		return 0
	}
	p := func(i int) Point { return points[eye[i]] }

	horizontal := distance(p(0), p(3))
	if horizontal == 0 {
		return 0
	}
	return (distance(p(1), p(5)) + distance(p(2), p(4))) / (2 * horizontal)
}

// HeadTurnRatio measures where the nose sits between the two cheeks.
// 0 is straight ahead, negative is turned towards left, positive towards right.
// It returns 0 when the cheeks share an x coordinate.
func HeadTurnRatio(points []Point, nose, left, right int) float64 {
	if !inRange(points, nose, left, right) {
		return 0
	}
	leftX := points[left].X
	span := points[right].X - leftX
	if span == 0 {
		return 0
	}
	return ((points[nose].X-leftX)/span - 0.5) * 2
}

// AverageEyeOpenness averages the openness of both eyes. It is 0 when
// either eye cannot be measured.
func (f *FaceLandmarks) AverageEyeOpenness() float64 {
	if f == nil {
		return 0
	}
	left := EyeOpenness(f.Points, LeftEye)
	right := EyeOpenness(f.Points, RightEye)
	if left == 0 || right == 0 {
		return 0
	}
	return (left + right) / 2
}

// HeadTurn returns the head turn ratio using the nose tip and cheek points.
func (f *FaceLandmarks) HeadTurn() float64 {
	if f == nil {
		return 0
	}
	return HeadTurnRatio(f.Points, NoseTip, LeftCheek, RightCheek)
}

// Within reports whether the nose tip of the face lies inside box.
func (f *FaceLandmarks) Within(box image.Rectangle) bool {
	if f == nil || !inRange(f.Points, NoseTip) {
		return false
	}
	nose := f.Points[NoseTip]
	return nose.X >= float64(box.Min.X) && nose.X < float64(box.Max.X) &&
		nose.Y >= float64(box.Min.Y) && nose.Y < float64(box.Max.Y)
}

// ForBox picks the landmark set whose nose tip lies inside box, or nil when
// none does.
func ForBox(sets []FaceLandmarks, box image.Rectangle) *FaceLandmarks {
	for i := range sets {
		if sets[i].Within(box) {
			return &sets[i]
		}
	}
	return nil
}
