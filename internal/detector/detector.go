package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// FaceDetector locates faces in a grayscale frame.
type FaceDetector interface {
	// Detect returns face bounding boxes in frame coordinates.
	// Returns an empty slice if no faces are detected.
	Detect(gray *gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// LandmarkExtractor produces dense face landmarks for a color frame.
type LandmarkExtractor interface {
	// Extract returns one landmark set per face found in frame, in pixel
	// coordinates. Returns an empty slice if no faces are found.
	Extract(frame *gocv.Mat) ([]FaceLandmarks, error)

	// Close releases any resources held by the extractor.
	Close() error
}

// Starter is implemented by extractors that load their model out of
// process. Start returns once the extractor can serve frames.
type Starter interface {
	Start() error
}

// Config holds configuration options for landmark extraction.
type Config struct {
	// MaxFaces is the maximum number of faces to extract (default: 5).
	MaxFaces int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the face mesh service lookup.
	ScriptPath string

	// PythonPath overrides the interpreter lookup.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:        5,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
