package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

const cascadeFile = "haarcascade_frontalface_default.xml"

// ErrCascadeNotFound is returned when no Haar cascade file could be loaded.
var ErrCascadeNotFound = errors.New("face cascade not found")

// CascadeDetector implements FaceDetector with an OpenCV Haar cascade.
type CascadeDetector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
	mu           sync.Mutex
}

// NewCascadeDetector loads the frontal face cascade from path, falling back
// to the usual OpenCV install locations when path is empty or unreadable.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()

	candidates := []string{}
	if path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, cascadeCandidates()...)

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if classifier.Load(candidate) {
			return &CascadeDetector{
				classifier:   classifier,
				scaleFactor:  1.3,
				minNeighbors: 5,
				minSize:      image.Pt(60, 60),
			}, nil
		}
	}

	classifier.Close()
	return nil, fmt.Errorf("%w: tried %v", ErrCascadeNotFound, candidates)
}

// Detect returns the faces found in a grayscale frame.
func (d *CascadeDetector) Detect(gray *gocv.Mat) ([]image.Rectangle, error) {
	if gray == nil || gray.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rects := d.classifier.DetectMultiScaleWithParams(
		*gray,
		d.scaleFactor,
		d.minNeighbors,
		0,
		d.minSize,
		image.Point{},
	)
	return rects, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

func cascadeCandidates() []string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	return []string{
		filepath.Join("models", cascadeFile),
		filepath.Join(execDir, "models", cascadeFile),
		cascadeFile,
		filepath.Join("/usr/local/share/opencv4/haarcascades", cascadeFile),
		filepath.Join("/usr/share/opencv4/haarcascades", cascadeFile),
		filepath.Join("/opt/homebrew/share/opencv4/haarcascades", cascadeFile),
	}
}
