package app

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/liveness"
	"github.com/ayusman/hajira/internal/recognition"
)

// ErrEmptyFrame is returned by Process for a nil or empty frame.
var ErrEmptyFrame = errors.New("empty frame")

// Messages for faces that never reach the liveness policy.
const (
	MsgUnknown       = "Unknown"
	MsgNotRecognized = "Face not recognized"
	MsgLookAtCamera  = "Look at camera"
)

// Detection is one face found in a frame and what the kiosk decided about it.
type Detection struct {
	Box      image.Rectangle
	Identity recognition.Identity
	Distance float64
	Known    bool
	Status   liveness.Status
	Message  string
}

// Label is the name drawn above the box.
func (d Detection) Label() string {
	if !d.Known {
		return MsgUnknown
	}
	return d.Identity.Name
}

// ProcessorConfig wires the per-frame capabilities.
type ProcessorConfig struct {
	Faces     detector.FaceDetector
	Landmarks detector.LandmarkExtractor
	Matcher   *recognition.Matcher
	Policy    liveness.Policy
	FaceSize  int
	Mirror    bool
	Logger    *zap.Logger
}

// Processor runs detection, recognition and liveness on single frames and
// draws the result onto the frame.
type Processor struct {
	faces     detector.FaceDetector
	landmarks detector.LandmarkExtractor
	matcher   *recognition.Matcher
	policy    liveness.Policy
	faceSize  int
	mirror    bool
	logger    *zap.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.FaceSize <= 0 {
		cfg.FaceSize = 200
	}
	return &Processor{
		faces:     cfg.Faces,
		landmarks: cfg.Landmarks,
		matcher:   cfg.Matcher,
		policy:    cfg.Policy,
		faceSize:  cfg.FaceSize,
		mirror:    cfg.Mirror,
		logger:    cfg.Logger,
	}
}

// Policy returns the liveness policy in use.
func (p *Processor) Policy() liveness.Policy {
	return p.policy
}

// Process analyzes frame in place: it may be mirrored and is annotated with
// a box, name and status per face. Capability failures degrade the frame
// rather than fail it.
func (p *Processor) Process(ctx context.Context, frame *gocv.Mat) ([]Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	if p.mirror {
		gocv.Flip(*frame, frame, 1)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	boxes, err := p.faces.Detect(&gray)
	if err != nil {
		p.logger.Warn("face detection failed", zap.Error(err))
		return nil, nil
	}

	landmarksFor := p.frameLandmarks(frame)

	detections := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		det := p.processFace(ctx, gray, box, landmarksFor)
		detections = append(detections, det)
	}

	for _, det := range detections {
		annotate(frame, det)
	}

	return detections, nil
}

func (p *Processor) processFace(ctx context.Context, gray gocv.Mat, box image.Rectangle, landmarksFor func(image.Rectangle) *detector.FaceLandmarks) Detection {
	det := Detection{Box: box, Message: MsgNotRecognized}

	face, ok := detector.CropFace(gray, box, p.faceSize)
	defer face.Close()
	if !ok {
		return det
	}

	match, err := p.matcher.Match(face)
	switch {
	case errors.Is(err, recognition.ErrModelNotTrained):
		det.Message = MsgLookAtCamera
		return det
	case err != nil:
		p.logger.Debug("recognition failed", zap.Error(err))
		return det
	}

	det.Distance = match.Distance
	if !match.Accepted {
		return det
	}

	det.Known = true
	det.Identity = match.Identity
	det.Status = p.policy.Step(ctx, match.Identity, func() *detector.FaceLandmarks {
		return landmarksFor(box)
	})
	det.Message = det.Status.Message
	return det
}

// frameLandmarks returns a lookup that extracts landmarks at most once per
// frame, on first use.
func (p *Processor) frameLandmarks(frame *gocv.Mat) func(image.Rectangle) *detector.FaceLandmarks {
	var (
		done bool
		sets []detector.FaceLandmarks
	)
	return func(box image.Rectangle) *detector.FaceLandmarks {
		if p.landmarks == nil {
			return nil
		}
		if !done {
			done = true
			var err error
			sets, err = p.landmarks.Extract(frame)
			if err != nil {
				p.logger.Debug("landmark extraction failed", zap.Error(err))
				sets = nil
			}
		}
		return detector.ForBox(sets, box)
	}
}
