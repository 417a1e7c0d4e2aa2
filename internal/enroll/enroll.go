package enroll

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/recognition"
	"github.com/ayusman/hajira/internal/store"
)

var (
	// ErrNoFace is returned when an enrollment photo contains no detectable face.
	ErrNoFace = errors.New("no face found in photo")

	// ErrInvalidImage is returned when the photo cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

// DefaultFaceSize is the side of the square grayscale crops used for training
// and matching.
const DefaultFaceSize = 200

// Enroller stores face samples for subjects and builds training sets.
type Enroller struct {
	detector detector.FaceDetector
	samples  SampleStore
	store    *store.Store
	faceSize int
	logger   *zap.Logger
}

// NewEnroller creates an Enroller. faceSize <= 0 uses DefaultFaceSize.
func NewEnroller(fd detector.FaceDetector, samples SampleStore, st *store.Store, faceSize int, logger *zap.Logger) *Enroller {
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enroller{
		detector: fd,
		samples:  samples,
		store:    st,
		faceSize: faceSize,
		logger:   logger,
	}
}

// Enroll crops the largest face in photo, stores it as a new sample for the
// subject and returns the sample. The recognizer is not retrained here.
func (e *Enroller) Enroll(ctx context.Context, subjectID string, photo []byte) (*store.Sample, error) {
	if _, err := e.store.Subjects().GetByID(ctx, subjectID); err != nil {
		return nil, err
	}

	img, err := gocv.IMDecode(photo, gocv.IMReadColor)
	if err != nil {
		return nil, ErrInvalidImage
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrInvalidImage
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	boxes, err := e.detector.Detect(&gray)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	box, ok := detector.Largest(boxes)
	if !ok {
		return nil, ErrNoFace
	}

	face, ok := detector.CropFace(gray, box, e.faceSize)
	defer face.Close()
	if !ok {
		return nil, ErrNoFace
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, face)
	if err != nil {
		return nil, fmt.Errorf("encode face: %w", err)
	}
	defer buf.Close()

	key := path.Join(subjectID, uuid.New().String()+".jpg")
	if err := e.samples.Put(ctx, key, buf.GetBytes()); err != nil {
		return nil, err
	}

	sample, err := e.store.Samples().Create(ctx, subjectID, key)
	if err != nil {
		if derr := e.samples.Delete(ctx, key); derr != nil {
			e.logger.Warn("remove orphaned sample", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("save sample: %w", err)
	}

	e.logger.Info("face sample enrolled",
		zap.String("subject", subjectID),
		zap.String("sample", sample.ID),
		zap.Int("faces_in_photo", len(boxes)))

	return sample, nil
}

// DeleteSample removes a sample row and its stored image.
func (e *Enroller) DeleteSample(ctx context.Context, sampleID string) error {
	sample, err := e.store.Samples().GetByID(ctx, sampleID)
	if err != nil {
		return err
	}
	if err := e.store.Samples().Delete(ctx, sampleID); err != nil {
		return err
	}
	if err := e.samples.Delete(ctx, sample.ObjectKey); err != nil && !errors.Is(err, ErrSampleNotFound) {
		return err
	}
	return nil
}

// TrainingSet loads every subject's samples under one label per subject.
// Labels are assigned 1..n in subject order. A subject without samples falls
// back to its profile photo when one exists. Unreadable samples are skipped.
// The caller must Close the returned set.
func (e *Enroller) TrainingSet(ctx context.Context) (recognition.TrainingSet, error) {
	set := recognition.TrainingSet{Table: make(map[int]recognition.Identity)}

	subjects, err := e.store.Subjects().List(ctx)
	if err != nil {
		return set, fmt.Errorf("list subjects: %w", err)
	}
	samples, err := e.store.Samples().List(ctx)
	if err != nil {
		return set, fmt.Errorf("list samples: %w", err)
	}

	bySubject := make(map[string][]store.Sample)
	for _, s := range samples {
		bySubject[s.SubjectID] = append(bySubject[s.SubjectID], s)
	}

	for i, sub := range subjects {
		label := i + 1
		set.Table[label] = recognition.Identity{ID: sub.ID, Name: sub.Name}

		loaded := 0
		for _, s := range bySubject[sub.ID] {
			data, err := e.samples.Get(ctx, s.ObjectKey)
			if err != nil {
				e.logger.Warn("skip unreadable sample",
					zap.String("subject", sub.ID), zap.String("key", s.ObjectKey), zap.Error(err))
				continue
			}
			if face, ok := e.decodeFace(data); ok {
				set.Faces = append(set.Faces, face)
				set.Labels = append(set.Labels, label)
				loaded++
			}
		}

		if loaded == 0 && sub.PhotoPath != "" {
			if data, err := os.ReadFile(sub.PhotoPath); err == nil {
				if face, ok := e.decodeFace(data); ok {
					set.Faces = append(set.Faces, face)
					set.Labels = append(set.Labels, label)
					loaded++
				}
			}
		}

		if loaded == 0 {
			e.logger.Debug("subject has no training faces", zap.String("subject", sub.ID))
		}
	}

	return set, nil
}

func (e *Enroller) decodeFace(data []byte) (gocv.Mat, bool) {
	img, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return gocv.Mat{}, false
	}
	defer img.Close()
	if img.Empty() {
		return gocv.Mat{}, false
	}

	face := gocv.NewMat()
	gocv.Resize(img, &face, image.Pt(e.faceSize, e.faceSize), 0, 0, gocv.InterpolationLinear)
	return face, true
}
