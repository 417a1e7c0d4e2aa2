// Package app wires capture, recognition, liveness and persistence into the
// attendance kiosk.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/config"
	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/enroll"
	"github.com/ayusman/hajira/internal/events"
	"github.com/ayusman/hajira/internal/liveness"
	"github.com/ayusman/hajira/internal/recognition"
	"github.com/ayusman/hajira/internal/store"
)

// Config holds the capabilities the application is assembled from.
type Config struct {
	Store  *store.Store
	Camera CameraFactory
	Faces  detector.FaceDetector
	// Landmarks may be nil, in which case subjects are marked without the
	// liveness challenge.
	Landmarks  detector.LandmarkExtractor
	Recognizer recognition.Factory
	Samples    enroll.SampleStore
	Hub        *events.Hub
	Tuning     config.Tuning
	Mirror     bool
	Liveness   bool
	Logger     *zap.Logger
}

// App is the attendance kiosk.
type App struct {
	config    Config
	store     *store.Store
	hub       *events.Hub
	matcher   *recognition.Matcher
	tracker   *liveness.Tracker
	policy    liveness.Policy
	processor *Processor
	streamer  *Streamer
	enroller  *enroll.Enroller
	logger    *zap.Logger

	enabled bool
	mu      sync.RWMutex
}

// New assembles an App. The liveness policy is chosen here once: the
// blink and head-turn challenge when landmarks are available and liveness is
// enabled, immediate marking otherwise.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hub == nil {
		cfg.Hub = events.NewHub(0)
	}
	if cfg.Recognizer == nil {
		cfg.Recognizer = recognition.NewLBPH
	}
	logger := cfg.Logger

	a := &App{
		config:  cfg,
		store:   cfg.Store,
		hub:     cfg.Hub,
		logger:  logger,
		enabled: true,
	}

	a.matcher = recognition.NewMatcher(cfg.Recognizer, recognitionThreshold(cfg.Tuning), logger.Named("recognition"))
	a.tracker = liveness.NewTracker(livenessThresholds(cfg.Tuning), logger.Named("liveness"))
	a.matcher.OnReload(a.tracker.Reset)

	recorder := &attendanceRecorder{
		repo:   cfg.Store.Attendance(),
		hub:    cfg.Hub,
		mode:   func() string { return a.policy.Name() },
		now:    time.Now,
		logger: logger.Named("attendance"),
	}

	if cfg.Landmarks != nil && cfg.Liveness {
		a.policy = liveness.NewChallengePolicy(a.tracker, recorder, a.publishAdvance, logger.Named("liveness"))
		logger.Info("using blink and head-turn liveness challenge")
	} else {
		a.policy = liveness.NewImmediatePolicy(a.tracker, recorder, logger.Named("liveness"))
		if cfg.Liveness {
			logger.Warn("landmark extraction not available, marking without liveness")
		} else {
			logger.Warn("liveness disabled, marking without liveness")
		}
	}

	a.processor = NewProcessor(ProcessorConfig{
		Faces:     cfg.Faces,
		Landmarks: cfg.Landmarks,
		Matcher:   a.matcher,
		Policy:    a.policy,
		FaceSize:  cfg.Tuning.FaceSize,
		Mirror:    cfg.Mirror,
		Logger:    logger.Named("processor"),
	})
	a.streamer = NewStreamer(StreamerConfig{
		Camera:    cfg.Camera,
		Processor: a.processor,
		Logger:    logger.Named("stream"),
	})
	a.enroller = enroll.NewEnroller(cfg.Faces, cfg.Samples, cfg.Store, cfg.Tuning.FaceSize, logger.Named("enroll"))

	return a
}

func recognitionThreshold(t config.Tuning) float64 {
	if t.RecognitionThreshold <= 0 {
		return recognition.DefaultThreshold
	}
	return t.RecognitionThreshold
}

func livenessThresholds(t config.Tuning) liveness.Thresholds {
	th := liveness.DefaultThresholds()
	if t.ClosedEyeThreshold > 0 {
		th.ClosedEye = t.ClosedEyeThreshold
	}
	if t.BlinkWindow > 0 {
		th.BlinkWindow = t.BlinkWindow
	}
	if t.HeadTurnThreshold > 0 {
		th.HeadTurn = t.HeadTurnThreshold
	}
	return th
}

func (a *App) publishAdvance(id recognition.Identity, from, to liveness.Stage) {
	a.hub.Publish(events.Event{
		Type:      events.TypeLivenessAdvanced,
		SubjectID: id.ID,
		Name:      id.Name,
		Stage:     to.String(),
		Mode:      a.policy.Name(),
		At:        time.Now(),
	})
}

// SetEnabled turns the kiosk on or off. A disabled kiosk refuses new stream
// sessions; running sessions are not interrupted.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	a.logger.Info("kiosk toggled", zap.Bool("enabled", enabled))
}

// IsEnabled returns whether the kiosk accepts stream sessions.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// ReloadRecognizer retrains the recognizer from every stored sample and
// resets all liveness records.
func (a *App) ReloadRecognizer(ctx context.Context) error {
	set, err := a.enroller.TrainingSet(ctx)
	defer set.Close()
	if err != nil {
		return fmt.Errorf("build training set: %w", err)
	}

	if err := a.matcher.Reload(set); err != nil {
		return err
	}

	a.hub.Publish(events.Event{
		Type: events.TypeRecognizerReload,
		At:   time.Now(),
	})
	return nil
}

// Enroll stores a face sample from photo and retrains the recognizer.
func (a *App) Enroll(ctx context.Context, subjectID string, photo []byte) (*store.Sample, error) {
	sample, err := a.enroller.Enroll(ctx, subjectID, photo)
	if err != nil {
		return nil, err
	}
	if err := a.ReloadRecognizer(ctx); err != nil {
		return sample, fmt.Errorf("sample stored, retrain failed: %w", err)
	}
	return sample, nil
}

// DeleteSample removes a face sample and retrains the recognizer.
func (a *App) DeleteSample(ctx context.Context, sampleID string) error {
	if err := a.enroller.DeleteSample(ctx, sampleID); err != nil {
		return err
	}
	return a.ReloadRecognizer(ctx)
}

// DeleteSubject removes a subject with its stored samples and retrains the
// recognizer.
func (a *App) DeleteSubject(ctx context.Context, subjectID string) error {
	samples, err := a.store.Samples().ListBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	for _, s := range samples {
		if err := a.enroller.DeleteSample(ctx, s.ID); err != nil {
			return fmt.Errorf("delete sample %s: %w", s.ID, err)
		}
	}
	if err := a.store.Subjects().Delete(ctx, subjectID); err != nil {
		return err
	}
	return a.ReloadRecognizer(ctx)
}

// Close releases the recognizer and vision capabilities.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(a.matcher.Close())
	if a.config.Landmarks != nil {
		keep(a.config.Landmarks.Close())
	}
	if a.config.Faces != nil {
		keep(a.config.Faces.Close())
	}
	return firstErr
}

func (a *App) Store() *store.Store           { return a.store }
func (a *App) Hub() *events.Hub              { return a.hub }
func (a *App) Matcher() *recognition.Matcher { return a.matcher }
func (a *App) Tracker() *liveness.Tracker    { return a.tracker }
func (a *App) Policy() liveness.Policy       { return a.policy }
func (a *App) Processor() *Processor         { return a.processor }
func (a *App) Streamer() *Streamer           { return a.streamer }
func (a *App) Enroller() *enroll.Enroller    { return a.enroller }
