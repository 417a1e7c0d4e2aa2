package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/capture"
	"github.com/ayusman/hajira/internal/config"
	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/enroll"
	"github.com/ayusman/hajira/internal/events"
	"github.com/ayusman/hajira/internal/recognition"
	"github.com/ayusman/hajira/internal/store"
)

// Build opens the store and vision capabilities described by cfg and returns
// a ready App with its recognizer trained. The caller closes both the App and
// the returned store.
func Build(ctx context.Context, cfg *config.Config, hub *events.Hub, logger *zap.Logger) (*App, *store.Store, error) {
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	samples, err := NewSampleStore(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	faces, err := detector.NewCascadeDetector(cfg.CascadePath)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load face detector: %w", err)
	}

	// Try MediaPipe first, fall back to marking without liveness.
	var landmarks detector.LandmarkExtractor
	if cfg.LivenessEnabled {
		dcfg := detector.DefaultConfig()
		dcfg.ScriptPath = cfg.FaceMeshScript
		dcfg.PythonPath = cfg.PythonPath
		if mesh, err := detector.NewFaceMesh(dcfg, logger.Named("facemesh")); err == nil {
			landmarks = StartLandmarks(mesh, logger)
		} else {
			logger.Warn("face mesh not available", zap.Error(err))
		}
	}

	camCfg := capture.Config{
		Source: cfg.CameraSource,
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
		FPS:    cfg.FPS,
	}

	a := New(Config{
		Store:      st,
		Camera:     func() capture.Camera { return capture.NewCamera(camCfg) },
		Faces:      faces,
		Landmarks:  landmarks,
		Recognizer: recognition.NewLBPH,
		Samples:    samples,
		Hub:        hub,
		Tuning:     cfg.Tuning,
		Mirror:     cfg.MirrorFrames,
		Liveness:   cfg.LivenessEnabled,
		Logger:     logger,
	})

	if err := a.ReloadRecognizer(ctx); err != nil {
		a.Close()
		st.Close()
		return nil, nil, fmt.Errorf("train recognizer: %w", err)
	}

	return a, st, nil
}

// OpenStore opens the configured database, creating the data directory for
// SQLite.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	if cfg.DBDriver == store.DriverSQLite && cfg.DBDSN == "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	st, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// NewSampleStore returns the configured face sample store.
func NewSampleStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (enroll.SampleStore, error) {
	switch cfg.SampleStore {
	case "fs", "":
		return enroll.NewFSStore(cfg.SamplesDir())
	case "minio":
		return enroll.NewMinioStore(ctx, enroll.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		}, logger.Named("minio"))
	default:
		return nil, errors.New("unknown sample store " + cfg.SampleStore)
	}
}

// StartLandmarks warms up ex when it supports it. An extractor that cannot
// start is closed and nil is returned, which selects the immediate policy.
func StartLandmarks(ex detector.LandmarkExtractor, logger *zap.Logger) detector.LandmarkExtractor {
	if ex == nil {
		return nil
	}
	starter, ok := ex.(detector.Starter)
	if !ok {
		return ex
	}
	if err := starter.Start(); err != nil {
		logger.Warn("landmark extractor failed to start, liveness disabled", zap.Error(err))
		ex.Close()
		return nil
	}
	return ex
}
