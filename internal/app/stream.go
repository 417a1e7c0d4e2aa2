package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/hajira/internal/capture"
)

var (
	// ErrSessionBusy is returned when a stream session is already running.
	ErrSessionBusy = errors.New("stream session already active")

	// ErrDeviceUnavailable is returned when the video source cannot be opened.
	ErrDeviceUnavailable = errors.New("video device unavailable")
)

// DefaultJPEGQuality is used when StreamerConfig.Quality is zero.
const DefaultJPEGQuality = 80

// CameraFactory returns a fresh, unopened camera for one session.
type CameraFactory func() capture.Camera

// StreamerConfig configures a Streamer.
type StreamerConfig struct {
	Camera    CameraFactory
	Processor *Processor
	Quality   int
	Logger    *zap.Logger
}

// Streamer owns the video source for at most one session at a time and turns
// it into a sequence of annotated JPEG frames.
type Streamer struct {
	newCamera CameraFactory
	processor *Processor
	quality   int
	logger    *zap.Logger

	mu     sync.Mutex
	active bool
}

func NewStreamer(cfg StreamerConfig) *Streamer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultJPEGQuality
	}
	return &Streamer{
		newCamera: cfg.Camera,
		processor: cfg.Processor,
		quality:   cfg.Quality,
		logger:    cfg.Logger,
	}
}

// Active reports whether a session is running.
func (s *Streamer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stream opens the video source and starts a session. Frames are produced
// only as fast as the caller receives them. The channel is closed when the
// source ends, an unrecoverable error occurs or ctx is cancelled; the device
// is released before that happens.
func (s *Streamer) Stream(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.active = true
	s.mu.Unlock()

	cam := s.newCamera()
	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := cam.Close(); err != nil {
				s.logger.Warn("close camera", zap.Error(err))
			}
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
			s.logger.Info("stream session ended")
		})
	}

	if err := cam.Open(); err != nil {
		release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.logger.Info("stream session started")

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer release()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("stream session panicked", zap.Any("panic", r))
			}
		}()
		s.run(ctx, cam, out)
	}()

	return out, nil
}

func (s *Streamer) run(ctx context.Context, cam capture.Camera, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := cam.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			s.logger.Info("video source ended")
			return
		}
		if err != nil {
			s.logger.Error("read frame", zap.Error(err))
			return
		}

		// Process and encode failures cost one frame; only the source
		// failing ends the session.
		data, err := s.render(ctx, frame)
		if err != nil {
			s.logger.Debug("skipping frame", zap.Error(err))
			continue
		}

		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

// render processes one frame and encodes it as JPEG. The frame is closed.
func (s *Streamer) render(ctx context.Context, frame *gocv.Mat) ([]byte, error) {
	defer frame.Close()

	if _, err := s.processor.Process(ctx, frame); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, s.quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close; hand out a copy.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
