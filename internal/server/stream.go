package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/app"
)

// FrameSource starts a stream session of encoded JPEG frames.
type FrameSource interface {
	Stream(ctx context.Context) (<-chan []byte, error)
}

// Switch reports whether the kiosk currently accepts sessions.
type Switch interface {
	IsEnabled() bool
}

// StreamHandler serves annotated kiosk frames as MJPEG.
type StreamHandler struct {
	source FrameSource
	kiosk  Switch
	logger *zap.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(source FrameSource, kiosk Switch, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{source: source, kiosk: kiosk, logger: logger}
}

// ServeHTTP streams MJPEG frames until the client goes away or the source ends.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.kiosk != nil && !h.kiosk.IsEnabled() {
		writeError(w, http.StatusServiceUnavailable, "Kiosk is disabled")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, err := h.source.Stream(ctx)
	switch {
	case errors.Is(err, app.ErrSessionBusy):
		writeError(w, http.StatusConflict, "Stream already in use")
		return
	case errors.Is(err, app.ErrDeviceUnavailable):
		h.logger.Warn("camera unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Camera unavailable")
		return
	case err != nil:
		h.logger.Error("start stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start stream")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for frame := range frames {
		if err := writePart(w, frame); err != nil {
			h.logger.Debug("stream client gone", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
