package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/hajira/internal/capture"
)

// brokenCamera fails to open.
type brokenCamera struct {
	closes int
}

func (c *brokenCamera) Open() error                   { return errors.New("no such device") }
func (c *brokenCamera) Close() error                  { c.closes++; return nil }
func (c *brokenCamera) ReadFrame() (*gocv.Mat, error) { return nil, capture.ErrCameraNotOpen }
func (c *brokenCamera) IsOpen() bool                  { return false }

func mockFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := newFrame()
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func newStreamApp(t *testing.T, cam capture.Camera) *testApp {
	t.Helper()
	a := newTestApp(t, Config{Camera: func() capture.Camera { return cam }})
	a.train(t)
	return a
}

// waitClosed drains ch and fails if it is not closed in time.
func waitClosed(t *testing.T, ch <-chan []byte) int {
	t.Helper()
	n := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
			n++
		case <-timeout:
			t.Fatal("stream did not close")
			return n
		}
	}
}

func TestStreamer_EndOfFeed(t *testing.T) {
	cam := capture.NewMockCamera(mockFrames(t, 3), false)
	a := newStreamApp(t, cam)

	out, err := a.Streamer().Stream(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, waitClosed(t, out))
	assert.Equal(t, 1, cam.Opens())
	assert.Equal(t, 1, cam.Closes())
	assert.False(t, a.Streamer().Active())
}

func TestStreamer_FramesAreJPEG(t *testing.T) {
	cam := capture.NewMockCamera(mockFrames(t, 1), false)
	a := newStreamApp(t, cam)

	out, err := a.Streamer().Stream(context.Background())
	require.NoError(t, err)

	data := <-out
	require.Greater(t, len(data), 4)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "JPEG start of image")

	waitClosed(t, out)
}

func TestStreamer_CancelReleasesOnce(t *testing.T) {
	cam := capture.NewMockCamera(mockFrames(t, 2), true)
	a := newStreamApp(t, cam)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := a.Streamer().Stream(ctx)
	require.NoError(t, err)

	<-out
	<-out
	cancel()

	waitClosed(t, out)
	assert.Equal(t, 1, cam.Closes())
	assert.False(t, a.Streamer().Active())
}

func TestStreamer_ReadErrorAborts(t *testing.T) {
	cam := capture.NewMockCamera(mockFrames(t, 2), true)
	cam.SetReadError(errors.New("usb unplugged"))
	a := newStreamApp(t, cam)

	out, err := a.Streamer().Stream(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, waitClosed(t, out))
	assert.Equal(t, 1, cam.Closes())
}

func TestStreamer_RejectsSecondSession(t *testing.T) {
	cam := capture.NewMockCamera(mockFrames(t, 1), true)
	a := newStreamApp(t, cam)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := a.Streamer().Stream(ctx)
	require.NoError(t, err)
	<-out

	_, err = a.Streamer().Stream(context.Background())
	assert.ErrorIs(t, err, ErrSessionBusy)

	cancel()
	waitClosed(t, out)

	// The device is free again once the first session ends.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	out2, err := a.Streamer().Stream(ctx2)
	require.NoError(t, err)
	<-out2
	cancel2()
	waitClosed(t, out2)

	assert.Equal(t, 2, cam.Closes())
}

func TestStreamer_DeviceUnavailable(t *testing.T) {
	cam := &brokenCamera{}
	a := newStreamApp(t, cam)

	_, err := a.Streamer().Stream(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, 1, cam.closes)
	assert.False(t, a.Streamer().Active())
}
