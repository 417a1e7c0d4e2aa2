package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCamera_Defaults(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   Config
	}{
		{
			name:   "empty config",
			config: Config{},
			want:   Config{Source: "0", Width: DefaultWidth, Height: DefaultHeight, FPS: DefaultFPS},
		},
		{
			name:   "explicit device",
			config: Config{Source: "1", Width: 1280, Height: 720, FPS: 30},
			want:   Config{Source: "1", Width: 1280, Height: 720, FPS: 30},
		},
		{
			name:   "stream url keeps size defaults",
			config: Config{Source: "rtsp://10.0.0.5/stream"},
			want:   Config{Source: "rtsp://10.0.0.5/stream", Width: DefaultWidth, Height: DefaultHeight, FPS: DefaultFPS},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam, ok := NewCamera(tt.config).(*cameraImpl)
			require.True(t, ok)
			assert.Equal(t, tt.want, cam.config)
			assert.False(t, cam.IsOpen(), "camera should not be running initially")
		})
	}
}

func TestSourceArg(t *testing.T) {
	assert.Equal(t, 0, sourceArg("0"))
	assert.Equal(t, 2, sourceArg("2"))
	assert.Equal(t, "http://cam.local/video", sourceArg("http://cam.local/video"))
	assert.Equal(t, "clip.mp4", sourceArg("clip.mp4"))
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(Config{})

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(Config{})

	assert.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(Config{Source: "0"})

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	assert.True(t, cam.IsOpen())

	mat, err := cam.ReadFrame()
	if err == nil {
		require.NotNil(t, mat)
		assert.False(t, mat.Empty())
		if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
			t.Logf("Frame dimensions: %dx%d (camera may not support %dx%d)", mat.Cols(), mat.Rows(), DefaultWidth, DefaultHeight)
		}
		mat.Close()
	} else {
		t.Logf("ReadFrame() on a live device failed: %v", err)
	}

	require.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
}
