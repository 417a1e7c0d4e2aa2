package detector

import (
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestMockFaceDetector(t *testing.T) {
	box := image.Rect(10, 10, 60, 60)
	d := NewMockFaceDetector(box)
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer frame.Close()

	faces, err := d.Detect(&frame)
	require.NoError(t, err)
	assert.Equal(t, []image.Rectangle{box}, faces)

	d.SetError(errors.New("cascade failure"))
	_, err = d.Detect(&frame)
	assert.Error(t, err)
}

func TestMockExtractor_Playback(t *testing.T) {
	box := image.Rect(0, 0, 100, 100)
	first := []FaceLandmarks{ClosedEyesLandmarks(box)}
	second := []FaceLandmarks{OpenEyesLandmarks(box)}

	m := NewMockExtractor(first, second)
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()

	got, err := m.Extract(&frame)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got[0].AverageEyeOpenness(), 1e-6)

	// the last result repeats
	for i := 0; i < 2; i++ {
		got, err = m.Extract(&frame)
		require.NoError(t, err)
		assert.InDelta(t, 0.32, got[0].AverageEyeOpenness(), 1e-6)
	}
	assert.Equal(t, 3, m.Calls())
}

func TestNewFaceMesh_MissingScript(t *testing.T) {
	_, err := NewFaceMesh(Config{ScriptPath: "/nonexistent/face_mesh_service.py"}, nil)
	assert.ErrorIs(t, err, ErrFaceMeshUnavailable)
}

// stubService writes a shell script standing in for the Python service.
func stubService(t *testing.T, body string) Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub service needs a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found")
	}

	script := filepath.Join(t.TempDir(), faceMeshScript)
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	cfg := DefaultConfig()
	cfg.ScriptPath = script
	cfg.PythonPath = sh
	return cfg
}

func TestFaceMesh_Start(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ready", "echo '{\"ready\": true}'\ncat > /dev/null\n", false},
		{"import failure", "echo 'ModuleNotFoundError: mediapipe' >&2\nexit 1\n", true},
		{"service error", "echo '{\"ready\": false, \"error\": \"no model\"}'\n", true},
		{"garbage", "echo hello\ncat > /dev/null\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFaceMesh(stubService(t, tt.body), nil)
			require.NoError(t, err)
			defer m.Close()

			err = m.Start()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFaceMeshNotReady)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, m.Close())
		})
	}
}

func TestJSONFace_Scaling(t *testing.T) {
	f := jsonFace{Points: [][2]float64{{0.5, 0.25}, {1, 1}}}
	lm := f.toFaceLandmarks(640, 480)
	require.Len(t, lm.Points, 2)
	assert.Equal(t, Point{X: 320, Y: 120}, lm.Points[0])
	assert.Equal(t, Point{X: 640, Y: 480}, lm.Points[1])
}

func TestNewCascadeDetector_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	d, err := NewCascadeDetector("")
	if err != nil {
		t.Skipf("skipping test - cascade not installed: %v", err)
	}
	defer d.Close()

	blank := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC1)
	defer blank.Close()

	faces, err := d.Detect(&blank)
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestLargest(t *testing.T) {
	_, ok := Largest(nil)
	assert.False(t, ok)

	small := image.Rect(0, 0, 10, 10)
	big := image.Rect(50, 50, 150, 150)
	got, ok := Largest([]image.Rectangle{small, big, image.Rect(0, 0, 20, 20)})
	require.True(t, ok)
	assert.Equal(t, big, got)
}

func TestCropFace(t *testing.T) {
	gray := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC1)
	defer gray.Close()

	face, ok := CropFace(gray, image.Rect(300, 200, 400, 300), 200)
	require.True(t, ok, "partially outside box is clipped")
	defer face.Close()
	assert.Equal(t, 200, face.Cols())
	assert.Equal(t, 200, face.Rows())

	empty, ok := CropFace(gray, image.Rect(400, 300, 500, 400), 200)
	defer empty.Close()
	assert.False(t, ok)
}
