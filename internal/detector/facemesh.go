package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	faceMeshScript = "face_mesh_service.py"
	idleTimeout    = 30 * time.Second
	startupTimeout = time.Minute
)

var (
	// ErrFaceMeshUnavailable is returned when the face mesh service script
	// cannot be located.
	ErrFaceMeshUnavailable = errors.New("face mesh service not found")

	// ErrFaceMeshNotReady is returned when the service exits or stalls
	// before announcing it is ready.
	ErrFaceMeshNotReady = errors.New("face mesh service not ready")
)

// FaceMesh implements LandmarkExtractor using a Python MediaPipe subprocess.
// Frames go in as a 4-byte big-endian length followed by JPEG bytes; each
// frame produces one JSON line with normalized landmarks.
type FaceMesh struct {
	config     Config
	scriptPath string
	pythonPath string
	logger     *zap.Logger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewFaceMesh creates a face mesh extractor.
// The Python process is started by Start or lazily on first extraction.
func NewFaceMesh(config Config, logger *zap.Logger) (*FaceMesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findScript(faceMeshScript)
	} else if _, err := os.Stat(scriptPath); err != nil {
		scriptPath = ""
	}
	if scriptPath == "" {
		return nil, ErrFaceMeshUnavailable
	}

	pythonPath := config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	if config.MaxFaces <= 0 {
		config.MaxFaces = DefaultConfig().MaxFaces
	}

	return &FaceMesh{
		config:     config,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
		logger:     logger,
	}, nil
}

// Extract sends the frame to the face mesh service and returns landmarks
// scaled to the frame's pixel size.
func (m *FaceMesh) Extract(frame *gocv.Mat) ([]FaceLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := m.stdin.Write(length); err != nil {
		m.kill()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := m.stdin.Write(data); err != nil {
		m.kill()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := m.stdout.ReadString('\n')
	if err != nil {
		m.kill()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Faces []jsonFace `json:"faces"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("face mesh service: %s", response.Error)
	}

	width, height := float64(frame.Cols()), float64(frame.Rows())
	result := make([]FaceLandmarks, len(response.Faces))
	for i, f := range response.Faces {
		result[i] = f.toFaceLandmarks(width, height)
	}

	m.resetIdleTimer()

	return result, nil
}

// Start launches the service and waits for it to load its model, so a
// missing interpreter or mediapipe install is reported up front.
func (m *FaceMesh) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStarted(); err != nil {
		return err
	}
	m.resetIdleTimer()
	return nil
}

// Close shuts down the Python process.
func (m *FaceMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown()
}

func (m *FaceMesh) ensureStarted() error {
	if m.started {
		return nil
	}

	m.cmd = exec.Command(m.pythonPath, m.scriptPath,
		"--max-faces", strconv.Itoa(m.config.MaxFaces),
		"--min-detection-confidence", strconv.FormatFloat(m.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(m.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	m.cmd.Stderr = os.Stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start face mesh service: %w", err)
	}

	m.logger.Info("face mesh service started",
		zap.String("python", m.pythonPath),
		zap.String("script", m.scriptPath),
		zap.Int("pid", m.cmd.Process.Pid))

	m.stdin = stdin
	m.stdout = bufio.NewReader(stdout)
	m.started = true

	if err := m.awaitReady(); err != nil {
		m.kill()
		return err
	}

	return nil
}

// awaitReady reads the service's first line, which it prints once the
// model is built.
func (m *FaceMesh) awaitReady() error {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	reader := m.stdout
	go func() {
		line, err := reader.ReadString('\n')
		done <- result{line, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-time.After(startupTimeout):
		return fmt.Errorf("%w: no ready line after %s", ErrFaceMeshNotReady, startupTimeout)
	}
	if r.err != nil {
		return fmt.Errorf("%w: %v", ErrFaceMeshNotReady, r.err)
	}

	var ready struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(r.line), &ready); err != nil || !ready.Ready {
		if ready.Error != "" {
			return fmt.Errorf("%w: %s", ErrFaceMeshNotReady, ready.Error)
		}
		return fmt.Errorf("%w: unexpected line %q", ErrFaceMeshNotReady, r.line)
	}
	return nil
}

// kill tears down a process whose pipe broke so the next call restarts it.
func (m *FaceMesh) kill() {
	if !m.started {
		return
	}
	if m.cmd.Process != nil {
		m.cmd.Process.Kill()
	}
	if err := m.shutdown(); err != nil {
		m.logger.Debug("face mesh service exited", zap.Error(err))
	}
}

func (m *FaceMesh) shutdown() error {
	if !m.started {
		return nil
	}

	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}

	if m.stdin != nil {
		m.stdin.Close()
	}

	err := m.cmd.Wait()
	m.started = false
	m.cmd = nil
	m.stdin = nil
	m.stdout = nil

	m.logger.Info("face mesh service stopped")

	return err
}

func (m *FaceMesh) resetIdleTimer() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(idleTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.shutdown()
	})
}

func findScript(name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".hajira", "scripts", name),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".hajira/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonFace represents one face from the Python service, in normalized
// image coordinates.
type jsonFace struct {
	Points [][2]float64 `json:"points"`
}

func (f jsonFace) toFaceLandmarks(width, height float64) FaceLandmarks {
	lm := FaceLandmarks{Points: make([]Point, len(f.Points))}
	for i, p := range f.Points {
		lm.Points[i] = Point{X: p[0] * width, Y: p[1] * height}
	}
	return lm
}
