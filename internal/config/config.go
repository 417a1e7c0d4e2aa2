// Package config loads runtime settings from the environment and an optional
// YAML tuning file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "HAJIRA"

type Config struct {
	// Server
	Environment string `envconfig:"ENV" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	StaticDir   string `envconfig:"STATIC_DIR" default:"web"`
	DataDir     string `envconfig:"DATA_DIR" default:"data"`
	TuningFile  string `envconfig:"TUNING_FILE"`

	// Database
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN    string `envconfig:"DB_DSN"`

	// Camera
	CameraSource string `envconfig:"CAMERA_SOURCE" default:"0"`
	FrameWidth   int    `envconfig:"FRAME_WIDTH" default:"640"`
	FrameHeight  int    `envconfig:"FRAME_HEIGHT" default:"480"`
	FPS          int    `envconfig:"FPS" default:"15"`
	MirrorFrames bool   `envconfig:"MIRROR_FRAMES" default:"true"`

	// Vision
	CascadePath     string `envconfig:"CASCADE_PATH"`
	FaceMeshScript  string `envconfig:"FACEMESH_SCRIPT"`
	PythonPath      string `envconfig:"PYTHON_PATH"`
	LivenessEnabled bool   `envconfig:"LIVENESS" default:"true"`

	Tuning Tuning

	// Sample storage
	SampleStore string `envconfig:"SAMPLE_STORE" default:"fs"`
	Minio       Minio

	MQTT MQTT

	// Hooks
	HooksDir    string        `envconfig:"HOOKS_DIR" default:"hooks"`
	HookTimeout time.Duration `envconfig:"HOOK_TIMEOUT" default:"5s"`
}

// Tuning holds the recognition and liveness thresholds.
// Environment values can be overridden by a YAML tuning file.
type Tuning struct {
	ClosedEyeThreshold   float64       `envconfig:"CLOSED_EYE_THRESHOLD" default:"0.25" yaml:"closed_eye_threshold"`
	BlinkWindow          time.Duration `envconfig:"BLINK_WINDOW" default:"1s" yaml:"blink_window"`
	HeadTurnThreshold    float64       `envconfig:"HEAD_TURN_THRESHOLD" default:"0.3" yaml:"head_turn_threshold"`
	RecognitionThreshold float64       `envconfig:"RECOGNITION_THRESHOLD" default:"65" yaml:"recognition_threshold"`
	FaceSize             int           `envconfig:"FACE_SIZE" default:"200" yaml:"face_size"`
}

type Minio struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"hajira-faces"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type MQTT struct {
	Host     string `envconfig:"MQTT_HOST"`
	Port     int    `envconfig:"MQTT_PORT" default:"1883"`
	User     string `envconfig:"MQTT_USER"`
	Password string `envconfig:"MQTT_PASSWORD"`
	ClientID string `envconfig:"MQTT_CLIENT_ID" default:"hajira"`
	Topic    string `envconfig:"MQTT_TOPIC" default:"hajira"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	switch cfg.DBDriver {
	case "sqlite", "mysql":
	default:
		return nil, fmt.Errorf("load config: unsupported db driver %q", cfg.DBDriver)
	}
	switch cfg.SampleStore {
	case "fs", "minio":
	default:
		return nil, fmt.Errorf("load config: unsupported sample store %q", cfg.SampleStore)
	}

	if cfg.TuningFile != "" {
		if err := cfg.Tuning.LoadFile(cfg.TuningFile); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// LoadFile overlays the thresholds present in the YAML file at path.
// Keys missing from the file keep their current values.
func (t *Tuning) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse tuning file: %w", err)
	}
	if t.BlinkWindow <= 0 || t.FaceSize <= 0 {
		return fmt.Errorf("tuning file %s: blink_window and face_size must be positive", path)
	}
	return nil
}

// DSN returns the database DSN, defaulting to a SQLite file in the data dir.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return filepath.Join(c.DataDir, "hajira.db")
}

// SamplesDir is where face samples live when the filesystem store is used.
func (c *Config) SamplesDir() string {
	return filepath.Join(c.DataDir, "faces")
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
