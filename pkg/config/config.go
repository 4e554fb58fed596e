// Package config provides configuration management for FaceLock.
// It loads configuration from YAML files with sensible defaults.
// Every detection threshold lives here so deployments and tests can
// tune them without touching package constants.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all FaceLock configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Lock        LockConfig        `yaml:"lock"`
	Actions     ActionsConfig     `yaml:"actions"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// RecognitionConfig holds face recognition settings.
type RecognitionConfig struct {
	// DistanceThreshold is the embedding distance below which a match
	// is accepted. Adjustable at runtime from the track loop.
	DistanceThreshold float64 `yaml:"distance_threshold"`
	ModelPath         string  `yaml:"model_path"`
}

// LockConfig holds lock state machine settings.
type LockConfig struct {
	// GateRadius is the spatial gate in pixels: candidates whose
	// centroid differs from the last locked centroid by more than this
	// in either axis are skipped before identity re-verification.
	GateRadius float64 `yaml:"gate_radius"`
	// MaxFailures is the number of consecutive frames the locked face
	// may go unverified before the lock is released automatically.
	MaxFailures int    `yaml:"max_failures"`
	HistoryDir  string `yaml:"history_dir"`
}

// ActionsConfig holds action detection thresholds.
type ActionsConfig struct {
	BlinkEARThreshold float64 `yaml:"blink_ear_threshold"`
	SmileMARThreshold float64 `yaml:"smile_mar_threshold"`
	MovementThreshold float64 `yaml:"movement_threshold"` // pixels
	BlinkRefractoryMs int     `yaml:"blink_refractory_ms"`
	SmileRefractoryMs int     `yaml:"smile_refractory_ms"`
}

// StorageConfig holds identity database settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facelock")
	return &Config{
		Camera: CameraConfig{
			Device: "/dev/video0",
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Recognition: RecognitionConfig{
			DistanceThreshold: 0.34,
			ModelPath:         filepath.Join(dataDir, "models"),
		},
		Lock: LockConfig{
			GateRadius:  150,
			MaxFailures: 15,
			HistoryDir:  filepath.Join(dataDir, "history"),
		},
		Actions: ActionsConfig{
			BlinkEARThreshold: 0.21,
			SmileMARThreshold: 0.35,
			MovementThreshold: 30,
			BlinkRefractoryMs: 300,
			SmileRefractoryMs: 1000,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			EncryptionEnabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "facelock.log"),
		},
	}
}

// Load loads configuration from the specified file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/facelock/facelock.yaml"); err == nil {
		return Load("/etc/facelock/facelock.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facelock/facelock.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("invalid camera FPS: %d", c.Camera.FPS)
	}

	if c.Recognition.DistanceThreshold <= 0 || c.Recognition.DistanceThreshold > 1 {
		return fmt.Errorf("distance_threshold must be in (0, 1], got %f", c.Recognition.DistanceThreshold)
	}

	if c.Lock.GateRadius <= 0 {
		return fmt.Errorf("gate_radius must be positive, got %f", c.Lock.GateRadius)
	}
	if c.Lock.MaxFailures <= 0 {
		return fmt.Errorf("max_failures must be positive, got %d", c.Lock.MaxFailures)
	}

	if c.Actions.BlinkEARThreshold <= 0 || c.Actions.BlinkEARThreshold >= 1 {
		return fmt.Errorf("blink_ear_threshold must be in (0, 1), got %f", c.Actions.BlinkEARThreshold)
	}
	if c.Actions.SmileMARThreshold <= 0 {
		return fmt.Errorf("smile_mar_threshold must be positive, got %f", c.Actions.SmileMARThreshold)
	}
	if c.Actions.MovementThreshold <= 0 {
		return fmt.Errorf("movement_threshold must be positive, got %f", c.Actions.MovementThreshold)
	}
	if c.Actions.BlinkRefractoryMs < 0 || c.Actions.SmileRefractoryMs < 0 {
		return fmt.Errorf("refractory periods must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Camera.Device = ExpandPath(c.Camera.Device)
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Lock.HistoryDir = ExpandPath(c.Lock.HistoryDir)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the directories the tracker writes to.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	identitiesDir := filepath.Join(c.Storage.DataDir, "identities")
	if err := os.MkdirAll(identitiesDir, 0700); err != nil {
		return fmt.Errorf("failed to create identities directory: %w", err)
	}

	if err := os.MkdirAll(c.Lock.HistoryDir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := os.MkdirAll(c.Recognition.ModelPath, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	logDir := filepath.Dir(c.Logging.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	return nil
}
