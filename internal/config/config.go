package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Profile   string          `yaml:"profile"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Model     ModelConfig     `yaml:"model"`
	Workers   int             `yaml:"workers"` // 0 means one per CPU
	History   HistoryConfig   `yaml:"history"`
	Clipboard bool            `yaml:"clipboard"`
	LogLevel  string          `yaml:"log_level"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// RecordingConfig holds recording session settings.
type RecordingConfig struct {
	MaxSeconds float64 `yaml:"max_seconds"`
	// KeepPartial transcribes what was captured when a recording is
	// interrupted instead of discarding it.
	KeepPartial bool `yaml:"keep_partial"`
}

// ModelConfig holds the external transcription backend settings.
type ModelConfig struct {
	// Command is the backend argv; the audio file path is appended.
	Command []string `yaml:"command"`
	// TimeoutSeconds bounds a single backend invocation. 0 disables.
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	// AssetURL and AssetPath configure model asset downloads.
	AssetURL  string `yaml:"asset_url"`
	AssetPath string `yaml:"asset_path"`
}

// HistoryConfig holds transcript history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "scribepipe")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "scribepipe")

	return &Config{
		Profile: "silero-en",
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Recording: RecordingConfig{
			MaxSeconds:  600,
			KeepPartial: false,
		},
		Model: ModelConfig{
			Command:        []string{"scribepipe-model"},
			TimeoutSeconds: 0,
			AssetPath:      filepath.Join(dataDir, "models", "silero-en.onnx"),
		},
		Workers: 0,
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "history.db"),
		},
		Clipboard: false,
		LogLevel:  "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Model.AssetPath = expandTilde(cfg.Model.AssetPath)
	cfg.History.Path = expandTilde(cfg.History.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Profile == "" {
		return fmt.Errorf("profile must not be empty")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Recording.MaxSeconds <= 0 {
		return fmt.Errorf("recording.max_seconds must be > 0")
	}

	if len(c.Model.Command) == 0 {
		return fmt.Errorf("model.command must not be empty")
	}

	if c.Model.TimeoutSeconds < 0 {
		return fmt.Errorf("model.timeout_seconds must be >= 0")
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// WriteDefault writes a commented default config to the standard path if
// no config exists yet. Returns the written path, or "" if a config was
// already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if path == "" {
		return "", fmt.Errorf("cannot determine config path")
	}
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(DefaultConfigDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}
	content := "# scribepipe configuration\n# See the README for the full list of settings.\n" + string(data)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level string to a slog.Level,
// defaulting to info for unknown values.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
