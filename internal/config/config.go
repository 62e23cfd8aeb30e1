package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Capture       CaptureConfig       `toml:"capture"`       // Microphone capture settings
	Conversion    ConversionConfig    `toml:"conversion"`    // PCM conversion settings
	Transcription TranscriptionConfig `toml:"transcription"` // Transcription upload settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended for streaming)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory to serve static files from (e.g., "www"), empty to disable
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// CaptureConfig contains microphone capture configuration
type CaptureConfig struct {
	FFmpegPath         string `toml:"ffmpeg_path"`          // Path to the ffmpeg binary (e.g., "ffmpeg" to use PATH)
	InputFormat        string `toml:"input_format"`         // ffmpeg input format for the microphone (e.g., "alsa", "pulse", "avfoundation")
	InputDevice        string `toml:"input_device"`         // Input device identifier (e.g., "default", "hw:0")
	SampleRate         int    `toml:"sample_rate"`          // Native capture sample rate in Hz (e.g., 44100)
	Channels           int    `toml:"channels"`             // Native capture channel count (1 = mono, 2 = stereo)
	SegmentIntervalMs  int    `toml:"segment_interval_ms"`  // How often a captured segment is emitted, in milliseconds
	StartupGraceMs     int    `toml:"startup_grace_ms"`     // How long to wait for ffmpeg to fail at startup before declaring capture healthy
	DebounceWindowMs   int    `toml:"debounce_window_ms"`   // Trailing quiet window before a buffered segment is processed
}

// ConversionConfig contains PCM conversion configuration
type ConversionConfig struct {
	TargetSampleRate int `toml:"target_sample_rate"` // Sample rate of the PCM sent for transcription (e.g., 16000)
}

// TranscriptionConfig contains settings for the transcription upload service
type TranscriptionConfig struct {
	EndpointURL    string `toml:"endpoint_url"`    // Full URL of the transcription endpoint (e.g., "http://localhost:9090/transcribe")
	APIKey         string `toml:"api_key"`         // Optional bearer token for the transcription endpoint
	TimeoutSeconds int    `toml:"timeout_seconds"` // HTTP timeout for upload requests
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			Host:             "127.0.0.1",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 0,
			IdleTimeoutSecs:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Capture: CaptureConfig{
			FFmpegPath:        "ffmpeg",
			InputFormat:       "alsa",
			InputDevice:       "default",
			SampleRate:        44100,
			Channels:          1,
			SegmentIntervalMs: 10000,
			StartupGraceMs:    750,
			DebounceWindowMs:  500,
		},
		Conversion: ConversionConfig{
			TargetSampleRate: 16000,
		},
		Transcription: TranscriptionConfig{
			EndpointURL:    "http://localhost:9090/transcribe",
			TimeoutSeconds: 30,
		},
	}
}

// Load loads the configuration from the given TOML file path,
// applied on top of the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadWithFallback loads the configuration from the given path, or if the
// path is empty, searches configs/config.toml then config.toml in the
// working directory. A missing file is not an error: defaults are used.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	candidates := []string{
		filepath.Join("configs", "config.toml"),
		"config.toml",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	// No config file found, use defaults
	return DefaultConfig(), nil
}

// Validate checks the configuration for invalid or inconsistent values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	if c.Capture.FFmpegPath == "" {
		return fmt.Errorf("capture ffmpeg_path must not be empty")
	}
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture sample_rate must be positive, got %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels != 1 && c.Capture.Channels != 2 {
		return fmt.Errorf("capture channels must be 1 or 2, got %d", c.Capture.Channels)
	}
	if c.Capture.SegmentIntervalMs <= 0 {
		return fmt.Errorf("capture segment_interval_ms must be positive, got %d", c.Capture.SegmentIntervalMs)
	}
	if c.Capture.DebounceWindowMs <= 0 {
		return fmt.Errorf("capture debounce_window_ms must be positive, got %d", c.Capture.DebounceWindowMs)
	}

	if c.Conversion.TargetSampleRate <= 0 {
		return fmt.Errorf("conversion target_sample_rate must be positive, got %d", c.Conversion.TargetSampleRate)
	}

	if c.Transcription.EndpointURL == "" {
		return fmt.Errorf("transcription endpoint_url must not be empty")
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		return fmt.Errorf("transcription timeout_seconds must be positive, got %d", c.Transcription.TimeoutSeconds)
	}

	return nil
}
