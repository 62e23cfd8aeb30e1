package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}

	if cfg.Conversion.TargetSampleRate != 16000 {
		t.Errorf("Expected default target rate 16000, got %d", cfg.Conversion.TargetSampleRate)
	}
	if cfg.Capture.SegmentIntervalMs != 10000 {
		t.Errorf("Expected default segment interval 10000ms, got %d", cfg.Capture.SegmentIntervalMs)
	}
	if cfg.Capture.DebounceWindowMs != 500 {
		t.Errorf("Expected default debounce window 500ms, got %d", cfg.Capture.DebounceWindowMs)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[server]
port = 9999

[capture]
input_format = "pulse"
input_device = "mic1"

[transcription]
endpoint_url = "http://example.com/transcribe"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Capture.InputFormat != "pulse" || cfg.Capture.InputDevice != "mic1" {
		t.Errorf("Capture overrides not applied: %+v", cfg.Capture)
	}
	if cfg.Transcription.EndpointURL != "http://example.com/transcribe" {
		t.Errorf("Transcription override not applied: %q", cfg.Transcription.EndpointURL)
	}

	// Untouched sections keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default logging level, got %q", cfg.Logging.Level)
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("Expected default capture sample rate, got %d", cfg.Capture.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadWithFallbackUsesDefaults(t *testing.T) {
	// Run from a directory with no config files at all
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	defer os.Chdir(oldWd)

	cfg, err := LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback failed: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"empty ffmpeg path", func(c *Config) { c.Capture.FFmpegPath = "" }},
		{"zero sample rate", func(c *Config) { c.Capture.SampleRate = 0 }},
		{"three channels", func(c *Config) { c.Capture.Channels = 3 }},
		{"zero segment interval", func(c *Config) { c.Capture.SegmentIntervalMs = 0 }},
		{"zero debounce window", func(c *Config) { c.Capture.DebounceWindowMs = 0 }},
		{"zero target rate", func(c *Config) { c.Conversion.TargetSampleRate = 0 }},
		{"empty endpoint", func(c *Config) { c.Transcription.EndpointURL = "" }},
		{"zero timeout", func(c *Config) { c.Transcription.TimeoutSeconds = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
