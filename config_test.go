// config_test.go - Tests for environment configuration

package main

import (
	"os"
	"path/filepath"
	"testing"
)

var configKeys = []string{
	"ATRAC_ENGINE", "ATRAC_BUFFER_SIZE", "ATRAC_OUTPUT_CHANNELS",
	"ATRAC_SAMPLE_RATE", "ATRAC_LOG_LEVEL", "ATRAC_LOG_FILE", "ATRAC_DEBUG",
}

// clearConfigEnv unsets every config variable for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine != EngineLegacy || cfg.BufferSize != DEFAULT_ATRAC_BUFFER_SIZE {
		t.Fatalf("defaults: engine %s buffer %d", cfg.Engine, cfg.BufferSize)
	}
	if cfg.OutputChannels != 2 || cfg.SampleRate != ATRAC_SAMPLE_RATE || cfg.LogLevel != InfoLevel {
		t.Fatalf("defaults: channels %d rate %d level %s", cfg.OutputChannels, cfg.SampleRate, cfg.LogLevel)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ATRAC_ENGINE", "hw")
	t.Setenv("ATRAC_BUFFER_SIZE", "8192")
	t.Setenv("ATRAC_OUTPUT_CHANNELS", "6")
	t.Setenv("ATRAC_DEBUG", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine != EngineHardware || cfg.BufferSize != 8192 {
		t.Fatalf("engine %s buffer %d", cfg.Engine, cfg.BufferSize)
	}
	if cfg.OutputChannels != 2 {
		t.Fatalf("invalid channel count should fall back to 2, got %d", cfg.OutputChannels)
	}
	if cfg.LogLevel != DebugLevel {
		t.Fatalf("debug should force the debug log level, got %s", cfg.LogLevel)
	}

	t.Setenv("ATRAC_ENGINE", "mp3")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected an error for an unknown engine")
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "ATRAC_ENGINE=hardware\nATRAC_BUFFER_SIZE=4096\nATRAC_LOG_LEVEL=warn\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	// The environment wins over the file.
	t.Setenv("ATRAC_BUFFER_SIZE", "2048")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine != EngineHardware || cfg.LogLevel != WarnLevel {
		t.Fatalf("from file: engine %s level %s", cfg.Engine, cfg.LogLevel)
	}
	if cfg.BufferSize != 2048 {
		t.Fatalf("environment should override the file, got %d", cfg.BufferSize)
	}
}
