// config.go - Runtime configuration from .env and the environment

package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DEFAULT_ATRAC_BUFFER_SIZE = 0x4000
	DEFAULT_OUTPUT_CHANNELS   = 2
)

// Config holds the harness settings. Command line flags override it.
type Config struct {
	Engine         EngineKind
	BufferSize     uint32 // 0 loads the whole file
	OutputChannels int
	SampleRate     int
	LogLevel       LogLevel
	LogFile        string
	Debug          bool
}

// LoadConfig reads envFile if it exists, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	engine, err := ParseEngineKind(envStr("ATRAC_ENGINE", "legacy"))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Engine:         engine,
		BufferSize:     uint32(envInt("ATRAC_BUFFER_SIZE", DEFAULT_ATRAC_BUFFER_SIZE)),
		OutputChannels: envInt("ATRAC_OUTPUT_CHANNELS", DEFAULT_OUTPUT_CHANNELS),
		SampleRate:     envInt("ATRAC_SAMPLE_RATE", ATRAC_SAMPLE_RATE),
		LogLevel:       LogLevel(envStr("ATRAC_LOG_LEVEL", string(InfoLevel))),
		LogFile:        envStr("ATRAC_LOG_FILE", ""),
		Debug:          envBool("ATRAC_DEBUG", false),
	}
	if cfg.Debug {
		cfg.LogLevel = DebugLevel
	}
	if cfg.OutputChannels != 1 && cfg.OutputChannels != 2 {
		cfg.OutputChannels = DEFAULT_OUTPUT_CHANNELS
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
