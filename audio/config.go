package audio

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/aetheria/constant"
	"github.com/lixenwraith/aetheria/sink"
)

// Config holds output and engine settings
type Config struct {
	// Backend is one of auto, speaker, oto, pipe, null
	Backend       string
	SampleRate    int
	Buffer        time.Duration
	MasterVolume  float64
	SweepInterval time.Duration
	// PatchPath names a TOML patch loaded at startup, empty for the default patch
	PatchPath string
	Seed      uint64
}

// DefaultConfig returns compiled defaults
func DefaultConfig() *Config {
	return &Config{
		Backend:       "auto",
		SampleRate:    constant.AudioSampleRate,
		Buffer:        constant.AudioBufferDuration,
		MasterVolume:  1.0,
		SweepInterval: constant.SweepInterval,
	}
}

// LoadConfig applies AETHERIA_* environment overrides to the defaults
// Unparseable values are ignored, out-of-range values are clamped
func LoadConfig() *Config {
	cfg := DefaultConfig()

	if backend := os.Getenv("AETHERIA_BACKEND"); backend != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(backend))
	}

	if rate := os.Getenv("AETHERIA_SAMPLE_RATE"); rate != "" {
		if val, err := strconv.Atoi(rate); err == nil && val > 0 {
			cfg.SampleRate = max(8000, min(val, 192000))
		}
	}

	if ms := os.Getenv("AETHERIA_BUFFER_MS"); ms != "" {
		if val, err := strconv.Atoi(ms); err == nil && val > 0 {
			cfg.Buffer = time.Duration(max(5, min(val, 500))) * time.Millisecond
		}
	}

	// Master volume is 0-100 converted to 0.0-1.0
	if volume := os.Getenv("AETHERIA_MASTER_VOLUME"); volume != "" {
		if val, err := strconv.Atoi(volume); err == nil {
			cfg.MasterVolume = max(0, min(float64(val)/100.0, 1))
		}
	}

	if ms := os.Getenv("AETHERIA_SWEEP_MS"); ms != "" {
		if val, err := strconv.Atoi(ms); err == nil && val > 0 {
			cfg.SweepInterval = time.Duration(max(10, min(val, 5000))) * time.Millisecond
		}
	}

	if path := os.Getenv("AETHERIA_PATCH"); path != "" {
		cfg.PatchPath = path
	}

	return cfg
}

// SinkOptions converts the config into output options
func (c *Config) SinkOptions(log *slog.Logger) sink.Options {
	return sink.Options{
		Backend: c.Backend,
		Rate:    beep.SampleRate(c.SampleRate),
		Buffer:  c.Buffer,
		Volume:  c.MasterVolume,
		Logger:  log,
	}
}
