// Package sink delivers rendered audio to an output device or process
package sink

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/aetheria/constant"
)

// Sentinel errors
var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
	ErrUnknownBackend = errors.New("unknown audio backend")
	ErrAlreadyStarted = errors.New("sink already started")
)

// Sink pulls audio from a streamer until stopped
type Sink interface {
	Name() string
	Start(src beep.Streamer) error
	Stop() error
}

// Options configures sink construction
type Options struct {
	// Backend is one of auto, speaker, oto, pipe, null
	Backend string
	Rate    beep.SampleRate
	Buffer  time.Duration
	Volume  float64
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Rate <= 0 {
		o.Rate = constant.AudioSampleRate
	}
	if o.Buffer <= 0 {
		o.Buffer = constant.AudioBufferDuration
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Backend == "" {
		o.Backend = "auto"
	}
	return o
}

// Open builds the sink named by opts.Backend
// auto tries the beep speaker first, then an external player process
func Open(opts Options) (Sink, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(opts.Backend) {
	case "auto":
		return NewChain(opts.Logger, NewSpeaker(opts), NewPipe(opts)), nil
	case "speaker", "beep":
		return NewSpeaker(opts), nil
	case "oto":
		return NewOto(opts), nil
	case "pipe":
		return NewPipe(opts), nil
	case "null", "none":
		return NewNull(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

// newVolume wraps src with a master volume on a base-2 scale
func newVolume(src beep.Streamer, vol float64) *effects.Volume {
	v := &effects.Volume{Streamer: src, Base: 2}
	setVolume(v, vol)
	return v
}

func setVolume(v *effects.Volume, vol float64) {
	vol = max(0, min(vol, 1))
	v.Silent = vol <= 0
	if !v.Silent {
		v.Volume = math.Log2(vol)
	}
}

// Chain starts the first sink that succeeds
type Chain struct {
	sinks  []Sink
	active Sink
	log    *slog.Logger
}

// NewChain creates a chain over sinks in priority order
func NewChain(log *slog.Logger, sinks ...Sink) *Chain {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Chain{sinks: sinks, log: log}
}

// Name reports the active sink, or the candidates before start
func (c *Chain) Name() string {
	if c.active != nil {
		return c.active.Name()
	}
	names := make([]string, len(c.sinks))
	for i, s := range c.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "|")
}

// Start implements Sink
func (c *Chain) Start(src beep.Streamer) error {
	if c.active != nil {
		return ErrAlreadyStarted
	}
	var errs []error
	for _, s := range c.sinks {
		if err := s.Start(src); err != nil {
			c.log.Debug("sink unavailable", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		c.active = s
		return nil
	}
	return errors.Join(append([]error{ErrNoAudioBackend}, errs...)...)
}

// Stop implements Sink
func (c *Chain) Stop() error {
	if c.active == nil {
		return nil
	}
	err := c.active.Stop()
	c.active = nil
	return err
}
