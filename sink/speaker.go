package sink

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

// speakerInit records process-wide speaker initialization, the device can be opened once
var speakerInit atomic.Bool

// Speaker plays through the beep speaker device
type Speaker struct {
	rate   beep.SampleRate
	buffer time.Duration
	volume float64

	vol     *effects.Volume
	started bool
}

// NewSpeaker creates an unstarted speaker sink
func NewSpeaker(opts Options) *Speaker {
	opts = opts.withDefaults()
	return &Speaker{rate: opts.Rate, buffer: opts.Buffer, volume: opts.Volume}
}

// Name implements Sink
func (s *Speaker) Name() string { return "speaker" }

// Start implements Sink
func (s *Speaker) Start(src beep.Streamer) error {
	if s.started {
		return ErrAlreadyStarted
	}
	if !speakerInit.Load() {
		if err := speaker.Init(s.rate, s.rate.N(s.buffer)); err != nil {
			return fmt.Errorf("speaker init: %w", err)
		}
		speakerInit.Store(true)
	}
	s.vol = newVolume(src, s.volume)
	speaker.Play(s.vol)
	s.started = true
	return nil
}

// SetVolume changes the master volume in [0,1]
func (s *Speaker) SetVolume(v float64) {
	s.volume = v
	if s.vol == nil {
		return
	}
	speaker.Lock()
	setVolume(s.vol, v)
	speaker.Unlock()
}

// Stop implements Sink
func (s *Speaker) Stop() error {
	if !s.started {
		return nil
	}
	speaker.Clear()
	s.started = false
	return nil
}

// CloseDevice releases the speaker device at process exit
func CloseDevice() {
	if speakerInit.CompareAndSwap(true, false) {
		speaker.Close()
	}
}
