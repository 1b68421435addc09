package sink

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Oto plays float32 frames through an oto context
// Only one oto context may exist per process
type Oto struct {
	rate   int
	buffer time.Duration
	volume float64

	ctx    *oto.Context
	player *oto.Player
	reader *frameReader
}

// NewOto creates an unstarted oto sink
func NewOto(opts Options) *Oto {
	opts = opts.withDefaults()
	return &Oto{rate: int(opts.Rate), buffer: opts.Buffer, volume: opts.Volume}
}

// Name implements Sink
func (o *Oto) Name() string { return "oto" }

// Start implements Sink
func (o *Oto) Start(src beep.Streamer) error {
	if o.player != nil {
		return ErrAlreadyStarted
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   o.rate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   o.buffer,
	})
	if err != nil {
		return fmt.Errorf("oto context: %w", err)
	}
	<-ready

	o.ctx = ctx
	o.reader = &frameReader{vol: newVolume(src, o.volume)}
	o.player = ctx.NewPlayer(o.reader)
	o.player.Play()
	return nil
}

// SetVolume changes the master volume in [0,1]
func (o *Oto) SetVolume(v float64) {
	o.volume = v
	if o.reader != nil {
		o.reader.setVolume(v)
	}
}

// Stop implements Sink
func (o *Oto) Stop() error {
	if o.player == nil {
		return nil
	}
	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return fmt.Errorf("oto player close: %w", err)
	}
	return nil
}

// frameReader adapts a streamer to the io.Reader oto pulls from
type frameReader struct {
	mu      sync.Mutex
	vol     *effects.Volume
	samples [][2]float64
}

func (r *frameReader) setVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	setVolume(r.vol, v)
}

// Read fills p with interleaved float32 LE stereo frames
func (r *frameReader) Read(p []byte) (int, error) {
	const frameBytes = 8
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cap(r.samples) < frames {
		r.samples = make([][2]float64, frames)
	}
	buf := r.samples[:frames]
	n, _ := r.vol.Stream(buf)
	clear(buf[n:])

	for i, frame := range buf {
		binary.LittleEndian.PutUint32(p[i*frameBytes:], math.Float32bits(float32(frame[0])))
		binary.LittleEndian.PutUint32(p[i*frameBytes+4:], math.Float32bits(float32(frame[1])))
	}
	return frames * frameBytes, nil
}
