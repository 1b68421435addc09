package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/aetheria/constant"
)

// pacer pulls one buffer per tick and writes it as s16le stereo
// A nil writer discards the audio, keeping the render clock moving
type pacer struct {
	rate   beep.SampleRate
	period time.Duration
	volume float64
	out    io.Writer

	vol *effects.Volume
	mu  sync.Mutex // guards vol against SetVolume

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool
	errChan  chan error
	frames   atomic.Uint64
}

func newPacer(rate beep.SampleRate, period time.Duration, volume float64, out io.Writer) *pacer {
	return &pacer{
		rate:     rate,
		period:   period,
		volume:   volume,
		out:      out,
		stopChan: make(chan struct{}),
		errChan:  make(chan error, 1),
	}
}

func (p *pacer) start(src beep.Streamer) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	p.vol = newVolume(src, p.volume)
	p.wg.Add(1)
	go p.loop()
	return nil
}

func (p *pacer) stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}

func (p *pacer) setVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.vol != nil {
		setVolume(p.vol, v)
	}
}

// Frames returns the number of frames pulled so far
func (p *pacer) Frames() uint64 {
	return p.frames.Load()
}

// Errors delivers the first write failure
func (p *pacer) Errors() <-chan error {
	return p.errChan
}

func (p *pacer) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	n := p.rate.N(p.period)
	samples := make([][2]float64, n)
	var outBytes []byte
	if p.out != nil {
		outBytes = make([]byte, n*constant.AudioBytesPerFrame)
	}

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.mu.Lock()
			got, ok := p.vol.Stream(samples)
			p.mu.Unlock()
			if !ok {
				return
			}
			clear(samples[got:])
			p.frames.Add(uint64(n))

			if p.out == nil {
				continue
			}
			floatToBytes(samples, outBytes)
			if _, err := p.out.Write(outBytes); err != nil {
				select {
				case p.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				return
			}
		}
	}
}

// floatToBytes converts stereo frames to interleaved int16 LE bytes
// Applies soft limiting before hard clip
func floatToBytes(in [][2]float64, out []byte) {
	for i, frame := range in {
		for ch, v := range frame {
			if v > 0.8 {
				v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
			} else if v < -0.8 {
				v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
			}
			v = max(-1, min(v, 1))
			binary.LittleEndian.PutUint16(out[i*4+ch*2:], uint16(int16(v*32767)))
		}
	}
}

// Writer streams s16le stereo to an io.Writer at real-time pace
type Writer struct {
	*pacer
	name string
}

// NewWriter creates a sink writing to w
func NewWriter(name string, w io.Writer, opts Options) *Writer {
	opts = opts.withDefaults()
	return &Writer{pacer: newPacer(opts.Rate, opts.Buffer, opts.Volume, w), name: name}
}

// Name implements Sink
func (w *Writer) Name() string { return w.name }

// Start implements Sink
func (w *Writer) Start(src beep.Streamer) error { return w.start(src) }

// Stop implements Sink
func (w *Writer) Stop() error {
	w.stop()
	return nil
}

// SetVolume changes the master volume in [0,1]
func (w *Writer) SetVolume(v float64) { w.setVolume(v) }

// Null discards audio at real-time pace so scheduled events still elapse without a device
type Null struct {
	*pacer
}

// NewNull creates a discarding sink
func NewNull(opts Options) *Null {
	opts = opts.withDefaults()
	return &Null{pacer: newPacer(opts.Rate, opts.Buffer, 0, nil)}
}

// Name implements Sink
func (n *Null) Name() string { return "null" }

// Start implements Sink
func (n *Null) Start(src beep.Streamer) error { return n.start(src) }

// Stop implements Sink
func (n *Null) Stop() error {
	n.stop()
	return nil
}
