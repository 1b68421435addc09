package graph

import (
	"math"
	"math/cmplx"

	"github.com/madelynnblue/go-dsp/fft"

	"github.com/lixenwraith/aetheria/constant"
)

// Buffer is a multi-channel block of samples at a sample rate
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// NewBuffer allocates a zeroed buffer
func NewBuffer(channels, length, sampleRate int) *Buffer {
	b := &Buffer{Channels: make([][]float64, channels), SampleRate: sampleRate}
	for i := range b.Channels {
		b.Channels[i] = make([]float64, length)
	}
	return b
}

// Len returns the frame count
func (b *Buffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

const (
	normMinPower        = 0.000125
	normGainCalibration = 0.00125
	normCalibrationRate = 44100.0
)

// kernel is an impulse response split into uniform frequency-domain partitions
type kernel struct {
	parts [2][][]complex128
	scale float64
	size  int
}

// prepareKernel partitions and transforms an impulse response
func prepareKernel(buf *Buffer, normalize bool) *kernel {
	block := constant.ConvolverPartition
	n := 2 * block
	bins := block + 1
	length := buf.Len()
	count := max(1, (length+block-1)/block)

	k := &kernel{scale: 1, size: length}
	if normalize {
		k.scale = normalizationScale(buf)
	}

	frame := make([]float64, n)
	for ch := range 2 {
		src := buf.Channels[min(ch, len(buf.Channels)-1)]
		k.parts[ch] = make([][]complex128, count)
		for p := range count {
			clear(frame)
			start := p * block
			end := min(start+block, length)
			if start < end {
				copy(frame, src[start:end])
			}
			spec := fft.FFTReal(frame)
			k.parts[ch][p] = spec[:bins:bins]
		}
	}
	return k
}

// normalizationScale computes an equal-power gain so impulses of any length play at a similar level
func normalizationScale(buf *Buffer) float64 {
	length := buf.Len()
	if length == 0 {
		return 1
	}
	power := 0.0
	for _, ch := range buf.Channels {
		for _, v := range ch {
			power += v * v
		}
	}
	power = math.Sqrt(power / float64(len(buf.Channels)*length))
	if math.IsNaN(power) || math.IsInf(power, 0) || power < normMinPower {
		power = normMinPower
	}
	scale := 1 / power
	scale *= normGainCalibration
	if buf.SampleRate > 0 {
		scale *= normCalibrationRate / float64(buf.SampleRate)
	}
	if len(buf.Channels) == 4 {
		scale *= 0.5
	}
	return scale
}

// Convolver applies an impulse response with uniformly partitioned overlap-save convolution
// Output lags input by one partition
type Convolver struct {
	base

	normalize bool
	kern      *kernel

	in     [2][]float64
	block  [2][]float64
	prev   [2][]float64
	result [2][]float64
	pos    int

	// history is a ring of past input block spectra, newest at head
	history [2][][]complex128
	head    int

	frame []float64
	acc   []complex128
	full  []complex128
}

// NewConvolver creates a convolver with no impulse, it outputs silence until one is set
func (c *Context) NewConvolver() *Convolver {
	c.mu.Lock()
	defer c.mu.Unlock()
	block := constant.ConvolverPartition
	cv := &Convolver{normalize: true}
	cv.init(c, cv, 2)
	cv.in = newBuffer()
	for ch := range 2 {
		cv.block[ch] = make([]float64, block)
		cv.prev[ch] = make([]float64, block)
		cv.result[ch] = make([]float64, block)
	}
	cv.frame = make([]float64, 2*block)
	cv.acc = make([]complex128, block+1)
	cv.full = make([]complex128, 2*block)
	c.register(cv)
	return cv
}

// SetNormalize toggles equal-power normalization for subsequently set impulses
func (cv *Convolver) SetNormalize(on bool) {
	cv.ctx.mu.Lock()
	defer cv.ctx.mu.Unlock()
	cv.normalize = on
}

// SetBuffer installs a new impulse response
// The transform runs without holding the graph lock, only the swap is serialized with rendering
func (cv *Convolver) SetBuffer(buf *Buffer) {
	cv.ctx.mu.Lock()
	normalize := cv.normalize
	cv.ctx.mu.Unlock()

	var k *kernel
	if buf.Len() > 0 {
		k = prepareKernel(buf, normalize)
	}

	cv.ctx.mu.Lock()
	defer cv.ctx.mu.Unlock()
	cv.kern = k
	cv.reset()
}

// ImpulseLength returns the frame count of the installed impulse
func (cv *Convolver) ImpulseLength() int {
	cv.ctx.mu.Lock()
	defer cv.ctx.mu.Unlock()
	if cv.kern == nil {
		return 0
	}
	return cv.kern.size
}

func (cv *Convolver) reset() {
	for ch := range 2 {
		clear(cv.block[ch])
		clear(cv.prev[ch])
		clear(cv.result[ch])
		cv.history[ch] = nil
		if cv.kern != nil {
			cv.history[ch] = make([][]complex128, len(cv.kern.parts[ch]))
		}
	}
	cv.pos = 0
	cv.head = 0
}

func (cv *Convolver) process(c *Context) {
	cv.mixInputs(c, cv.in)
	if cv.kern == nil {
		clear(cv.out[0])
		clear(cv.out[1])
		return
	}

	block := constant.ConvolverPartition
	for i := range cv.in[0] {
		for ch := range 2 {
			cv.block[ch][cv.pos] = cv.in[ch][i]
			cv.out[ch][i] = cv.result[ch][cv.pos]
		}
		cv.pos++
		if cv.pos == block {
			cv.convolveBlock()
			cv.pos = 0
		}
	}
}

// convolveBlock transforms the completed input block and accumulates it against every partition
func (cv *Convolver) convolveBlock() {
	block := constant.ConvolverPartition
	n := 2 * block
	count := len(cv.kern.parts[0])
	cv.head = (cv.head + 1) % count

	for ch := range 2 {
		copy(cv.frame[:block], cv.prev[ch])
		copy(cv.frame[block:], cv.block[ch])
		spec := fft.FFTReal(cv.frame)
		cv.history[ch][cv.head] = spec[:block+1 : block+1]

		clear(cv.acc)
		parts := cv.kern.parts[ch]
		for p := range count {
			x := cv.history[ch][(cv.head-p+count)%count]
			if x == nil {
				continue
			}
			h := parts[p]
			for j := range cv.acc {
				cv.acc[j] += x[j] * h[j]
			}
		}

		copy(cv.full, cv.acc)
		for j := 1; j < block; j++ {
			cv.full[n-j] = cmplx.Conj(cv.acc[j])
		}
		y := fft.IFFT(cv.full)
		for j := range block {
			cv.result[ch][j] = real(y[block+j]) * cv.kern.scale
		}
		copy(cv.prev[ch], cv.block[ch])
	}
}
