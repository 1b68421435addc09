package graph

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/madelynnblue/go-dsp/fft"
)

// Analyser passes audio through unchanged and keeps a window of recent samples
// for spectrum readout. It is rendered every quantum even when nothing pulls it.
type Analyser struct {
	base

	size      int
	minDB     float64
	maxDB     float64
	smoothing float64

	history []float64
	write   int

	// mu guards the smoothing state, readout runs outside the graph lock
	mu       sync.Mutex
	smoothed []float64
	window   []float64
}

// NewAnalyser creates an analyser with an fftSize-sample window
func (c *Context) NewAnalyser(fftSize int, minDB, maxDB, smoothing float64) *Analyser {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := &Analyser{
		size:      fftSize,
		minDB:     minDB,
		maxDB:     maxDB,
		smoothing: smoothing,
		history:   make([]float64, fftSize),
		smoothed:  make([]float64, fftSize/2),
		window:    blackman(fftSize),
	}
	a.init(c, a, 1)
	c.register(a)
	c.addTap(a)
	return a
}

// FrequencyBinCount returns the number of spectrum bins
func (a *Analyser) FrequencyBinCount() int {
	return a.size / 2
}

func (a *Analyser) process(c *Context) {
	a.channels = a.mixInputs(c, a.out)
	n := len(a.history)
	for i := range a.out[0] {
		v := a.out[0][i]
		if a.channels > 1 {
			v = 0.5 * (a.out[0][i] + a.out[1][i])
		}
		a.history[(a.write+i)%n] = v
	}
	a.write = (a.write + len(a.out[0])) % n
}

// snapshot copies the window oldest first
func (a *Analyser) snapshot() []float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	n := len(a.history)
	out := make([]float64, n)
	copy(out, a.history[a.write:])
	copy(out[n-a.write:], a.history[:a.write])
	return out
}

// FloatFrequencyData fills dst with smoothed magnitudes in dB and returns it
func (a *Analyser) FloatFrequencyData(dst []float64) []float64 {
	bins := a.FrequencyBinCount()
	if cap(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]

	frame := a.snapshot()
	for i := range frame {
		frame[i] *= a.window[i]
	}
	spec := fft.FFTReal(frame)

	a.mu.Lock()
	defer a.mu.Unlock()
	scale := 1 / float64(a.size)
	for k := range bins {
		mag := cmplx.Abs(spec[k]) * scale
		s := a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s
		if s > 0 {
			dst[k] = linearToDB(s)
		} else {
			dst[k] = math.Inf(-1)
		}
	}
	return dst
}

// ByteFrequencyData fills dst with smoothed magnitudes mapped from [minDB, maxDB] to [0, 255]
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	bins := a.FrequencyBinCount()
	if cap(dst) < bins {
		dst = make([]byte, bins)
	}
	dst = dst[:bins]

	db := a.FloatFrequencyData(nil)
	span := a.maxDB - a.minDB
	for k, v := range db {
		scaled := 255 * (v - a.minDB) / span
		switch {
		case math.IsInf(v, -1) || scaled <= 0:
			dst[k] = 0
		case scaled >= 255:
			dst[k] = 255
		default:
			dst[k] = byte(scaled)
		}
	}
	return dst
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := (1 - alpha) / 2
	a1 := 0.5
	a2 := alpha / 2
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}
