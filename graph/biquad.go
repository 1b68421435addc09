package graph

import "math"

// FilterType selects a biquad response
type FilterType int

const (
	FilterLowpass FilterType = iota
	FilterHighpass
	FilterBandpass
	FilterAllpass
)

// BiquadFilter is a second-order IIR filter with coefficients refreshed per quantum
// Lowpass and highpass Q is a resonance in dB, bandpass and allpass Q is linear
type BiquadFilter struct {
	base

	Frequency *Param
	Q         *Param

	kind FilterType

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

// NewBiquadFilter creates a filter at 350 Hz with Q 1
func (c *Context) NewBiquadFilter(kind FilterType) *BiquadFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &BiquadFilter{kind: kind}
	f.init(c, f, 1)
	f.Frequency = f.newParam("frequency", 350, 0, float64(c.rate)/2)
	f.Q = f.newParam("Q", 1, -maxFloat, maxFloat)
	c.register(f)
	return f
}

// Type returns the filter response
func (f *BiquadFilter) Type() FilterType {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.kind
}

func (f *BiquadFilter) process(c *Context) {
	f.channels = f.mixInputs(c, f.out)
	freq := f.Frequency.compute(c)
	q := f.Q.compute(c)
	f.updateCoefficients(float64(c.rate), freq[0], q[0])

	for ch := range f.channels {
		buf := f.out[ch]
		x1, x2, y1, y2 := f.x1[ch], f.x2[ch], f.y1[ch], f.y2[ch]
		for i, x := range buf {
			y := f.b0*x + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
			x2, x1 = x1, x
			y2, y1 = y1, y
			buf[i] = y
		}
		f.x1[ch], f.x2[ch], f.y1[ch], f.y2[ch] = x1, x2, y1, y2
	}
	if f.channels == 1 {
		copy(f.out[1], f.out[0])
	}
	flushDenormals(&f.y1)
	flushDenormals(&f.y2)
}

// updateCoefficients applies the RBJ cookbook formulas normalized by a0
func (f *BiquadFilter) updateCoefficients(rate, freq, q float64) {
	nyquist := rate / 2
	freq = max(10, min(freq, nyquist*0.999))
	w0 := 2 * math.Pi * freq / rate
	cosw0 := math.Cos(w0)
	sinw0 := math.Sin(w0)

	var b0, b1, b2, a0, a1, a2 float64
	switch f.kind {
	case FilterLowpass, FilterHighpass:
		alpha := sinw0 / (2 * math.Pow(10, q/20))
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
		if f.kind == FilterLowpass {
			b1 = 1 - cosw0
			b0 = b1 / 2
			b2 = b0
		} else {
			b1 = -(1 + cosw0)
			b0 = -b1 / 2
			b2 = b0
		}
	case FilterBandpass, FilterAllpass:
		alpha := sinw0 / (2 * max(q, 0.0001))
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
		if f.kind == FilterBandpass {
			b0 = alpha
			b1 = 0
			b2 = -alpha
		} else {
			b0 = 1 - alpha
			b1 = -2 * cosw0
			b2 = 1 + alpha
		}
	}

	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = a1 / a0
	f.a2 = a2 / a0
}

func flushDenormals(v *[2]float64) {
	for i := range v {
		if math.Abs(v[i]) < 1e-30 {
			v[i] = 0
		}
	}
}
