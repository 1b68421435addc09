package graph

import (
	"math"
)

// WaveType selects an oscillator waveform
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

func (w WaveType) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSquare:
		return "square"
	case WaveSawtooth:
		return "sawtooth"
	case WaveTriangle:
		return "triangle"
	default:
		return "unknown"
	}
}

// Oscillator is a periodic source with band-limited edges
// It outputs silence before its start time and after its stop time
type Oscillator struct {
	base

	Frequency *Param
	Detune    *Param

	wave    WaveType
	phase   float64
	startAt float64
	stopAt  float64
	started bool
	ended   bool
}

// NewOscillator creates an unstarted oscillator
func (c *Context) NewOscillator(wave WaveType) *Oscillator {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := &Oscillator{wave: wave, stopAt: math.Inf(1)}
	o.init(c, o, 1)
	nyquist := float64(c.rate) / 2
	o.Frequency = o.newParam("frequency", 440, -nyquist, nyquist)
	o.Detune = o.newParam("detune", 0, -153600, 153600)
	c.register(o)
	return o
}

// Type returns the waveform
func (o *Oscillator) Type() WaveType {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.wave
}

// SetType changes the waveform
func (o *Oscillator) SetType(w WaveType) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.wave = w
}

// Start schedules the oscillator to begin at t, a source starts only once
func (o *Oscillator) Start(t float64) error {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true
	o.startAt = t
	return nil
}

// Stop schedules the oscillator to end at t, the latest call wins
func (o *Oscillator) Stop(t float64) error {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	if !o.started {
		return ErrNotStarted
	}
	o.stopAt = t
	return nil
}

// Ended reports whether the stop time has been rendered
func (o *Oscillator) Ended() bool {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.ended
}

func (o *Oscillator) process(c *Context) {
	left, right := o.out[0], o.out[1]
	if !o.started || o.ended {
		clear(left)
		clear(right)
		return
	}

	freq := o.Frequency.compute(c)
	detune := o.Detune.compute(c)
	rate := float64(c.rate)

	for i := range left {
		t := c.timeAt(i)
		if t < o.startAt {
			left[i], right[i] = 0, 0
			continue
		}
		if t >= o.stopAt {
			o.ended = true
			clear(left[i:])
			clear(right[i:])
			break
		}

		f := freq[i]
		if detune[i] != 0 {
			f *= math.Exp2(detune[i] / 1200)
		}
		dt := math.Abs(f) / rate
		s := o.sample(dt)
		left[i], right[i] = s, s

		o.phase += f / rate
		o.phase -= math.Floor(o.phase)
	}
}

func (o *Oscillator) sample(dt float64) float64 {
	p := o.phase
	switch o.wave {
	case WaveSquare:
		v := -1.0
		if p < 0.5 {
			v = 1.0
		}
		q := p + 0.5
		q -= math.Floor(q)
		return v + polyBLEP(p, dt) - polyBLEP(q, dt)
	case WaveSawtooth:
		return 2*p - 1 - polyBLEP(p, dt)
	case WaveTriangle:
		return 1 - 4*math.Abs(p-0.5)
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

// polyBLEP returns the band-limited step residual at phase t for increment dt
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}
