package graph

import (
	"math"
	"slices"

	"github.com/lixenwraith/aetheria/constant"
)

type eventKind int

const (
	eventSet eventKind = iota
	eventLinear
	eventExponential
	eventTarget
)

type event struct {
	kind  eventKind
	time  float64
	value float64
	tau   float64

	// from is the value at which a target approach began
	from    float64
	started bool
}

// maxFloat bounds params without a natural range
const maxFloat = math.MaxFloat32

// targetSettle is the number of time constants after which a target is treated as reached
const targetSettle = 20.0

// Param is a schedulable, modulatable node parameter
// Its per-frame value is the automation timeline plus the mono mix of connected inputs,
// clamped to the nominal range
type Param struct {
	ctx  *Context
	name string

	def, min, max float64

	// value is the most recent intrinsic value
	value float64

	// anchor is the last reached event, ramps start from it
	anchorTime  float64
	anchorValue float64

	events   []event
	inputs   []Node
	buf      []float64
	stamp    int64
	disposed bool
}

func newParam(c *Context, name string, def, min, max float64) *Param {
	return &Param{
		ctx:         c,
		name:        name,
		def:         def,
		min:         min,
		max:         max,
		value:       def,
		anchorValue: def,
		buf:         make([]float64, constant.RenderQuantum),
	}
}

// Name returns the param name
func (p *Param) Name() string { return p.name }

// Default returns the default value
func (p *Param) Default() float64 { return p.def }

// Range returns the nominal range
func (p *Param) Range() (min, max float64) { return p.min, p.max }

// Value returns the most recently computed intrinsic value
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.value
}

// SetValue sets the value at the current time
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: eventSet, time: p.ctx.now(), value: v})
	p.value = v
}

// SetValueAtTime jumps to v at time t
func (p *Param) SetValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: eventSet, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v, reaching it at t
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.anchorIfIdle()
	p.insert(event{kind: eventLinear, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event to v, reaching it at t
// A zero start value holds until t
func (p *Param) ExponentialRampToValueAtTime(v, t float64) error {
	if v == 0 || math.IsNaN(v) {
		return ErrInvalidRamp
	}
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.anchorIfIdle()
	if start := p.startValue(); start != 0 && (start < 0) != (v < 0) {
		return ErrInvalidRamp
	}
	p.insert(event{kind: eventExponential, time: t, value: v})
	return nil
}

// SetTargetAtTime approaches v exponentially from time t with time constant tau
func (p *Param) SetTargetAtTime(v, t, tau float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	// Coalesce repeated targets at the same instant
	if n := len(p.events); n > 0 {
		last := &p.events[n-1]
		if last.kind == eventTarget && last.time == t && !last.started {
			last.value = v
			last.tau = tau
			return
		}
	}
	p.insert(event{kind: eventTarget, time: t, value: v, tau: tau})
}

// CancelScheduledValues removes all events at or after t
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.events = slices.DeleteFunc(p.events, func(e event) bool {
		return e.time >= t && !e.started
	})
	// An approach already underway is frozen at its current value
	if len(p.events) > 0 && p.events[0].started {
		e := p.events[0]
		p.commit(t, targetValue(e, t))
		p.events = p.events[1:]
	}
}

// insert keeps events sorted by time, equal times keep insertion order
func (p *Param) insert(e event) {
	i := len(p.events)
	for i > 0 && p.events[i-1].time > e.time {
		i--
	}
	p.events = slices.Insert(p.events, i, e)
}

// anchorIfIdle starts a ramp scheduled on an idle param from the current value and time
func (p *Param) anchorIfIdle() {
	if len(p.events) == 0 {
		p.anchorTime = max(p.anchorTime, p.ctx.now())
		p.anchorValue = p.value
	}
}

// startValue is the value the next appended ramp would start from
func (p *Param) startValue() float64 {
	if n := len(p.events); n > 0 {
		return p.events[n-1].value
	}
	return p.anchorValue
}

func (p *Param) commit(t, v float64) {
	p.anchorTime = t
	p.anchorValue = v
}

// compute fills buf for the current quantum, caller holds mu
func (p *Param) compute(c *Context) []float64 {
	if p.stamp == c.quantum {
		return p.buf
	}
	p.stamp = c.quantum

	if len(p.events) == 0 {
		for i := range p.buf {
			p.buf[i] = p.anchorValue
		}
	} else {
		for i := range p.buf {
			p.buf[i] = p.intrinsic(c.timeAt(i))
		}
	}
	p.value = p.buf[len(p.buf)-1]

	for _, in := range p.inputs {
		src := c.pull(in)
		if in.node().channels > 1 {
			for i := range p.buf {
				p.buf[i] += 0.5 * (src[0][i] + src[1][i])
			}
		} else {
			for i := range p.buf {
				p.buf[i] += src[0][i]
			}
		}
	}

	for i, v := range p.buf {
		if v < p.min {
			p.buf[i] = p.min
		} else if v > p.max {
			p.buf[i] = p.max
		}
	}
	return p.buf
}

// intrinsic evaluates the automation timeline at t, consuming reached events
func (p *Param) intrinsic(t float64) float64 {
	for len(p.events) > 0 {
		e := &p.events[0]
		switch e.kind {
		case eventSet:
			if e.time > t {
				return p.anchorValue
			}
			p.commit(e.time, e.value)
			p.events = p.events[1:]

		case eventLinear, eventExponential:
			if e.time <= t {
				p.commit(e.time, e.value)
				p.events = p.events[1:]
				continue
			}
			return p.ramp(e, t)

		case eventTarget:
			if e.time > t {
				return p.anchorValue
			}
			if !e.started {
				e.started = true
				e.from = p.anchorValue
			}
			if len(p.events) > 1 {
				next := p.events[1]
				switch next.kind {
				case eventSet, eventTarget:
					if next.time <= t {
						p.commit(next.time, targetValue(*e, next.time))
						p.events = p.events[1:]
						continue
					}
				default:
					// A ramp after a target starts where the approach is now
					p.commit(t, targetValue(*e, t))
					p.events = p.events[1:]
					continue
				}
			} else if e.tau <= 0 || t-e.time > targetSettle*e.tau {
				p.commit(t, e.value)
				p.events = p.events[1:]
				continue
			}
			return targetValue(*e, t)
		}
	}
	return p.anchorValue
}

func (p *Param) ramp(e *event, t float64) float64 {
	t0, v0 := p.anchorTime, p.anchorValue
	if e.time <= t0 {
		return e.value
	}
	frac := (t - t0) / (e.time - t0)
	if frac < 0 {
		return v0
	}
	if e.kind == eventLinear {
		return v0 + (e.value-v0)*frac
	}
	if v0 == 0 || (v0 < 0) != (e.value < 0) {
		return v0
	}
	return v0 * math.Pow(e.value/v0, frac)
}

func targetValue(e event, t float64) float64 {
	if e.tau <= 0 {
		return e.value
	}
	return e.value + (e.from-e.value)*math.Exp(-(t-e.time)/e.tau)
}
