package graph

import (
	"math"

	"github.com/lixenwraith/aetheria/constant"
)

// Delay is a variable delay line with fractional read
// The minimum effective delay is one render quantum so feedback loops through it are legal
type Delay struct {
	base

	DelayTime *Param

	ring  [2][]float64
	write int
	in    [2][]float64
}

// NewDelay creates a delay line holding up to maxSeconds
func (c *Context) NewDelay(maxSeconds float64) *Delay {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := &Delay{}
	d.init(c, d, 1)
	size := int(math.Ceil(maxSeconds*float64(c.rate))) + 2*constant.RenderQuantum
	d.ring = [2][]float64{make([]float64, size), make([]float64, size)}
	d.in = newBuffer()
	d.DelayTime = d.newParam("delayTime", 0, 0, maxSeconds)
	c.register(d)
	return d
}

func (d *Delay) process(c *Context) {
	size := len(d.ring[0])
	rate := float64(c.rate)
	minDelay := float64(constant.RenderQuantum)
	maxDelay := float64(size - constant.RenderQuantum - 1)

	delay := d.DelayTime.compute(c)
	for i := range d.out[0] {
		frames := min(max(delay[i]*rate, minDelay), maxDelay)
		pos := float64(d.write+i) - frames
		for pos < 0 {
			pos += float64(size)
		}
		idx := int(pos)
		frac := pos - float64(idx)
		idx %= size
		next := (idx + 1) % size
		for ch := range 2 {
			a, b := d.ring[ch][idx], d.ring[ch][next]
			d.out[ch][i] = a + (b-a)*frac
		}
	}

	// Publish before pulling inputs, a cycle back to this node reads the output above
	d.stamp = c.quantum

	d.channels = d.mixInputs(c, d.in)
	for i := range d.in[0] {
		w := (d.write + i) % size
		d.ring[0][w] = d.in[0][i]
		d.ring[1][w] = d.in[1][i]
	}
	d.write = (d.write + constant.RenderQuantum) % size
}
