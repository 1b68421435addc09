package graph

import "math"

// StereoPanner places its input in the stereo field with equal-power gains
type StereoPanner struct {
	base

	Pan *Param
}

// NewStereoPanner creates a centered panner
func (c *Context) NewStereoPanner() *StereoPanner {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &StereoPanner{}
	p.init(c, p, 2)
	p.Pan = p.newParam("pan", 0, -1, 1)
	c.register(p)
	return p
}

func (p *StereoPanner) process(c *Context) {
	in := p.mixInputs(c, p.out)
	pan := p.Pan.compute(c)
	left, right := p.out[0], p.out[1]

	if in == 1 {
		for i, v := range pan {
			x := (v + 1) / 2
			s := left[i]
			left[i] = s * math.Cos(x*math.Pi/2)
			right[i] = s * math.Sin(x*math.Pi/2)
		}
		return
	}

	for i, v := range pan {
		l, r := left[i], right[i]
		if v <= 0 {
			x := v + 1
			left[i] = l + r*math.Cos(x*math.Pi/2)
			right[i] = r * math.Sin(x*math.Pi/2)
		} else {
			left[i] = l * math.Cos(v*math.Pi/2)
			right[i] = r + l*math.Sin(v*math.Pi/2)
		}
	}
}
