package graph

// Gain scales its mixed input by a modulatable factor
type Gain struct {
	base

	Gain *Param
}

// NewGain creates a gain node with the given initial factor
func (c *Context) NewGain(initial float64) *Gain {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := &Gain{}
	g.init(c, g, 1)
	g.Gain = g.newParam("gain", 1, -maxFloat, maxFloat)
	g.Gain.value = initial
	g.Gain.anchorValue = initial
	c.register(g)
	return g
}

func (g *Gain) process(c *Context) {
	g.channels = g.mixInputs(c, g.out)
	gain := g.Gain.compute(c)
	for i, k := range gain {
		g.out[0][i] *= k
		g.out[1][i] *= k
	}
}
