package graph

import "slices"

// Node is a processing vertex of the audio graph
type Node interface {
	node() *base
	process(c *Context)
}

// base carries the wiring and per-quantum output shared by all nodes
type base struct {
	ctx  *Context
	self Node

	inputs []Node
	outs   []Node
	params []*Param
	owned  []*Param

	out      [2][]float64
	channels int
	stamp    int64
	busy     bool
	disposed bool
}

func (b *base) init(c *Context, self Node, channels int) {
	b.ctx = c
	b.self = self
	b.out = newBuffer()
	b.channels = channels
}

func (b *base) node() *base { return b }

// Context returns the owning context
func (b *base) Context() *Context { return b.ctx }

// Channels returns the channel count of the last rendered quantum
func (b *base) Channels() int {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	return b.channels
}

// Connect routes this node's output into dst
// Repeated connections between the same pair are ignored
func (b *base) Connect(dst Node) error {
	c := b.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	d := dst.node()
	if d.ctx != c {
		return ErrForeignNode
	}
	if b.disposed || d.disposed {
		return ErrDisposed
	}
	if slices.Contains(b.outs, dst) {
		return nil
	}
	b.outs = append(b.outs, dst)
	d.inputs = append(d.inputs, b.self)
	return nil
}

// ConnectParam routes this node's output into p as a modulation signal
func (b *base) ConnectParam(p *Param) error {
	c := b.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.ctx != c {
		return ErrForeignNode
	}
	if b.disposed || p.disposed {
		return ErrDisposed
	}
	if slices.Contains(b.params, p) {
		return nil
	}
	b.params = append(b.params, p)
	p.inputs = append(p.inputs, b.self)
	return nil
}

// Disconnect removes all outgoing connections
func (b *base) Disconnect() {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	b.disconnectOutputs()
}

// Dispose disconnects the node in both directions and releases it
// Further Connect calls fail, Dispose is idempotent
func (b *base) Dispose() {
	c := b.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.disposed {
		return
	}
	b.detach()
	delete(c.nodes, b.self)
	if i := slices.Index(c.taps, b.self); i >= 0 {
		c.taps = slices.Delete(c.taps, i, i+1)
	}
}

// Disposed reports whether Dispose was called
func (b *base) Disposed() bool {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	return b.disposed
}

// detach severs every edge touching the node, caller holds mu
func (b *base) detach() {
	b.disconnectOutputs()
	for _, in := range b.inputs {
		ib := in.node()
		ib.outs = removeNode(ib.outs, b.self)
	}
	b.inputs = nil
	for _, p := range b.owned {
		for _, in := range p.inputs {
			ib := in.node()
			ib.params = removeParam(ib.params, p)
		}
		p.inputs = nil
		p.events = nil
		p.disposed = true
	}
	b.disposed = true
}

func (b *base) disconnectOutputs() {
	for _, dst := range b.outs {
		d := dst.node()
		d.inputs = removeNode(d.inputs, b.self)
	}
	b.outs = nil
	for _, p := range b.params {
		p.inputs = removeNode(p.inputs, b.self)
	}
	b.params = nil
}

// newParam creates a param owned by this node
func (b *base) newParam(name string, def, min, max float64) *Param {
	p := newParam(b.ctx, name, def, min, max)
	b.owned = append(b.owned, p)
	return p
}

// mixInputs sums all inputs into dst and returns the widest input channel count
func (b *base) mixInputs(c *Context, dst [2][]float64) int {
	clear(dst[0])
	clear(dst[1])
	channels := 1
	for _, in := range b.inputs {
		src := c.pull(in)
		if ch := in.node().channels; ch > channels {
			channels = ch
		}
		for i := range dst[0] {
			dst[0][i] += src[0][i]
			dst[1][i] += src[1][i]
		}
	}
	return channels
}

func removeNode(list []Node, n Node) []Node {
	return slices.DeleteFunc(list, func(x Node) bool { return x == n })
}

func removeParam(list []*Param, p *Param) []*Param {
	return slices.DeleteFunc(list, func(x *Param) bool { return x == p })
}

// Destination is the terminal node pulled by the context
type Destination struct {
	base
}

func (d *Destination) process(c *Context) {
	d.channels = d.mixInputs(c, d.out)
}
