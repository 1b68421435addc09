package graph

import (
	"errors"

	"github.com/gopxl/beep"
)

const testRate = beep.SampleRate(44100)

// constNode emits a fixed mono value
type constNode struct {
	base
	value float64
}

func newConstNode(c *Context, v float64) *constNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := &constNode{value: v}
	n.init(c, n, 1)
	c.register(n)
	return n
}

func (n *constNode) process(c *Context) {
	for i := range n.out[0] {
		n.out[0][i] = n.value
		n.out[1][i] = n.value
	}
}

// impulseNode emits a single unit sample on its first quantum
type impulseNode struct {
	base
	fired bool
}

func newImpulseNode(c *Context) *impulseNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := &impulseNode{}
	n.init(c, n, 1)
	c.register(n)
	return n
}

func (n *impulseNode) process(c *Context) {
	clear(n.out[0])
	clear(n.out[1])
	if !n.fired {
		n.out[0][0] = 1
		n.out[1][0] = 1
		n.fired = true
	}
}

// fakeSink records Start calls and optionally fails
type fakeSink struct {
	name    string
	err     error
	started beep.Streamer
	stopped bool
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Start(src beep.Streamer) error {
	if s.err != nil {
		return s.err
	}
	s.started = src
	return nil
}

func (s *fakeSink) Stop() error {
	s.stopped = true
	return nil
}

var errDeviceBusy = errors.New("device busy")

// runningContext returns a context resumed without an output sink
func runningContext() *Context {
	c := NewContext(testRate)
	_ = c.Resume()
	return c
}

// capture streams n frames from the context
func capture(c *Context, n int) [][2]float64 {
	samples := make([][2]float64, n)
	c.Stream(samples)
	return samples
}
