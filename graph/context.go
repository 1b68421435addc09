package graph

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/aetheria/constant"
)

// State is the lifecycle state of a render context
type State int

const (
	StateSuspended State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink consumes rendered audio by pulling from a streamer
// Start must return once the sink is pulling or has failed
type Sink interface {
	Name() string
	Start(src beep.Streamer) error
	Stop() error
}

// Option configures a Context
type Option func(*Context)

// WithSink sets the primary output sink started on Resume
func WithSink(s Sink) Option {
	return func(c *Context) { c.sink = s }
}

// WithFallback sets the sink used when the primary sink fails to start
func WithFallback(s Sink) Option {
	return func(c *Context) { c.fallback = s }
}

// WithLogger sets the context logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// Context owns the node graph and the audio clock
// All graph mutation and rendering is serialized by mu
type Context struct {
	mu sync.Mutex

	rate  beep.SampleRate
	state State

	// frame counts rendered frames, the clock is frame/rate
	frame   int64
	quantum int64

	dest  *Destination
	taps  []Node
	nodes map[Node]struct{}

	// pending holds the unread tail of the last rendered quantum
	pending [2][]float64
	pos     int

	sink     Sink
	fallback Sink
	active   Sink
	log      *slog.Logger
}

// NewContext creates a suspended context rendering at rate
func NewContext(rate beep.SampleRate, opts ...Option) *Context {
	c := &Context{
		rate:  rate,
		state: StateSuspended,
		nodes: make(map[Node]struct{}),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		pos:   constant.RenderQuantum,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pending = newBuffer()
	c.dest = &Destination{}
	c.dest.init(c, c.dest, 2)
	return c
}

// SampleRate returns the render sample rate
func (c *Context) SampleRate() beep.SampleRate {
	return c.rate
}

// CurrentTime returns the audio clock in seconds
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Context) now() float64 {
	return float64(c.frame) / float64(c.rate)
}

// State returns the current lifecycle state
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Destination returns the terminal node of the graph
func (c *Context) Destination() *Destination {
	return c.dest
}

// NodeCount returns the number of live (created and not disposed) nodes
func (c *Context) NodeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// SinkName returns the name of the sink currently pulling, empty if none
func (c *Context) SinkName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.Name()
}

// Resume starts the clock and the output sink
// If the primary sink fails the fallback is started and the error is still returned
func (c *Context) Resume() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrContextClosed
	case StateRunning:
		c.mu.Unlock()
		return nil
	}
	c.state = StateRunning
	needSink := c.active == nil
	primary, fallback := c.sink, c.fallback
	c.mu.Unlock()

	if !needSink {
		return nil
	}

	// Sinks pull from another goroutine, start them unlocked
	var resumeErr error
	started := Sink(nil)
	if primary != nil {
		if err := primary.Start(c); err != nil {
			resumeErr = fmt.Errorf("start sink %s: %w", primary.Name(), err)
			c.log.Warn("output sink failed, falling back", "sink", primary.Name(), "error", err)
		} else {
			started = primary
		}
	}
	if started == nil && fallback != nil {
		if err := fallback.Start(c); err != nil {
			c.log.Error("fallback sink failed", "sink", fallback.Name(), "error", err)
		} else {
			started = fallback
		}
	}

	c.mu.Lock()
	c.active = started
	c.mu.Unlock()

	if started != nil {
		c.log.Info("audio context running", "sink", started.Name(), "rate", int(c.rate))
	}
	return resumeErr
}

// Suspend stops the clock, the sink keeps pulling silence
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrContextClosed
	}
	c.state = StateSuspended
	return nil
}

// Close stops the sink and releases every node
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	active := c.active
	c.active = nil
	for n := range c.nodes {
		n.node().detach()
	}
	clear(c.nodes)
	c.taps = nil
	c.mu.Unlock()

	if active != nil {
		if err := active.Stop(); err != nil {
			return fmt.Errorf("stop sink %s: %w", active.Name(), err)
		}
	}
	return nil
}

// Stream implements beep.Streamer
// A suspended context yields silence without advancing the clock
func (c *Context) Stream(samples [][2]float64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return 0, false
	case StateSuspended:
		clear(samples)
		return len(samples), true
	}

	for i := range samples {
		if c.pos >= constant.RenderQuantum {
			c.render()
			c.pos = 0
		}
		samples[i][0] = c.pending[0][c.pos]
		samples[i][1] = c.pending[1][c.pos]
		c.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (c *Context) Err() error {
	return nil
}

// RenderFrames renders at least n frames and discards them
// Returns the number of frames rendered, zero unless running
func (c *Context) RenderFrames(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return 0
	}
	rendered := 0
	for rendered < n {
		c.render()
		rendered += constant.RenderQuantum
	}
	c.pos = constant.RenderQuantum
	return rendered
}

// RenderSeconds renders at least d seconds of audio and discards it
func (c *Context) RenderSeconds(d float64) int {
	return c.RenderFrames(int(d*float64(c.rate) + 0.5))
}

// render computes one quantum into pending, caller holds mu
func (c *Context) render() {
	c.quantum++
	out := c.pull(c.dest)
	copy(c.pending[0], out[0])
	copy(c.pending[1], out[1])
	for _, tap := range c.taps {
		c.pull(tap)
	}
	c.frame += constant.RenderQuantum
}

// pull renders n for the current quantum once and returns its output
// A node already on the pull stack returns its previous output
func (c *Context) pull(n Node) [2][]float64 {
	b := n.node()
	if b.stamp == c.quantum || b.busy {
		return b.out
	}
	b.busy = true
	n.process(c)
	b.stamp = c.quantum
	b.busy = false
	return b.out
}

// register tracks a new node, caller holds mu
func (c *Context) register(n Node) {
	c.nodes[n] = struct{}{}
}

func (c *Context) addTap(n Node) {
	c.taps = append(c.taps, n)
}

// timeAt returns the clock time of frame i within the current quantum
func (c *Context) timeAt(i int) float64 {
	return float64(c.frame+int64(i)) / float64(c.rate)
}

func newBuffer() [2][]float64 {
	return [2][]float64{
		make([]float64, constant.RenderQuantum),
		make([]float64, constant.RenderQuantum),
	}
}
