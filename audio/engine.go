package audio

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/aetheria/constant"
	"github.com/lixenwraith/aetheria/graph"
	"github.com/lixenwraith/aetheria/patch"
	"github.com/lixenwraith/aetheria/status"
)

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithRandom sets the source of generative variation
func WithRandom(r Random) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// WithLogger sets the engine logger, shared with the voice manager and effects chain
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithStatus publishes engine metrics to reg
func WithStatus(reg *status.Registry) EngineOption {
	return func(e *Engine) { e.status = reg }
}

// WithSweepInterval sets the period of the background disposal sweep
func WithSweepInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.sweepInterval = d
		}
	}
}

// engineMetrics caches registry pointers, nil fields when no registry is set
type engineMetrics struct {
	active    *atomic.Int64
	releasing *atomic.Int64
	started   *atomic.Int64
	disposed  *atomic.Int64
	ignored   *atomic.Int64
	nodes     *atomic.Int64
	clock     *status.AtomicFloat
	reduction *status.AtomicFloat
	silent    *atomic.Bool
	sink      *status.AtomicString
}

// Engine is the synthesizer facade: note events and patch updates in, audio graph out
// All methods are safe for concurrent use
type Engine struct {
	mu sync.Mutex

	ctx    *graph.Context
	store  *patch.Store
	fx     *EffectsChain
	voices *VoiceManager

	rand          Random
	log           *slog.Logger
	status        *status.Registry
	metrics       engineMetrics
	sweepInterval time.Duration

	silent  atomic.Bool
	running atomic.Bool
	closed  bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine builds the effects chain on ctx and prepares the voice manager
// ctx stays suspended until the first note
func NewEngine(ctx *graph.Context, p patch.Params, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		ctx:           ctx,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		sweepInterval: constant.SweepInterval,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = NewRandom(0)
	}
	// The impulse worker and the control path draw concurrently
	e.rand = &lockedRandom{src: e.rand}

	e.store = patch.NewStore(p)
	fx, err := NewEffectsChain(ctx, e.store.Load(), e.rand, e.log)
	if err != nil {
		return nil, err
	}
	e.fx = fx
	e.voices = NewVoiceManager(ctx, fx.Input(), e.rand, e.log)

	if e.status != nil {
		e.metrics = engineMetrics{
			active:    e.status.Ints.Get("voices.active"),
			releasing: e.status.Ints.Get("voices.releasing"),
			started:   e.status.Ints.Get("voices.started"),
			disposed:  e.status.Ints.Get("voices.disposed"),
			ignored:   e.status.Ints.Get("notes.ignored"),
			nodes:     e.status.Ints.Get("graph.nodes"),
			clock:     e.status.Floats.Get("graph.time"),
			reduction: e.status.Floats.Get("compressor.reduction_db"),
			silent:    e.status.Bools.Get("backend.silent"),
			sink:      e.status.Strings.Get("backend.sink"),
		}
	}
	e.publish()
	return e, nil
}

// TriggerAttack starts a voice for note, resuming the audio context first if needed
// Unknown note names are ignored
func (e *Engine) TriggerAttack(note string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.ensureRunning()
	e.voices.Sweep(e.ctx.CurrentTime())

	if _, err := e.voices.NoteOn(note, e.store.Load()); err != nil {
		e.log.Error("note on failed", "note", note, "error", err)
	}
	e.publish()
}

// TriggerRelease starts the release of note, no-op unless it is sounding
func (e *Engine) TriggerRelease(note string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.voices.NoteOff(note, e.store.Load().Release)
	e.publish()
}

// UpdateParams replaces the active patch and steers the effects chain toward it
// Returns the clamped patch that was stored
func (e *Engine) UpdateParams(p patch.Params) patch.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	clamped := e.store.SetPatch(p)
	if !e.closed {
		e.fx.UpdateParameters(clamped)
	}
	return clamped
}

// Params returns the active patch
func (e *Engine) Params() patch.Params {
	return e.store.Load()
}

// Spectrum fills dst with the current byte-scaled spectrum
func (e *Engine) Spectrum(dst []byte) []byte {
	return e.fx.Analyser().ByteFrequencyData(dst)
}

// SpectrumBins returns the length of a full spectrum snapshot
func (e *Engine) SpectrumBins() int {
	return e.fx.Analyser().FrequencyBinCount()
}

// Sweep tears down voices whose release tails have elapsed, returns the count
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0
	}
	n := e.voices.Sweep(e.ctx.CurrentTime())
	e.publish()
	return n
}

// Start launches the background disposal sweep
func (e *Engine) Start() error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	e.wg.Add(1)
	go e.loop()
	return nil
}

func (e *Engine) loop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Stop halts the background sweep, idempotent
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()
	e.running.Store(false)
}

// Close stops the sweep and releases every voice and effect node
// The audio context is left to its owner
func (e *Engine) Close() {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.voices.Close()
	e.fx.Close()
	e.publish()
}

// ensureRunning resumes a suspended context, failure degrades to silent mode
func (e *Engine) ensureRunning() {
	if e.ctx.State() != graph.StateSuspended {
		return
	}
	if err := e.ctx.Resume(); err != nil {
		e.silent.Store(true)
		e.log.Warn("audio resume failed, running silent", "error", err)
	}
}

// Silent reports whether the primary output failed to start
func (e *Engine) Silent() bool {
	return e.silent.Load()
}

// Context returns the audio context the engine renders into
func (e *Engine) Context() *graph.Context {
	return e.ctx
}

// ActiveVoices returns the number of held notes
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voices.ActiveCount()
}

// PendingDisposals returns the number of releasing voices awaiting teardown
func (e *Engine) PendingDisposals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voices.PendingCount()
}

// IsActive reports whether note is held
func (e *Engine) IsActive(note string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.voices.Lookup(note)
	return ok
}

// Stats returns the voice counters
func (e *Engine) Stats() VoiceStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voices.Stats()
}

// ReverbDecay returns the decay the reverb impulse was last built for
func (e *Engine) ReverbDecay() float64 {
	return e.fx.Decay()
}

// publish writes counters to the registry, caller holds mu
func (e *Engine) publish() {
	if e.status == nil {
		return
	}
	s := e.voices.Stats()
	m := e.metrics
	m.active.Store(int64(s.Active))
	m.releasing.Store(int64(s.Releasing))
	m.started.Store(s.Started)
	m.disposed.Store(s.Disposed)
	m.ignored.Store(s.Ignored)
	m.nodes.Store(int64(e.ctx.NodeCount()))
	m.clock.Set(e.ctx.CurrentTime())
	m.silent.Store(e.silent.Load())
	m.sink.Store(e.ctx.SinkName())
	if !e.closed {
		m.reduction.Set(e.fx.Compressor().Reduction())
	}
}
