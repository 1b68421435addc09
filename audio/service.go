package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/aetheria/graph"
	"github.com/lixenwraith/aetheria/patch"
	"github.com/lixenwraith/aetheria/sink"
	"github.com/lixenwraith/aetheria/status"
)

// SynthService wraps the audio context and Engine as a Service
// Output failures degrade to the null sink, they never fail the service
type SynthService struct {
	cfg    *Config
	log    *slog.Logger
	status *status.Registry

	ctx    *graph.Context
	engine *Engine
	name   string

	stopped atomic.Bool
}

// NewService creates a synth service, a nil cfg loads settings from the environment
func NewService(cfg *Config, log *slog.Logger, reg *status.Registry) *SynthService {
	if cfg == nil {
		cfg = LoadConfig()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SynthService{cfg: cfg, log: log, status: reg}
}

// Name implements Service
func (s *SynthService) Name() string {
	return "synth"
}

// Dependencies implements Service
func (s *SynthService) Dependencies() []string {
	return nil
}

// Init implements Service
// args[0]: patch.Params - startup patch, overrides Config.PatchPath
func (s *SynthService) Init(args ...any) error {
	p := patch.Default()
	s.name = "default"
	if s.cfg.PatchPath != "" {
		name, loaded, err := patch.Load(s.cfg.PatchPath)
		if err != nil {
			return fmt.Errorf("load patch: %w", err)
		}
		p, s.name = loaded, name
	}
	if len(args) > 0 {
		if override, ok := args[0].(patch.Params); ok {
			p = override
		}
	}

	opts := s.cfg.SinkOptions(s.log)
	out, err := sink.Open(opts)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	s.ctx = graph.NewContext(beep.SampleRate(s.cfg.SampleRate),
		graph.WithSink(out),
		graph.WithFallback(sink.NewNull(opts)),
		graph.WithLogger(s.log),
	)

	engine, err := NewEngine(s.ctx, p,
		WithRandom(NewRandom(s.cfg.Seed)),
		WithLogger(s.log),
		WithStatus(s.status),
		WithSweepInterval(s.cfg.SweepInterval),
	)
	if err != nil {
		s.ctx.Close()
		return fmt.Errorf("build engine: %w", err)
	}
	s.engine = engine
	return nil
}

// Start implements Service
// The output device opens lazily on the first note
func (s *SynthService) Start() error {
	if s.engine == nil {
		return fmt.Errorf("synth service not initialized")
	}
	return s.engine.Start()
}

// Stop implements Service
func (s *SynthService) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if s.engine != nil {
		s.engine.Close()
	}
	if s.ctx != nil {
		if err := s.ctx.Close(); err != nil {
			s.log.Warn("audio context close", "error", err)
			return err
		}
	}
	return nil
}

// Engine returns the engine, nil before Init
func (s *SynthService) Engine() *Engine {
	return s.engine
}

// PatchName returns the name of the startup patch
func (s *SynthService) PatchName() string {
	return s.name
}
