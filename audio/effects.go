package audio

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/lixenwraith/aetheria/constant"
	"github.com/lixenwraith/aetheria/graph"
	"github.com/lixenwraith/aetheria/patch"
)

// EffectsChain is the shared post-voice signal path
//
//	input -> phaser (allpass stages, LFO swept) -> delay with feedback
//	      -> convolution reverb (fed wet and dry) -> master -> compressor -> destination
//	                                                              \-> analyser
type EffectsChain struct {
	ctx  *graph.Context
	log  *slog.Logger
	rand Random

	input     *graph.Gain
	stages    []*graph.BiquadFilter
	lfo       *graph.Oscillator
	lfoDepth  *graph.Gain
	phaserWet *graph.Gain
	phaserDry *graph.Gain
	phaserOut *graph.Gain

	delay    *graph.Delay
	feedback *graph.Gain
	delayWet *graph.Gain
	delayDry *graph.Gain

	reverb    *graph.Convolver
	reverbWet *graph.Gain
	reverbDry *graph.Gain

	master     *graph.Gain
	compressor *graph.Compressor
	analyser   *graph.Analyser

	mu    sync.Mutex
	decay float64

	// regen carries the latest requested decay to the impulse worker
	regen    chan float64
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEffectsChain builds the chain into ctx's destination and starts the impulse worker
// The initial impulse is generated before returning
// Every smoothed setting is then steered to its patch mapping
func NewEffectsChain(ctx *graph.Context, p patch.Params, r Random, log *slog.Logger) (*EffectsChain, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fx := &EffectsChain{
		ctx:      ctx,
		log:      log,
		rand:     r,
		regen:    make(chan float64, 1),
		stopChan: make(chan struct{}),
	}

	// build creates every node before wiring, so dispose is safe on failure
	if err := fx.build(p); err != nil {
		fx.dispose()
		return nil, err
	}

	fx.RegenerateImpulse(p.ReverbDecay)

	fx.wg.Add(1)
	go fx.regenLoop()

	// Glide from the startup LFO rate to the patch mapping
	fx.UpdateParameters(p)
	return fx, nil
}

func (fx *EffectsChain) build(p patch.Params) error {
	ctx := fx.ctx

	// Master section
	fx.compressor = ctx.NewCompressor()
	fx.compressor.Threshold.SetValue(constant.CompressorThreshold)
	fx.compressor.Knee.SetValue(constant.CompressorKnee)
	fx.compressor.Ratio.SetValue(constant.CompressorRatio)
	fx.compressor.Attack.SetValue(constant.CompressorAttack)
	fx.compressor.Release.SetValue(constant.CompressorRelease)
	fx.master = ctx.NewGain(constant.MasterGain)
	fx.analyser = ctx.NewAnalyser(constant.AnalyserFFTSize, constant.AnalyserMinDB,
		constant.AnalyserMaxDB, constant.AnalyserSmoothing)

	// Reverb
	fx.reverb = ctx.NewConvolver()
	fx.reverbWet = ctx.NewGain(p.ReverbMix)
	fx.reverbDry = ctx.NewGain(1)

	// Delay
	fx.delay = ctx.NewDelay(constant.DelayMaxSeconds)
	fx.delay.DelayTime.SetValue(delayTime(p))
	fx.feedback = ctx.NewGain(p.DelayFeedback * constant.DelayFeedbackScale)
	fx.delayWet = ctx.NewGain(p.DelayMix)
	fx.delayDry = ctx.NewGain(1 - p.DelayMix)

	// Phaser
	fx.input = ctx.NewGain(1)
	for range constant.PhaserStages {
		f := ctx.NewBiquadFilter(graph.FilterAllpass)
		f.Frequency.SetValue(constant.PhaserCenterHz)
		fx.stages = append(fx.stages, f)
	}
	fx.lfo = ctx.NewOscillator(graph.WaveSine)
	fx.lfo.Frequency.SetValue(p.PhaseSpeed * constant.PhaserInitialScale)
	fx.lfoDepth = ctx.NewGain(constant.PhaserDepthHz)
	fx.phaserWet = ctx.NewGain(p.PhaseMix)
	fx.phaserDry = ctx.NewGain(1 - p.PhaseMix)
	fx.phaserOut = ctx.NewGain(1)

	links := []link{
		{fx.compressor, ctx.Destination()},
		{fx.compressor, fx.analyser},
		{fx.master, fx.compressor},

		{fx.reverb, fx.reverbWet},
		{fx.reverbWet, fx.master},
		{fx.reverbDry, fx.master},

		{fx.delay, fx.feedback},
		{fx.feedback, fx.delay},
		{fx.delay, fx.delayWet},
		{fx.delayWet, fx.reverb},
		{fx.delayWet, fx.reverbDry},
		{fx.delayDry, fx.reverb},
		{fx.delayDry, fx.reverbDry},

		{fx.phaserOut, fx.delay},
		{fx.phaserOut, fx.delayDry},
		{fx.input, fx.stages[0]},
		{fx.input, fx.phaserDry},
		{fx.stages[len(fx.stages)-1], fx.phaserWet},
		{fx.phaserWet, fx.phaserOut},
		{fx.phaserDry, fx.phaserOut},
		{fx.lfo, fx.lfoDepth},
	}
	for i := 1; i < len(fx.stages); i++ {
		links = append(links, link{fx.stages[i-1], fx.stages[i]})
	}
	if err := connectAll(links...); err != nil {
		return fmt.Errorf("build effects: %w", err)
	}
	for _, f := range fx.stages {
		if err := fx.lfoDepth.ConnectParam(f.Frequency); err != nil {
			return fmt.Errorf("build effects: %w", err)
		}
	}
	if err := fx.lfo.Start(ctx.CurrentTime()); err != nil {
		return fmt.Errorf("start phaser lfo: %w", err)
	}
	return nil
}

func delayTime(p patch.Params) float64 {
	return p.DelayTime*constant.DelayTimeScale + constant.DelayTimeOffset
}

// Input returns the node voices connect to
func (fx *EffectsChain) Input() graph.Node {
	return fx.input
}

// Analyser returns the spectrum tap
func (fx *EffectsChain) Analyser() *graph.Analyser {
	return fx.analyser
}

// Compressor returns the master compressor
func (fx *EffectsChain) Compressor() *graph.Compressor {
	return fx.compressor
}

// UpdateParameters moves every continuous effect setting toward p with smoothing
// A changed reverb decay queues an impulse rebuild
func (fx *EffectsChain) UpdateParameters(p patch.Params) {
	now := fx.ctx.CurrentTime()
	tau := constant.ParamSmoothing

	fx.delay.DelayTime.SetTargetAtTime(delayTime(p), now, tau)
	fx.feedback.Gain.SetTargetAtTime(p.DelayFeedback*constant.DelayFeedbackScale, now, tau)
	fx.delayWet.Gain.SetTargetAtTime(p.DelayMix, now, tau)
	fx.delayDry.Gain.SetTargetAtTime(1-p.DelayMix, now, tau)

	fx.reverbWet.Gain.SetTargetAtTime(p.ReverbMix, now, tau)

	fx.lfo.Frequency.SetTargetAtTime(p.PhaseSpeed*constant.PhaserRateScale, now, tau)
	fx.phaserWet.Gain.SetTargetAtTime(p.PhaseMix, now, tau)
	fx.phaserDry.Gain.SetTargetAtTime(1-p.PhaseMix, now, tau)

	fx.mu.Lock()
	changed := math.Abs(p.ReverbDecay-fx.decay) >= constant.ReverbDecayEpsilon
	if changed {
		fx.decay = p.ReverbDecay
	}
	fx.mu.Unlock()
	if changed {
		fx.requestImpulse(p.ReverbDecay)
	}
}

// Decay returns the most recently requested reverb decay
func (fx *EffectsChain) Decay() float64 {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.decay
}

// RegenerateImpulse synchronously builds and installs a reverb impulse for decay
func (fx *EffectsChain) RegenerateImpulse(decay float64) {
	fx.mu.Lock()
	fx.decay = decay
	fx.mu.Unlock()
	fx.installImpulse(decay)
}

func (fx *EffectsChain) installImpulse(decay float64) {
	buf := ImpulseResponse(decay, int(fx.ctx.SampleRate()), fx.rand)
	fx.reverb.SetBuffer(buf)
	fx.log.Debug("reverb impulse regenerated", "decay", decay, "frames", buf.Len())
}

// requestImpulse hands decay to the worker, replacing any request it has not picked up
func (fx *EffectsChain) requestImpulse(decay float64) {
	for {
		select {
		case fx.regen <- decay:
			return
		default:
		}
		select {
		case <-fx.regen:
		default:
		}
	}
}

func (fx *EffectsChain) regenLoop() {
	defer fx.wg.Done()
	for {
		select {
		case <-fx.stopChan:
			return
		case decay := <-fx.regen:
			fx.installImpulse(decay)
		}
	}
}

// Close stops the impulse worker and releases every node of the chain
func (fx *EffectsChain) Close() {
	fx.stopOnce.Do(func() {
		close(fx.stopChan)
	})
	fx.wg.Wait()
	fx.dispose()
}

func (fx *EffectsChain) dispose() {
	nodes := []interface{ Dispose() }{
		fx.input, fx.lfo, fx.lfoDepth, fx.phaserWet, fx.phaserDry, fx.phaserOut,
		fx.delay, fx.feedback, fx.delayWet, fx.delayDry,
		fx.reverb, fx.reverbWet, fx.reverbDry,
		fx.master, fx.compressor, fx.analyser,
	}
	for _, f := range fx.stages {
		nodes = append(nodes, f)
	}
	for _, n := range nodes {
		n.Dispose()
	}
}
