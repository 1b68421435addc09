package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/lixenwraith/aetheria/constant"
	"github.com/lixenwraith/aetheria/graph"
	"github.com/lixenwraith/aetheria/patch"
)

// VoiceState is the lifecycle stage of a voice
type VoiceState int

const (
	VoiceActive VoiceState = iota
	VoiceReleasing
	VoiceDisposed
)

func (s VoiceState) String() string {
	switch s {
	case VoiceActive:
		return "active"
	case VoiceReleasing:
		return "releasing"
	case VoiceDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// UnisonCount maps the unison amount to a stack size of 1-5
func UnisonCount(unison float64) int {
	n := 1 + int(math.Floor(unison*4))
	return max(1, min(n, constant.MaxUnison))
}

// UnisonOffset returns the symmetric detune in cents of stack member i
func UnisonOffset(i, count int, spread float64) float64 {
	if count <= 1 {
		return 0
	}
	return (float64(i)/float64(count-1) - 0.5) * spread
}

// Waveform quantizes a shape value into four bands
func Waveform(v float64) graph.WaveType {
	switch {
	case v < 0.25:
		return graph.WaveSawtooth
	case v < 0.5:
		return graph.WaveSquare
	case v < 0.75:
		return graph.WaveTriangle
	default:
		return graph.WaveSine
	}
}

// OscPlan is the resolved setting of one oscillator
type OscPlan struct {
	Layer  int
	Unison int
	Wave   graph.WaveType
	Freq   float64
	Detune float64
	Level  float64
}

// VoicePlan holds every value a voice is built from, random draws included
type VoicePlan struct {
	Freq         float64
	Oscillators  []OscPlan
	Cutoff       float64
	CutoffTarget float64
	Q            float64
	Pan          float64
	Attack       float64
}

// PlanVoice resolves a patch and fresh random draws into a voice plan
// Draw order: filter drift, pan, then per stack member drift and layer offsets
func PlanVoice(freq float64, p patch.Params, r Random) VoicePlan {
	plan := VoicePlan{
		Freq:   freq,
		Cutoff: p.Cutoff*constant.FilterCutoffScale + constant.FilterCutoffBase,
		Q:      p.Resonance * constant.FilterResonanceScale,
		Attack: p.Attack + constant.EnvelopeGuard,
	}
	drift := bipolar(r, p.Drift*constant.FilterDriftHz)
	plan.CutoffTarget = max(constant.FilterDriftFloor, plan.Cutoff+drift)
	plan.Pan = bipolar(r, constant.PanSpread)

	count := UnisonCount(p.Unison)
	spread := p.Detune * constant.DetuneSpreadCents
	for i := range count {
		detune := UnisonOffset(i, count, spread) + bipolar(r, p.Drift*constant.DriftDetuneCents)

		plan.Oscillators = append(plan.Oscillators, OscPlan{
			Layer:  1,
			Unison: i,
			Wave:   Waveform(p.Osc1Wave),
			Freq:   freq,
			Detune: detune,
			Level:  p.Osc1Level,
		})
		if p.Osc2Level > constant.LayerGate {
			plan.Oscillators = append(plan.Oscillators, OscPlan{
				Layer:  2,
				Unison: i,
				Wave:   Waveform(p.Osc2Wave),
				Freq:   Transpose(freq, p.Osc2Pitch),
				Detune: detune + bipolar(r, constant.LayerDetuneCents),
				Level:  p.Osc2Level,
			})
		}
		if p.Osc3Level > constant.LayerGate {
			plan.Oscillators = append(plan.Oscillators, OscPlan{
				Layer:  3,
				Unison: i,
				Wave:   Waveform(p.Osc3Wave),
				Freq:   Transpose(freq, p.Osc3Pitch),
				Detune: detune - bipolar(r, constant.LayerDetuneCents),
				Level:  p.Osc3Level,
			})
		}
	}
	return plan
}

// Voice is one sounding note and the graph nodes it owns
// Route: oscillators -> level gains -> filter -> envelope -> panner -> output
type Voice struct {
	Note    string
	Created float64
	Plan    VoicePlan

	state     VoiceState
	oscs      []*graph.Oscillator
	gains     []*graph.Gain
	filter    *graph.BiquadFilter
	env       *graph.Gain
	pan       *graph.StereoPanner
	stopAt    float64
	disposeAt float64
}

// newVoice builds and starts a voice at time now, feeding out
func newVoice(ctx *graph.Context, note string, plan VoicePlan, out graph.Node, now float64) (*Voice, error) {
	v := &Voice{Note: note, Created: now, Plan: plan, state: VoiceActive}

	v.filter = ctx.NewBiquadFilter(graph.FilterLowpass)
	v.filter.Frequency.SetValueAtTime(plan.Cutoff, now)
	v.filter.Frequency.LinearRampToValueAtTime(plan.CutoffTarget, now+constant.FilterDriftRamp)
	v.filter.Q.SetValue(plan.Q)

	v.env = ctx.NewGain(0)
	v.env.Gain.SetValueAtTime(0, now)
	v.env.Gain.LinearRampToValueAtTime(constant.EnvelopeCeiling, now+plan.Attack)

	v.pan = ctx.NewStereoPanner()
	v.pan.Pan.SetValue(plan.Pan)

	if err := connectAll(
		link{v.filter, v.env},
		link{v.env, v.pan},
		link{v.pan, out},
	); err != nil {
		v.dispose()
		return nil, err
	}

	for _, op := range plan.Oscillators {
		osc := ctx.NewOscillator(op.Wave)
		osc.Frequency.SetValue(op.Freq)
		osc.Detune.SetValue(op.Detune)
		g := ctx.NewGain(op.Level)
		v.oscs = append(v.oscs, osc)
		v.gains = append(v.gains, g)

		if err := connectAll(link{osc, g}, link{g, v.filter}); err != nil {
			v.dispose()
			return nil, err
		}
		if err := osc.Start(now); err != nil {
			v.dispose()
			return nil, fmt.Errorf("start oscillator: %w", err)
		}
	}
	return v, nil
}

// State returns the lifecycle stage
func (v *Voice) State() VoiceState {
	return v.state
}

// NodeCount returns the number of graph nodes the voice owns
func (v *Voice) NodeCount() int {
	return len(v.oscs) + len(v.gains) + 3
}

// DisposeAt returns the clock time after which the voice may be torn down
func (v *Voice) DisposeAt() float64 {
	return v.disposeAt
}

// Envelope exposes the amplitude param for inspection
func (v *Voice) Envelope() *graph.Param {
	return v.env.Gain
}

// release ramps the envelope from its live value to the floor and schedules oscillator stop
func (v *Voice) release(now, release float64) error {
	if v.state != VoiceActive {
		return nil
	}
	rt := release + constant.EnvelopeGuard

	g := v.env.Gain
	g.CancelScheduledValues(now)
	g.SetValueAtTime(g.Value(), now)
	var errs []error
	if err := g.ExponentialRampToValueAtTime(constant.EnvelopeFloor, now+rt); err != nil {
		errs = append(errs, fmt.Errorf("release ramp for %s: %w", v.Note, err))
	}

	v.stopAt = now + rt + constant.StopMargin
	for i, osc := range v.oscs {
		if err := osc.Stop(v.stopAt); err != nil {
			errs = append(errs, fmt.Errorf("stop oscillator %d of %s: %w", i, v.Note, err))
		}
	}
	v.disposeAt = now + rt + constant.DisposeMargin
	v.state = VoiceReleasing

	// The voice is scheduled for teardown even when part of the release failed
	return errors.Join(errs...)
}

// dispose disconnects and releases every owned node
func (v *Voice) dispose() {
	for _, osc := range v.oscs {
		osc.Dispose()
	}
	for _, g := range v.gains {
		g.Dispose()
	}
	if v.filter != nil {
		v.filter.Dispose()
	}
	if v.env != nil {
		v.env.Dispose()
	}
	if v.pan != nil {
		v.pan.Dispose()
	}
	v.state = VoiceDisposed
}

type link struct {
	src interface{ Connect(graph.Node) error }
	dst graph.Node
}

func connectAll(links ...link) error {
	for _, l := range links {
		if err := l.src.Connect(l.dst); err != nil {
			return fmt.Errorf("connect voice: %w", err)
		}
	}
	return nil
}
