// Package patch holds the synthesizer parameter set, its atomic store and file codec
package patch

import "math"

// Params is a complete patch, every field is normalized to [0,1] unless its Field says otherwise
type Params struct {
	Osc1Wave  float64 `toml:"osc1_wave"`
	Osc1Level float64 `toml:"osc1_level"`

	Osc2Wave  float64 `toml:"osc2_wave"`
	Osc2Level float64 `toml:"osc2_level"`
	Osc2Pitch float64 `toml:"osc2_pitch"`

	Osc3Wave  float64 `toml:"osc3_wave"`
	Osc3Level float64 `toml:"osc3_level"`
	Osc3Pitch float64 `toml:"osc3_pitch"`

	Unison     float64 `toml:"unison"`
	Detune     float64 `toml:"detune"`
	PhaseMix   float64 `toml:"phase_mix"`
	PhaseSpeed float64 `toml:"phase_speed"`

	DelayTime     float64 `toml:"delay_time"`
	DelayFeedback float64 `toml:"delay_feedback"`
	DelayMix      float64 `toml:"delay_mix"`

	ReverbMix   float64 `toml:"reverb_mix"`
	ReverbDecay float64 `toml:"reverb_decay"`

	Attack  float64 `toml:"attack"`
	Release float64 `toml:"release"`

	Cutoff    float64 `toml:"cutoff"`
	Resonance float64 `toml:"resonance"`
	Drift     float64 `toml:"drift"`
}

// Default returns the startup patch
func Default() Params {
	return Params{
		Osc1Wave:  0,
		Osc1Level: 0.8,

		Osc2Wave:  0.3,
		Osc2Level: 0.4,
		Osc2Pitch: 12,

		Osc3Wave:  0.8,
		Osc3Level: 0.6,
		Osc3Pitch: -12,

		Unison:     0.2,
		Detune:     0.15,
		PhaseMix:   0.2,
		PhaseSpeed: 0.1,

		DelayTime:     0.4,
		DelayFeedback: 0.3,
		DelayMix:      0.2,

		ReverbMix:   0.4,
		ReverbDecay: 0.7,

		Attack:  0.05,
		Release: 0.4,

		Cutoff:    0.6,
		Resonance: 0.3,
		Drift:     0.1,
	}
}

// Field describes one patch parameter for editing and validation
type Field struct {
	Key   string
	Label string
	Group string
	Min   float64
	Max   float64
	Step  float64
	ref   func(*Params) *float64
}

// Get reads the field from p
func (f Field) Get(p Params) float64 {
	return *f.ref(&p)
}

// Set writes v clamped to the field range into p
func (f Field) Set(p *Params, v float64) {
	*f.ref(p) = f.Clamp(v)
}

// Clamp bounds v to the field range, NaN maps to the lower bound
func (f Field) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return f.Min
	}
	return max(f.Min, min(v, f.Max))
}

var fields = []Field{
	{Key: "osc1_wave", Label: "Shape", Group: "Osc 1", Max: 1, Step: 0.25, ref: func(p *Params) *float64 { return &p.Osc1Wave }},
	{Key: "osc1_level", Label: "Level", Group: "Osc 1", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Osc1Level }},
	{Key: "osc2_wave", Label: "Shape", Group: "Osc 2", Max: 1, Step: 0.25, ref: func(p *Params) *float64 { return &p.Osc2Wave }},
	{Key: "osc2_level", Label: "Level", Group: "Osc 2", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Osc2Level }},
	{Key: "osc2_pitch", Label: "Pitch", Group: "Osc 2", Min: -24, Max: 24, Step: 1, ref: func(p *Params) *float64 { return &p.Osc2Pitch }},
	{Key: "osc3_wave", Label: "Shape", Group: "Osc 3", Max: 1, Step: 0.25, ref: func(p *Params) *float64 { return &p.Osc3Wave }},
	{Key: "osc3_level", Label: "Level", Group: "Osc 3", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Osc3Level }},
	{Key: "osc3_pitch", Label: "Pitch", Group: "Osc 3", Min: -24, Max: 24, Step: 1, ref: func(p *Params) *float64 { return &p.Osc3Pitch }},
	{Key: "unison", Label: "Unison", Group: "Voice", Max: 1, Step: 0.25, ref: func(p *Params) *float64 { return &p.Unison }},
	{Key: "detune", Label: "Detune", Group: "Voice", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Detune }},
	{Key: "cutoff", Label: "Cutoff", Group: "Filter", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Cutoff }},
	{Key: "resonance", Label: "Res", Group: "Filter", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Resonance }},
	{Key: "attack", Label: "Attack", Group: "Envelope", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Attack }},
	{Key: "release", Label: "Release", Group: "Envelope", Max: 2, Step: 0.1, ref: func(p *Params) *float64 { return &p.Release }},
	{Key: "drift", Label: "Drift", Group: "Voice", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.Drift }},
	{Key: "phase_mix", Label: "Mix", Group: "Phaser", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.PhaseMix }},
	{Key: "phase_speed", Label: "Rate", Group: "Phaser", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.PhaseSpeed }},
	{Key: "delay_time", Label: "Time", Group: "Delay", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.DelayTime }},
	{Key: "delay_feedback", Label: "Fdbk", Group: "Delay", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.DelayFeedback }},
	{Key: "delay_mix", Label: "Mix", Group: "Delay", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.DelayMix }},
	{Key: "reverb_mix", Label: "Mix", Group: "Reverb", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.ReverbMix }},
	{Key: "reverb_decay", Label: "Decay", Group: "Reverb", Max: 1, Step: 0.05, ref: func(p *Params) *float64 { return &p.ReverbDecay }},
}

// Fields returns the parameter descriptors in display order
func Fields() []Field {
	return fields
}

// Lookup finds a field by key
func Lookup(key string) (Field, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Clamp returns p with every field bounded to its range
func (p Params) Clamp() Params {
	for _, f := range fields {
		v := f.ref(&p)
		*v = f.Clamp(*v)
	}
	return p
}
