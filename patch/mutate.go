package patch

import "math"

// Source yields uniform values in [0,1)
type Source interface {
	Float64() float64
}

// Mutate draws a fresh patch within musically useful ranges
// Ranges are narrower than the field limits so every result is playable
func Mutate(src Source) Params {
	r := func(lo, hi float64) float64 { return lo + src.Float64()*(hi-lo) }
	ri := func(lo, hi int) float64 { return math.Floor(src.Float64()*float64(hi-lo+1)) + float64(lo) }

	p := Params{
		Osc1Wave:  src.Float64(),
		Osc1Level: r(0.4, 0.9),

		Osc2Wave:  src.Float64(),
		Osc2Level: r(0, 0.7),
		Osc2Pitch: ri(-12, 24),

		Osc3Wave:  src.Float64(),
		Osc3Level: r(0, 0.7),
		Osc3Pitch: ri(-24, 12),

		Unison:     r(0, 0.6),
		Detune:     r(0, 0.4),
		PhaseMix:   r(0, 0.6),
		PhaseSpeed: r(0.05, 0.9),

		DelayTime:     r(0.1, 0.9),
		DelayFeedback: r(0.1, 0.6),
		DelayMix:      r(0, 0.5),

		ReverbMix:   r(0.2, 0.7),
		ReverbDecay: r(0.2, 0.95),

		Attack:  r(0.01, 0.6),
		Release: r(0.1, 2.0),

		Cutoff:    r(0.1, 0.95),
		Resonance: r(0.1, 0.8),
		Drift:     r(0.05, 0.3),
	}
	return p.Clamp()
}
