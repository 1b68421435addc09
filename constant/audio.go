// Package constant holds engine-wide tuning values
package constant

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Render Timing
const (
	// RenderQuantum is the number of frames the graph renders per pull
	RenderQuantum = 128

	// AudioBufferDuration determines sink latency and pacing tick rate
	AudioBufferDuration = 50 * time.Millisecond

	// SweepInterval is the period of the background disposal sweep
	SweepInterval = 100 * time.Millisecond

	// AudioDrainTimeout bounds waiting for a sink to drain on stop
	AudioDrainTimeout = 100 * time.Millisecond
)

// Voice Envelope
const (
	// EnvelopeCeiling is the sustain level reached at the end of the attack ramp
	EnvelopeCeiling = 0.4

	// EnvelopeFloor is the exponential release target, ramps cannot reach zero
	EnvelopeFloor = 0.001

	// EnvelopeGuard is added to attack and release times in seconds
	EnvelopeGuard = 0.01

	// StopMargin delays oscillator stop past the release end, seconds
	StopMargin = 0.1

	// DisposeMargin delays node disconnection past the release end, seconds
	DisposeMargin = 1.0
)

// Voice Construction
const (
	MaxUnison         = 5
	DetuneSpreadCents = 100.0

	// DriftDetuneCents is the half-width of random per-oscillator detune at drift=1
	DriftDetuneCents = 30.0

	// LayerDetuneCents is the half-width of the random offset on layers 2 and 3
	LayerDetuneCents = 5.0

	// LayerGate is the level at or below which a layer is not built
	LayerGate = 0.01

	FilterCutoffScale    = 10000.0
	FilterCutoffBase     = 50.0
	FilterResonanceScale = 15.0

	// FilterDriftHz is the half-width of the random cutoff offset at drift=1
	FilterDriftHz    = 2000.0
	FilterDriftFloor = 50.0
	FilterDriftRamp  = 1.0

	// PanSpread is the half-width of random stereo placement
	PanSpread = 0.1
)

// Effects Chain
const (
	PhaserStages       = 4
	PhaserCenterHz     = 1000.0
	PhaserDepthHz      = 500.0
	PhaserRateScale    = 8.0
	PhaserInitialScale = 5.0

	DelayMaxSeconds    = 5.0
	DelayTimeScale     = 1.5
	DelayTimeOffset    = 0.01
	DelayFeedbackScale = 0.9

	ReverbDecayScale    = 3.0
	ReverbDecayOffset   = 0.1
	ReverbDecayExponent = 5.0

	// ReverbDecayEpsilon is the decay change below which the impulse is kept
	ReverbDecayEpsilon = 0.001

	// ParamSmoothing is the time constant for live parameter changes, seconds
	ParamSmoothing = 0.1

	MasterGain = 0.4

	CompressorThreshold = -12.0
	CompressorKnee      = 30.0
	CompressorRatio     = 12.0
	CompressorAttack    = 0.003
	CompressorRelease   = 0.25
)

// Analysis
const (
	AnalyserFFTSize   = 2048
	AnalyserSmoothing = 0.8
	AnalyserMinDB     = -100.0
	AnalyserMaxDB     = -30.0

	// ConvolverPartition is the uniform partition size of the reverb convolver
	ConvolverPartition = 512
)
