package graph

import (
	"errors"
	"math"
	"testing"
)

// TestOscillatorLifecycle verifies start, stop and the single-start rule
func TestOscillatorLifecycle(t *testing.T) {
	c := runningContext()
	osc := c.NewOscillator(WaveSine)
	osc.Frequency.SetValue(441)
	_ = osc.Connect(c.Destination())

	if err := osc.Stop(0.1); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}

	samples := capture(c, 128)
	if samples[25][0] != 0 {
		t.Errorf("Expected silence before start, got %f", samples[25][0])
	}

	start := c.CurrentTime()
	if err := osc.Start(start); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := osc.Start(start); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
	_ = osc.Stop(start + 0.01)

	samples = capture(c, 1024)
	// 441 Hz at 44.1 kHz peaks a quarter period (25 frames) in
	if math.Abs(samples[25][0]-1) > 1e-6 {
		t.Errorf("Expected sine peak at frame 25, got %f", samples[25][0])
	}
	if samples[25][0] != samples[25][1] {
		t.Error("Expected identical channels for mono source")
	}
	if !osc.Ended() {
		t.Error("Expected oscillator to have ended")
	}
	for i := 442; i < 1024; i++ {
		if samples[i][0] != 0 {
			t.Fatalf("Expected silence after stop at %d, got %f", i, samples[i][0])
		}
	}
}

// TestOscillatorWaveformsBounded verifies every waveform stays near unit amplitude
func TestOscillatorWaveformsBounded(t *testing.T) {
	for _, wave := range []WaveType{WaveSine, WaveSquare, WaveSawtooth, WaveTriangle} {
		t.Run(wave.String(), func(t *testing.T) {
			c := runningContext()
			osc := c.NewOscillator(wave)
			osc.Frequency.SetValue(1000)
			osc.Detune.SetValue(-1200)
			_ = osc.Start(0)
			_ = osc.Connect(c.Destination())

			samples := capture(c, 4096)
			peak := 0.0
			for _, s := range samples {
				peak = max(peak, math.Abs(s[0]))
			}
			if peak < 0.9 || peak > 1.1 {
				t.Errorf("Expected peak near 1, got %f", peak)
			}
		})
	}
}

// TestBiquadPassesDC verifies lowpass and allpass have unity gain at DC
func TestBiquadPassesDC(t *testing.T) {
	for _, kind := range []FilterType{FilterLowpass, FilterAllpass} {
		c := runningContext()
		src := newConstNode(c, 1)
		f := c.NewBiquadFilter(kind)
		f.Frequency.SetValue(1000)
		f.Q.SetValue(3)
		_ = src.Connect(f)
		_ = f.Connect(c.Destination())

		samples := capture(c, 8192)
		if got := samples[8191][0]; math.Abs(got-1) > 1e-3 {
			t.Errorf("Filter %d: expected DC gain 1, got %f", kind, got)
		}
	}
}

// TestBiquadLowpassAttenuates verifies a tone well above cutoff is reduced
func TestBiquadLowpassAttenuates(t *testing.T) {
	c := runningContext()
	osc := c.NewOscillator(WaveSine)
	osc.Frequency.SetValue(8000)
	_ = osc.Start(0)
	f := c.NewBiquadFilter(FilterLowpass)
	f.Frequency.SetValue(200)
	f.Q.SetValue(0)
	_ = osc.Connect(f)
	_ = f.Connect(c.Destination())

	samples := capture(c, 8192)
	peak := 0.0
	for _, s := range samples[4096:] {
		peak = max(peak, math.Abs(s[0]))
	}
	if peak > 0.01 {
		t.Errorf("Expected strong attenuation, peak %f", peak)
	}
}

// TestStereoPannerLaw verifies equal-power placement of a mono source
func TestStereoPannerLaw(t *testing.T) {
	tests := []struct {
		pan         float64
		left, right float64
	}{
		{-1, 1, 0},
		{0, math.Sqrt2 / 2, math.Sqrt2 / 2},
		{1, 0, 1},
	}
	for _, tt := range tests {
		c := runningContext()
		src := newConstNode(c, 1)
		p := c.NewStereoPanner()
		p.Pan.SetValue(tt.pan)
		_ = src.Connect(p)
		_ = p.Connect(c.Destination())

		s := capture(c, 128)[64]
		if math.Abs(s[0]-tt.left) > 1e-9 || math.Abs(s[1]-tt.right) > 1e-9 {
			t.Errorf("Pan %.1f: expected (%f, %f), got (%f, %f)", tt.pan, tt.left, tt.right, s[0], s[1])
		}
	}
}

// TestStereoPannerStereoInput verifies stereo input folds toward the panned side
func TestStereoPannerStereoInput(t *testing.T) {
	c := runningContext()
	src := newConstNode(c, 1)
	wide := c.NewStereoPanner()
	narrow := c.NewStereoPanner()
	narrow.Pan.SetValue(1)
	_ = src.Connect(wide)
	_ = wide.Connect(narrow)
	_ = narrow.Connect(c.Destination())

	s := capture(c, 128)[64]
	half := math.Sqrt2 / 2
	if math.Abs(s[0]) > 1e-9 || math.Abs(s[1]-2*half) > 1e-9 {
		t.Errorf("Expected (0, %f), got (%f, %f)", 2*half, s[0], s[1])
	}
}

// TestDelayTime verifies an impulse re-emerges after the configured delay
func TestDelayTime(t *testing.T) {
	c := runningContext()
	imp := newImpulseNode(c)
	d := c.NewDelay(5)
	d.DelayTime.SetValue(0.1)
	_ = imp.Connect(d)
	_ = d.Connect(c.Destination())

	samples := capture(c, 8192)
	peak := 0
	for i := range samples {
		if samples[i][0] > samples[peak][0] {
			peak = i
		}
	}
	if peak != 4410 {
		t.Errorf("Expected impulse at frame 4410, got %d", peak)
	}
}

// TestDelayMinimumIsOneQuantum verifies delays shorter than a quantum are raised
func TestDelayMinimumIsOneQuantum(t *testing.T) {
	c := runningContext()
	imp := newImpulseNode(c)
	d := c.NewDelay(1)
	_ = imp.Connect(d)
	_ = d.Connect(c.Destination())

	samples := capture(c, 512)
	if samples[128][0] != 1 {
		t.Errorf("Expected impulse at frame 128, got %f", samples[128][0])
	}
}

// TestConvolverImpulse verifies partitioned convolution reproduces the impulse response
func TestConvolverImpulse(t *testing.T) {
	c := runningContext()
	ir := NewBuffer(1, 3000, int(testRate))
	ir.Channels[0][0] = 1
	ir.Channels[0][1000] = 0.5
	ir.Channels[0][2999] = -0.25

	cv := c.NewConvolver()
	cv.SetNormalize(false)
	cv.SetBuffer(ir)
	if cv.ImpulseLength() != 3000 {
		t.Fatalf("Expected impulse length 3000, got %d", cv.ImpulseLength())
	}

	imp := newImpulseNode(c)
	_ = imp.Connect(cv)
	_ = cv.Connect(c.Destination())

	samples := capture(c, 4096)
	latency := 512
	checks := map[int]float64{latency: 1, latency + 1000: 0.5, latency + 2999: -0.25, latency + 500: 0}
	for frame, want := range checks {
		for ch := range 2 {
			if got := samples[frame][ch]; math.Abs(got-want) > 1e-9 {
				t.Errorf("Frame %d ch %d: expected %f, got %f", frame, ch, want, got)
			}
		}
	}
}

// TestConvolverNormalization verifies the equal-power scale
func TestConvolverNormalization(t *testing.T) {
	ir := NewBuffer(1, 100, 44100)
	for i := range ir.Channels[0] {
		ir.Channels[0][i] = 1
	}
	if got := normalizationScale(ir); math.Abs(got-0.00125) > 1e-12 {
		t.Errorf("Expected scale 0.00125 for unit power, got %g", got)
	}

	silent := NewBuffer(2, 100, 22050)
	want := 1 / normMinPower * normGainCalibration * 2
	if got := normalizationScale(silent); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected floor scale %g, got %g", want, got)
	}
}

// TestCompressorReducesLoudSignal verifies gain reduction above threshold only
func TestCompressorReducesLoudSignal(t *testing.T) {
	for _, tt := range []struct {
		level float64
		loud  bool
	}{{1, true}, {0.001, false}} {
		c := runningContext()
		src := newConstNode(c, tt.level)
		cp := c.NewCompressor()
		_ = src.Connect(cp)
		_ = cp.Connect(c.Destination())

		c.RenderSeconds(0.2)
		red := cp.Reduction()
		if tt.loud && red > -10 {
			t.Errorf("Expected heavy reduction at level %f, got %f dB", tt.level, red)
		}
		if !tt.loud && red != 0 {
			t.Errorf("Expected no reduction at level %f, got %f dB", tt.level, red)
		}
	}
}

// TestAnalyserSpectrumPeak verifies the byte spectrum peaks at the tone frequency
func TestAnalyserSpectrumPeak(t *testing.T) {
	c := runningContext()
	osc := c.NewOscillator(WaveSine)
	osc.Frequency.SetValue(1000)
	_ = osc.Start(0)
	a := c.NewAnalyser(2048, -100, -30, 0)
	_ = osc.Connect(a)

	c.RenderSeconds(0.1)
	db := a.FloatFrequencyData(nil)
	if len(db) != a.FrequencyBinCount() {
		t.Fatalf("Expected %d bins, got %d", a.FrequencyBinCount(), len(db))
	}

	peak := 0
	for i := range db {
		if db[i] > db[peak] {
			peak = i
		}
	}
	binHz := float64(testRate) / 2048
	if want := int(1000/binHz + 0.5); peak < want-1 || peak > want+1 {
		t.Errorf("Expected peak near bin %d, got %d", want, peak)
	}

	data := a.ByteFrequencyData(nil)
	if data[peak] != 255 {
		t.Errorf("Expected saturated byte at peak, got %d", data[peak])
	}
	if data[len(data)-1] != 0 {
		t.Errorf("Expected silent top bin, got %d", data[len(data)-1])
	}
}
