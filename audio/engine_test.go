package audio

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/aetheria/graph"
	"github.com/lixenwraith/aetheria/patch"
	"github.com/lixenwraith/aetheria/status"
)

// testPatch keeps voices and the reverb impulse small so rendering stays fast
func testPatch() patch.Params {
	p := patch.Default()
	p.Unison = 0
	p.ReverbDecay = 0
	p.Attack = 0.05
	p.Release = 0.2
	return p
}

func newTestEngine(t *testing.T, p patch.Params, opts ...EngineOption) *Engine {
	t.Helper()
	ctx := graph.NewContext(44100)
	opts = append([]EngineOption{WithRandom(constRandom(0.75))}, opts...)
	e, err := NewEngine(ctx, p, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() {
		e.Close()
		ctx.Close()
	})
	return e
}

// TestTriggerAttackResumes verifies the first note starts a suspended context
func TestTriggerAttackResumes(t *testing.T) {
	e := newTestEngine(t, testPatch())
	if e.Context().State() != graph.StateSuspended {
		t.Fatalf("Expected suspended context before first note, got %v", e.Context().State())
	}

	e.TriggerAttack("A4")

	if e.Context().State() != graph.StateRunning {
		t.Errorf("Expected running context, got %v", e.Context().State())
	}
	if !e.IsActive("A4") {
		t.Error("Expected A4 to be active")
	}
	if e.Silent() {
		t.Error("Expected engine not silent without a failing sink")
	}
}

// TestUnknownNoteIgnored verifies unknown names create nothing
func TestUnknownNoteIgnored(t *testing.T) {
	e := newTestEngine(t, testPatch())
	baseline := e.Context().NodeCount()

	e.TriggerAttack("H4")
	e.TriggerRelease("H4")
	e.TriggerRelease("C4")

	if e.ActiveVoices() != 0 {
		t.Errorf("Expected no active voices, got %d", e.ActiveVoices())
	}
	if got := e.Context().NodeCount(); got != baseline {
		t.Errorf("Expected %d nodes, got %d", baseline, got)
	}
	if s := e.Stats(); s.Ignored != 1 || s.Started != 0 {
		t.Errorf("Expected 1 ignored and 0 started, got %+v", s)
	}
}

// TestVoiceNodeOwnership verifies each voice adds exactly its own nodes
func TestVoiceNodeOwnership(t *testing.T) {
	p := testPatch()
	p.Unison = 1
	e := newTestEngine(t, p)
	baseline := e.Context().NodeCount()

	e.TriggerAttack("C4")
	v, ok := e.voices.Lookup("C4")
	if !ok {
		t.Fatal("Expected C4 voice")
	}
	// 5 members x 3 layers, each oscillator with its level gain, plus filter, envelope, pan
	if v.NodeCount() != 33 {
		t.Errorf("Expected 33 voice nodes, got %d", v.NodeCount())
	}
	if got := e.Context().NodeCount(); got != baseline+v.NodeCount() {
		t.Errorf("Expected %d nodes, got %d", baseline+v.NodeCount(), got)
	}
}

// TestNoLeakAfterRelease verifies a released voice leaves no nodes once its tail elapses
func TestNoLeakAfterRelease(t *testing.T) {
	p := testPatch()
	e := newTestEngine(t, p)
	ctx := e.Context()
	baseline := ctx.NodeCount()

	for _, note := range []string{"C4", "E4", "G4"} {
		e.TriggerAttack(note)
		e.TriggerRelease(note)
		if e.IsActive(note) {
			t.Errorf("Expected %s removed from the table on release", note)
		}
	}
	if e.PendingDisposals() != 3 {
		t.Fatalf("Expected 3 pending disposals, got %d", e.PendingDisposals())
	}

	// Not yet due
	ctx.RenderSeconds(p.Release)
	if n := e.Sweep(); n != 0 {
		t.Errorf("Expected nothing disposed before the margin, got %d", n)
	}

	ctx.RenderSeconds(1.1)
	if n := e.Sweep(); n != 3 {
		t.Errorf("Expected 3 voices disposed, got %d", n)
	}
	if got := ctx.NodeCount(); got != baseline {
		t.Errorf("Expected node count back to %d, got %d", baseline, got)
	}
	if e.PendingDisposals() != 0 {
		t.Errorf("Expected no pending disposals, got %d", e.PendingDisposals())
	}
}

// TestRetrigger verifies a repeated note keeps one table entry and lets the old voice release
func TestRetrigger(t *testing.T) {
	e := newTestEngine(t, testPatch())

	e.TriggerAttack("C4")
	first, _ := e.voices.Lookup("C4")
	e.Context().RenderSeconds(0.05)
	e.TriggerAttack("C4")
	second, _ := e.voices.Lookup("C4")

	if e.ActiveVoices() != 1 {
		t.Errorf("Expected 1 active voice, got %d", e.ActiveVoices())
	}
	if first == second {
		t.Fatal("Expected a new voice for the retrigger")
	}
	if first.State() != VoiceReleasing {
		t.Errorf("Expected first voice releasing, got %v", first.State())
	}
	if second.State() != VoiceActive {
		t.Errorf("Expected second voice active, got %v", second.State())
	}
	if e.PendingDisposals() != 1 {
		t.Errorf("Expected 1 pending disposal, got %d", e.PendingDisposals())
	}
	if s := e.Stats(); s.Started != 2 {
		t.Errorf("Expected 2 voices started, got %d", s.Started)
	}
}

// TestEnvelopeShape verifies attack ceiling, release floor and oscillator stop
func TestEnvelopeShape(t *testing.T) {
	p := testPatch()
	e := newTestEngine(t, p)
	ctx := e.Context()

	e.TriggerAttack("A4")
	v, _ := e.voices.Lookup("A4")

	ctx.RenderSeconds(0.1)
	if got := v.Envelope().Value(); math.Abs(got-0.4) > eps {
		t.Errorf("Expected envelope at ceiling 0.4, got %v", got)
	}

	// Held with no decay stage
	ctx.RenderSeconds(0.5)
	if got := v.Envelope().Value(); math.Abs(got-0.4) > eps {
		t.Errorf("Expected envelope to hold 0.4, got %v", got)
	}

	e.TriggerRelease("A4")
	ctx.RenderSeconds(0.1)
	mid := v.Envelope().Value()
	if mid <= 0.001 || mid >= 0.4 {
		t.Errorf("Expected envelope between floor and ceiling mid-release, got %v", mid)
	}

	ctx.RenderSeconds(0.3)
	if got := v.Envelope().Value(); math.Abs(got-0.001) > 1e-6 {
		t.Errorf("Expected envelope at floor 0.001, got %v", got)
	}
	for i, osc := range v.oscs {
		if !osc.Ended() {
			t.Errorf("Expected oscillator %d stopped", i)
		}
	}
}

// TestReleaseDuringAttack verifies release starts from the live envelope value
func TestReleaseDuringAttack(t *testing.T) {
	p := testPatch()
	p.Attack = 1
	e := newTestEngine(t, p)
	ctx := e.Context()

	e.TriggerAttack("A4")
	v, _ := e.voices.Lookup("A4")
	ctx.RenderSeconds(0.25)
	live := v.Envelope().Value()
	if live <= 0 || live >= 0.2 {
		t.Fatalf("Expected partial attack, got %v", live)
	}

	e.TriggerRelease("A4")
	ctx.RenderFrames(128)
	if got := v.Envelope().Value(); got > live {
		t.Errorf("Expected release to start at or below %v, got %v", live, got)
	}
}

// TestUpdateParamsClamps verifies out-of-range input is bounded, not rejected
func TestUpdateParamsClamps(t *testing.T) {
	e := newTestEngine(t, testPatch())

	p := testPatch()
	p.Osc2Pitch = 40
	p.Release = -1
	p.Cutoff = math.NaN()
	p.DelayMix = 3

	got := e.UpdateParams(p)
	if got.Osc2Pitch != 24 || got.Release != 0 || got.Cutoff != 0 || got.DelayMix != 1 {
		t.Errorf("Expected clamped patch, got pitch=%v release=%v cutoff=%v mix=%v",
			got.Osc2Pitch, got.Release, got.Cutoff, got.DelayMix)
	}
	if e.Params() != got {
		t.Error("Expected stored patch to equal the returned clamped patch")
	}
}

// TestUpdateParamsSmoothed verifies effect settings glide to their targets and repeat updates are no-ops
func TestUpdateParamsSmoothed(t *testing.T) {
	e := newTestEngine(t, testPatch())
	ctx := e.Context()
	e.TriggerAttack("C4")

	p := e.Params()
	p.DelayMix = 0.8
	p.ReverbMix = 0.1
	e.UpdateParams(p)
	e.UpdateParams(p)

	// One time constant reaches about 63 percent of the step
	ctx.RenderSeconds(0.1)
	wet := e.fx.delayWet.Gain.Value()
	if wet <= 0.2 || wet >= 0.8 {
		t.Errorf("Expected delay wet mid-glide, got %v", wet)
	}

	ctx.RenderSeconds(2.5)
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"delay wet", e.fx.delayWet.Gain.Value(), 0.8},
		{"delay dry", e.fx.delayDry.Gain.Value(), 0.2},
		{"reverb wet", e.fx.reverbWet.Gain.Value(), 0.1},
		{"feedback", e.fx.feedback.Gain.Value(), p.DelayFeedback * 0.9},
		{"delay time", e.fx.delay.DelayTime.Value(), p.DelayTime*1.5 + 0.01},
		{"phaser rate", e.fx.lfo.Frequency.Value(), p.PhaseSpeed * 8},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-6 {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}

	before := e.fx.delayWet.Gain.Value()
	e.UpdateParams(p)
	ctx.RenderSeconds(0.1)
	if after := e.fx.delayWet.Gain.Value(); math.Abs(after-before) > 1e-9 {
		t.Errorf("Expected identical update to leave value at %v, got %v", before, after)
	}
}

// TestReverbDecayRegenerates verifies a decay change rebuilds the impulse
func TestReverbDecayRegenerates(t *testing.T) {
	e := newTestEngine(t, testPatch())
	if got := e.fx.reverb.ImpulseLength(); got != ImpulseLength(0, 44100) {
		t.Fatalf("Expected initial impulse of %d frames, got %d", ImpulseLength(0, 44100), got)
	}

	p := e.Params()
	p.ReverbDecay = 0.1
	e.UpdateParams(p)
	if e.ReverbDecay() != 0.1 {
		t.Errorf("Expected requested decay 0.1, got %v", e.ReverbDecay())
	}

	want := ImpulseLength(0.1, 44100)
	deadline := time.Now().Add(2 * time.Second)
	for e.fx.reverb.ImpulseLength() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected impulse of %d frames, got %d", want, e.fx.reverb.ImpulseLength())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSpectrum verifies the snapshot size and that a sounding note registers
func TestSpectrum(t *testing.T) {
	e := newTestEngine(t, testPatch())
	if e.SpectrumBins() != 1024 {
		t.Errorf("Expected 1024 bins, got %d", e.SpectrumBins())
	}

	e.TriggerAttack("A4")
	e.Context().RenderSeconds(0.2)

	spec := e.Spectrum(nil)
	if len(spec) != 1024 {
		t.Fatalf("Expected 1024 bins, got %d", len(spec))
	}
	peak := 0
	for _, v := range spec {
		peak = max(peak, int(v))
	}
	if peak == 0 {
		t.Error("Expected non-zero spectrum while a note sounds")
	}
}

// TestEngineMetrics verifies counters are published to the registry
func TestEngineMetrics(t *testing.T) {
	reg := status.NewRegistry()
	e := newTestEngine(t, testPatch(), WithStatus(reg))

	e.TriggerAttack("C4")
	e.TriggerAttack("E4")
	e.TriggerRelease("C4")
	e.TriggerAttack("nope")

	if got := reg.Ints.Get("voices.active").Load(); got != 1 {
		t.Errorf("Expected voices.active 1, got %d", got)
	}
	if got := reg.Ints.Get("voices.releasing").Load(); got != 1 {
		t.Errorf("Expected voices.releasing 1, got %d", got)
	}
	if got := reg.Ints.Get("voices.started").Load(); got != 2 {
		t.Errorf("Expected voices.started 2, got %d", got)
	}
	if got := reg.Ints.Get("notes.ignored").Load(); got != 1 {
		t.Errorf("Expected notes.ignored 1, got %d", got)
	}
	if got := reg.Ints.Get("graph.nodes").Load(); got != int64(e.Context().NodeCount()) {
		t.Errorf("Expected graph.nodes %d, got %d", e.Context().NodeCount(), got)
	}
}

// TestEngineLifecycle verifies the sweep loop starts once and Close is idempotent
func TestEngineLifecycle(t *testing.T) {
	e := newTestEngine(t, testPatch(), WithSweepInterval(5*time.Millisecond))
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(); err == nil {
		t.Error("Expected second Start to fail")
	}

	e.TriggerAttack("C4")
	e.TriggerRelease("C4")
	e.Context().RenderSeconds(1.5)

	deadline := time.Now().Add(time.Second)
	for e.PendingDisposals() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected background sweep to dispose the voice")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.Close()
	e.Close()
	e.TriggerAttack("C4")
	if e.ActiveVoices() != 0 {
		t.Error("Expected closed engine to ignore notes")
	}
}

// TestServiceNullBackend verifies the service wires a silent output and a saved patch
func TestServiceNullBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pad.toml")
	want := testPatch()
	want.Cutoff = 0.25
	if err := patch.Save(path, "pad", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Backend = "null"
	cfg.PatchPath = path
	cfg.Seed = 1
	svc := NewService(cfg, nil, status.NewRegistry())

	if err := svc.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	if svc.PatchName() != "pad" {
		t.Errorf("Expected patch name pad, got %q", svc.PatchName())
	}
	if got := svc.Engine().Params().Cutoff; got != 0.25 {
		t.Errorf("Expected loaded cutoff 0.25, got %v", got)
	}

	svc.Engine().TriggerAttack("C4")
	if got := svc.Engine().Context().SinkName(); got != "null" {
		t.Errorf("Expected null sink, got %q", got)
	}

	if err := svc.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Expected idempotent Stop, got %v", err)
	}
}

// TestServiceBadBackend verifies an unknown backend fails Init
func TestServiceBadBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "tape"
	svc := NewService(cfg, nil, nil)
	if err := svc.Init(); err == nil {
		t.Error("Expected Init to fail for unknown backend")
	}
}

// TestLoadConfig verifies environment overrides and clamping
func TestLoadConfig(t *testing.T) {
	t.Setenv("AETHERIA_BACKEND", " NULL ")
	t.Setenv("AETHERIA_SAMPLE_RATE", "abc")
	t.Setenv("AETHERIA_BUFFER_MS", "20")
	t.Setenv("AETHERIA_MASTER_VOLUME", "150")
	t.Setenv("AETHERIA_SWEEP_MS", "1")
	t.Setenv("AETHERIA_PATCH", "/tmp/x.toml")

	cfg := LoadConfig()
	if cfg.Backend != "null" {
		t.Errorf("Expected backend null, got %q", cfg.Backend)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("Expected default sample rate on parse failure, got %d", cfg.SampleRate)
	}
	if cfg.Buffer != 20*time.Millisecond {
		t.Errorf("Expected 20ms buffer, got %v", cfg.Buffer)
	}
	if cfg.MasterVolume != 1 {
		t.Errorf("Expected volume clamped to 1, got %v", cfg.MasterVolume)
	}
	if cfg.SweepInterval != 10*time.Millisecond {
		t.Errorf("Expected sweep clamped to 10ms, got %v", cfg.SweepInterval)
	}
	if cfg.PatchPath != "/tmp/x.toml" {
		t.Errorf("Expected patch path, got %q", cfg.PatchPath)
	}

	opts := cfg.SinkOptions(nil)
	if opts.Backend != "null" || int(opts.Rate) != 44100 {
		t.Errorf("Unexpected sink options %+v", opts)
	}
}

// TestDefaultConfig verifies compiled defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != "auto" || cfg.SampleRate != 44100 || cfg.MasterVolume != 1 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

// TestPhaserRateAtStartup verifies the phaser LFO reaches its patch rate without any update
func TestPhaserRateAtStartup(t *testing.T) {
	p := testPatch()
	p.PhaseSpeed = 0.5
	e := newTestEngine(t, p)
	ctx := e.Context()

	e.TriggerAttack("A4")
	ctx.RenderSeconds(3)

	want := p.PhaseSpeed * 8
	if got := e.fx.lfo.Frequency.Value(); math.Abs(got-want) > 1e-3 {
		t.Errorf("Expected phaser rate %v, got %v", want, got)
	}
}

// stubSink records starts without pulling, the test drives the clock
type stubSink struct {
	name   string
	err    error
	starts int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Start(beep.Streamer) error {
	s.starts++
	return s.err
}

func (s *stubSink) Stop() error { return nil }

// TestSilentFallbackDisposes verifies a failed output keeps notes and teardown working
func TestSilentFallbackDisposes(t *testing.T) {
	primary := &stubSink{name: "device", err: errors.New("device busy")}
	fallback := &stubSink{name: "null"}
	ctx := graph.NewContext(44100, graph.WithSink(primary), graph.WithFallback(fallback))
	p := testPatch()
	e, err := NewEngine(ctx, p, WithRandom(constRandom(0.75)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() {
		e.Close()
		ctx.Close()
	})
	baseline := ctx.NodeCount()

	e.TriggerAttack("E4")
	if !e.Silent() {
		t.Fatal("Expected silent mode after the device failed")
	}
	if ctx.State() != graph.StateRunning || ctx.SinkName() != "null" {
		t.Fatalf("Expected running on fallback, got %v on %q", ctx.State(), ctx.SinkName())
	}
	if !e.IsActive("E4") {
		t.Fatal("Expected E4 active in silent mode")
	}
	if primary.starts != 1 || fallback.starts != 1 {
		t.Errorf("Expected one start each, got device=%d null=%d", primary.starts, fallback.starts)
	}

	ctx.RenderSeconds(0.1)
	e.TriggerRelease("E4")

	// Teardown is due release + 0.01 + 1.0 seconds after the release
	ctx.RenderSeconds(p.Release + 0.5)
	if n := e.Sweep(); n != 0 {
		t.Errorf("Expected nothing disposed before the margin, got %d", n)
	}
	ctx.RenderSeconds(0.6)
	if n := e.Sweep(); n != 1 {
		t.Errorf("Expected the voice disposed, got %d", n)
	}
	if got := ctx.NodeCount(); got != baseline {
		t.Errorf("Expected node count back to %d, got %d", baseline, got)
	}

	// Further notes do not retry the device
	e.TriggerAttack("G4")
	if primary.starts != 1 {
		t.Errorf("Expected no second device start, got %d", primary.starts)
	}
}
