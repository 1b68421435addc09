package service

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

type recordingService struct {
	name    string
	deps    []string
	log     *[]string
	initErr  error
	startErr error
	stopErr  error
	args     []any
}

func (s *recordingService) Name() string          { return s.name }
func (s *recordingService) Dependencies() []string { return s.deps }

func (s *recordingService) Init(args ...any) error {
	s.args = args
	*s.log = append(*s.log, "init:"+s.name)
	return s.initErr
}

func (s *recordingService) Start() error {
	*s.log = append(*s.log, "start:"+s.name)
	return s.startErr
}

func (s *recordingService) Stop() error {
	*s.log = append(*s.log, "stop:"+s.name)
	return s.stopErr
}

// TestHubDependencyOrder verifies dependencies init first and stop last
func TestHubDependencyOrder(t *testing.T) {
	var log []string
	h := NewHub()
	midi := &recordingService{name: "midi", deps: []string{"synth"}, log: &log}
	synth := &recordingService{name: "synth", log: &log}
	for _, s := range []Service{midi, synth} {
		if err := h.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	if err := h.InitAll(map[string][]any{"synth": {42}}); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := h.StartAll(); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if err := h.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := []string{
		"init:synth", "init:midi",
		"start:synth", "start:midi",
		"stop:midi", "stop:synth",
	}
	if !slices.Equal(log, want) {
		t.Errorf("Expected lifecycle %v, got %v", want, log)
	}
	if len(synth.args) != 1 || synth.args[0] != 42 {
		t.Errorf("Expected synth init args [42], got %v", synth.args)
	}
	if len(midi.args) != 0 {
		t.Errorf("Expected no midi init args, got %v", midi.args)
	}
}

// TestHubRejectsDuplicates verifies a name registers only once
func TestHubRejectsDuplicates(t *testing.T) {
	var log []string
	h := NewHub()
	if err := h.Register(&recordingService{name: "synth", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := h.Register(&recordingService{name: "synth", log: &log}); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

// TestHubCircularDependency verifies cycles are reported
func TestHubCircularDependency(t *testing.T) {
	var log []string
	h := NewHub()
	h.Register(&recordingService{name: "a", deps: []string{"b"}, log: &log})
	h.Register(&recordingService{name: "b", deps: []string{"a"}, log: &log})

	if err := h.InitAll(nil); !errors.Is(err, ErrCircularDependency) {
		t.Errorf("Expected ErrCircularDependency, got %v", err)
	}
}

// TestHubInitRollback verifies a failed init stops services initialized before it
func TestHubInitRollback(t *testing.T) {
	var log []string
	h := NewHub()
	h.Register(&recordingService{name: "synth", log: &log})
	h.Register(&recordingService{name: "midi", deps: []string{"synth"}, log: &log, initErr: errors.New("no port")})

	if err := h.InitAll(nil); err == nil {
		t.Fatal("Expected init failure")
	}
	want := []string{"init:synth", "init:midi", "stop:synth"}
	if !slices.Equal(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
}

// TestMustGet verifies typed lookup
func TestMustGet(t *testing.T) {
	var log []string
	h := NewHub()
	h.Register(&recordingService{name: "synth", log: &log})

	svc := MustGet[*recordingService](h, "synth")
	if svc.name != "synth" {
		t.Errorf("Expected synth, got %s", svc.name)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for missing service")
		}
	}()
	MustGet[*recordingService](h, "missing")
}

// TestHubStartRollbackLogs verifies a failed start stops earlier services and logs their stop errors
func TestHubStartRollbackLogs(t *testing.T) {
	var log []string
	var out bytes.Buffer
	h := NewHub(WithLogger(slog.New(slog.NewTextHandler(&out, nil))))
	h.Register(&recordingService{name: "synth", log: &log, stopErr: errors.New("device stuck")})
	h.Register(&recordingService{name: "midi", deps: []string{"synth"}, log: &log, startErr: errors.New("port busy")})

	if err := h.InitAll(nil); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	err := h.StartAll()
	if err == nil || !strings.Contains(err.Error(), "port busy") {
		t.Fatalf("Expected midi start failure, got %v", err)
	}

	want := []string{"init:synth", "init:midi", "start:synth", "start:midi", "stop:synth"}
	if !slices.Equal(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
	if !strings.Contains(out.String(), "device stuck") || !strings.Contains(out.String(), "service=synth") {
		t.Errorf("Expected rollback stop error logged, got %q", out.String())
	}
	if err := h.StopAll(); err != nil {
		t.Errorf("Expected nothing left to stop, got %v", err)
	}
}
