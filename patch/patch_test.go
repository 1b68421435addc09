package patch

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestDefaultWithinRange verifies the startup patch needs no clamping
func TestDefaultWithinRange(t *testing.T) {
	p := Default()
	if p.Clamp() != p {
		t.Errorf("Expected default patch to be in range, clamped to %+v", p.Clamp())
	}
	if len(Fields()) != 22 {
		t.Errorf("Expected 22 fields, got %d", len(Fields()))
	}
}

// TestClampBoundaries verifies out-of-range values snap to the nearest bound
func TestClampBoundaries(t *testing.T) {
	p := Default()
	p.Osc1Level = 1.5
	p.Cutoff = -0.2
	p.Osc2Pitch = 40
	p.Osc3Pitch = -99
	p.Release = 5
	p.Drift = math.NaN()

	c := p.Clamp()
	if c.Osc1Level != 1 {
		t.Errorf("Expected osc1 level 1, got %f", c.Osc1Level)
	}
	if c.Cutoff != 0 {
		t.Errorf("Expected cutoff 0, got %f", c.Cutoff)
	}
	if c.Osc2Pitch != 24 || c.Osc3Pitch != -24 {
		t.Errorf("Expected pitch bounds ±24, got %f %f", c.Osc2Pitch, c.Osc3Pitch)
	}
	if c.Release != 2 {
		t.Errorf("Expected release 2, got %f", c.Release)
	}
	if c.Drift != 0 {
		t.Errorf("Expected NaN drift to clamp to 0, got %f", c.Drift)
	}
}

// TestFieldAccess verifies descriptors read and write the right field
func TestFieldAccess(t *testing.T) {
	f, ok := Lookup("osc2_pitch")
	if !ok {
		t.Fatal("Expected osc2_pitch field")
	}
	p := Default()
	if f.Get(p) != 12 {
		t.Errorf("Expected 12, got %f", f.Get(p))
	}
	f.Set(&p, 30)
	if p.Osc2Pitch != 24 {
		t.Errorf("Expected clamped set to 24, got %f", p.Osc2Pitch)
	}
	if _, ok := Lookup("sustain"); ok {
		t.Error("Expected unknown field lookup to fail")
	}
}

// TestStoreWholePatch verifies concurrent readers never see a mixed patch
func TestStoreWholePatch(t *testing.T) {
	a := Default()
	b := Default()
	b.Osc1Level, b.Cutoff = 0.1, 0.1
	s := NewStore(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				s.SetPatch(a)
			} else {
				s.SetPatch(b)
			}
		}
	}()

	for range 10000 {
		p := s.Load()
		if p != a && p != b {
			close(stop)
			wg.Wait()
			t.Fatalf("Observed mixed patch: %+v", p)
		}
	}
	close(stop)
	wg.Wait()
}

// TestStoreClamps verifies SetPatch stores the clamped value
func TestStoreClamps(t *testing.T) {
	p := Default()
	p.DelayMix = 3
	s := NewStore(p)
	if got := s.Load().DelayMix; got != 1 {
		t.Errorf("Expected stored delay mix 1, got %f", got)
	}
}

// TestMutateRanges verifies generated patches stay within the mutation ranges
func TestMutateRanges(t *testing.T) {
	src := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		p := Mutate(src)
		if p.Clamp() != p {
			t.Fatalf("Mutated patch out of range: %+v", p)
		}
		if p.Osc1Level < 0.4 || p.Osc1Level > 0.9 {
			t.Errorf("osc1 level %f outside [0.4,0.9]", p.Osc1Level)
		}
		if p.Osc2Pitch != math.Trunc(p.Osc2Pitch) || p.Osc2Pitch < -12 || p.Osc2Pitch > 24 {
			t.Errorf("osc2 pitch %f not an integer in [-12,24]", p.Osc2Pitch)
		}
		if p.Osc3Pitch != math.Trunc(p.Osc3Pitch) || p.Osc3Pitch < -24 || p.Osc3Pitch > 12 {
			t.Errorf("osc3 pitch %f not an integer in [-24,12]", p.Osc3Pitch)
		}
		if p.Drift < 0.05 || p.Drift > 0.3 {
			t.Errorf("drift %f outside [0.05,0.3]", p.Drift)
		}
	}
}

// TestCodecRoundTrip verifies a saved patch loads back identically
func TestCodecRoundTrip(t *testing.T) {
	src := rand.New(rand.NewPCG(7, 7))
	p := Mutate(src)
	path := filepath.Join(t.TempDir(), "patches", "drone.toml")

	if err := Save(path, "drone", p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	name, got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if name != "drone" {
		t.Errorf("Expected name drone, got %q", name)
	}
	if got != p {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, p)
	}
}

// TestUnmarshalPartialAndClamped verifies defaults fill gaps and values are clamped
func TestUnmarshalPartialAndClamped(t *testing.T) {
	data := []byte("[patch]\ncutoff = 0.9\nrelease = 9\n")
	_, p, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := Default()
	want.Cutoff = 0.9
	want.Release = 2
	if p != want {
		t.Errorf("Expected %+v, got %+v", want, p)
	}
}

// TestUnmarshalUnknownField verifies unknown parameters are rejected
func TestUnmarshalUnknownField(t *testing.T) {
	_, _, err := Unmarshal([]byte("[patch]\nsustain = 0.5\n"))
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
}

// TestLoadMissingFile verifies the error wraps the filesystem cause
func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}
