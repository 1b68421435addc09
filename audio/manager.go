package audio

import (
	"io"
	"log/slog"

	"github.com/lixenwraith/aetheria/graph"
	"github.com/lixenwraith/aetheria/patch"
)

// VoiceStats is a snapshot of manager counters
type VoiceStats struct {
	Active    int
	Releasing int
	Started   int64
	Disposed  int64
	Ignored   int64
}

// VoiceManager owns the note table and the teardown queue of releasing voices
// Not safe for concurrent use, the engine serializes access
type VoiceManager struct {
	ctx  *graph.Context
	out  graph.Node
	rand Random
	log  *slog.Logger

	active  map[string]*Voice
	pending disposalQueue

	started  int64
	disposed int64
	ignored  int64
}

// NewVoiceManager creates a manager whose voices feed out
func NewVoiceManager(ctx *graph.Context, out graph.Node, r Random, log *slog.Logger) *VoiceManager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &VoiceManager{
		ctx:    ctx,
		out:    out,
		rand:   r,
		log:    log,
		active: make(map[string]*Voice),
	}
}

// NoteOn starts a voice for note, releasing any voice already sounding it
// Unknown note names return nil without error
func (m *VoiceManager) NoteOn(note string, p patch.Params) (*Voice, error) {
	freq, ok := NoteFreq(note)
	if !ok {
		m.ignored++
		m.log.Debug("unknown note ignored", "note", note)
		return nil, nil
	}

	now := m.ctx.CurrentTime()
	if old, ok := m.active[note]; ok {
		m.releaseVoice(old, now, p.Release)
	}

	plan := PlanVoice(freq, p, m.rand)
	v, err := newVoice(m.ctx, note, plan, m.out, now)
	if err != nil {
		return nil, err
	}
	m.active[note] = v
	m.started++
	return v, nil
}

// NoteOff releases the active voice for note, returns false if none
func (m *VoiceManager) NoteOff(note string, release float64) bool {
	v, ok := m.active[note]
	if !ok {
		return false
	}
	m.releaseVoice(v, m.ctx.CurrentTime(), release)
	return true
}

func (m *VoiceManager) releaseVoice(v *Voice, now, release float64) {
	delete(m.active, v.Note)
	if err := v.release(now, release); err != nil {
		m.log.Warn("voice release", "note", v.Note, "error", err)
	}
	m.pending.schedule(v)
}

// Sweep disposes every releasing voice whose tail ended by now
func (m *VoiceManager) Sweep(now float64) int {
	due := m.pending.due(now)
	for _, v := range due {
		v.dispose()
	}
	m.disposed += int64(len(due))
	if len(due) > 0 {
		m.log.Debug("voices disposed", "count", len(due), "pending", m.pending.Len())
	}
	return len(due)
}

// Lookup returns the active voice for note
func (m *VoiceManager) Lookup(note string) (*Voice, bool) {
	v, ok := m.active[note]
	return v, ok
}

// Notes returns the notes currently held
func (m *VoiceManager) Notes() []string {
	notes := make([]string, 0, len(m.active))
	for n := range m.active {
		notes = append(notes, n)
	}
	return notes
}

// ActiveCount returns the size of the note table
func (m *VoiceManager) ActiveCount() int {
	return len(m.active)
}

// PendingCount returns the number of releasing voices awaiting teardown
func (m *VoiceManager) PendingCount() int {
	return m.pending.Len()
}

// Stats returns the current counters
func (m *VoiceManager) Stats() VoiceStats {
	return VoiceStats{
		Active:    len(m.active),
		Releasing: m.pending.Len(),
		Started:   m.started,
		Disposed:  m.disposed,
		Ignored:   m.ignored,
	}
}

// Close disposes every voice immediately
func (m *VoiceManager) Close() {
	for note, v := range m.active {
		v.dispose()
		delete(m.active, note)
		m.disposed++
	}
	for _, v := range m.pending.drain() {
		v.dispose()
		m.disposed++
	}
}
