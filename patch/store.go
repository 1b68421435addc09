package patch

import "sync/atomic"

// Store holds the active patch, readers always observe a whole patch
type Store struct {
	current atomic.Pointer[Params]
}

// NewStore creates a store holding the clamped p
func NewStore(p Params) *Store {
	s := &Store{}
	s.SetPatch(p)
	return s
}

// SetPatch replaces the active patch with a clamped copy of p
func (s *Store) SetPatch(p Params) Params {
	clamped := p.Clamp()
	s.current.Store(&clamped)
	return clamped
}

// Load returns the active patch
func (s *Store) Load() Params {
	return *s.current.Load()
}
