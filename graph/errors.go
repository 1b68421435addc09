package graph

import "errors"

var (
	// ErrContextClosed is returned when operating on a closed context
	ErrContextClosed = errors.New("audio context closed")

	// ErrInvalidRamp is returned for exponential ramps to zero or across a sign change
	ErrInvalidRamp = errors.New("exponential ramp target must be non-zero and share the start sign")

	// ErrAlreadyStarted is returned when a source node is started twice
	ErrAlreadyStarted = errors.New("source already started")

	// ErrNotStarted is returned when stopping a source that was never started
	ErrNotStarted = errors.New("source not started")

	// ErrDisposed is returned when connecting a disposed node
	ErrDisposed = errors.New("node disposed")

	// ErrForeignNode is returned when connecting nodes of different contexts
	ErrForeignNode = errors.New("node belongs to another context")
)
