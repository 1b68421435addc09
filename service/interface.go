package service

// Service defines the lifecycle interface for long-lived subsystems
// Services manage resources such as the audio context and MIDI ports
//
// Lifecycle:
//  1. Construction (via constructor)
//  2. Init(args...) - configuration from parsed flags/env
//  3. Start() - launch background goroutines
//  4. [runtime operation]
//  5. Stop() - halt goroutines, release resources
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init before this one
	Dependencies() []string

	// Init configures the service from optional args
	Init(args ...any) error

	// Start begins service operation
	// Called after all services have initialized
	Start() error

	// Stop halts service operation and releases resources
	// Must be idempotent
	Stop() error
}
