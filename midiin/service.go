package midiin

import (
	"errors"
	"io"
	"log/slog"
)

// Service attaches a Listener to a port as a lifecycle service
// A missing port disables the service instead of failing startup
type Service struct {
	port    string
	channel int
	resolve func() NoteSink
	log     *slog.Logger

	sink     NoteSink
	listener *Listener
	disabled bool
}

// NewService creates a MIDI input service, resolve supplies the note sink at Init
func NewService(port string, channel int, resolve func() NoteSink, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{port: port, channel: channel, resolve: resolve, log: log}
}

// Name implements Service
func (s *Service) Name() string {
	return "midi"
}

// Dependencies implements Service
func (s *Service) Dependencies() []string {
	return []string{"synth"}
}

// Init implements Service
func (s *Service) Init(args ...any) error {
	s.sink = s.resolve()
	if s.sink == nil {
		return errors.New("midi service: no note sink")
	}
	return nil
}

// Start implements Service
func (s *Service) Start() error {
	l, err := Open(s.port, s.sink, WithChannel(s.channel), WithLogger(s.log))
	if err != nil {
		s.disabled = true
		s.log.Warn("midi input unavailable", "port", s.port, "error", err)
		return nil
	}
	s.listener = l
	return nil
}

// Stop implements Service
func (s *Service) Stop() error {
	if s.listener == nil {
		return nil
	}
	l := s.listener
	s.listener = nil
	return l.Close()
}

// Disabled reports whether no port could be opened
func (s *Service) Disabled() bool {
	return s.disabled
}

// Listener returns the active listener, nil when disabled
func (s *Service) Listener() *Listener {
	return s.listener
}
