// Package midiin turns MIDI note messages into synthesizer note events
package midiin

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/lixenwraith/aetheria/audio"
)

// ErrPortNotFound is returned when no input port matches
var ErrPortNotFound = errors.New("midi input port not found")

// NoteSink receives note events by name
type NoteSink interface {
	TriggerAttack(note string)
	TriggerRelease(note string)
}

// Option configures a Listener
type Option func(*Listener)

// WithChannel restricts the listener to one MIDI channel 0-15
func WithChannel(ch int) Option {
	return func(l *Listener) { l.channel = ch }
}

// WithLogger sets the listener logger
func WithLogger(log *slog.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// Listener forwards note start and end messages to a NoteSink
type Listener struct {
	sink    NoteSink
	log     *slog.Logger
	channel int

	mu   sync.Mutex
	held map[uint8]string
	port drivers.In
	stop func()
}

// NewListener creates a listener not attached to any port, feed it with Handle
func NewListener(sink NoteSink, opts ...Option) *Listener {
	l := &Listener{
		sink:    sink,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		channel: -1,
		held:    make(map[uint8]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ports lists the input port names of the registered driver
func Ports() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// Open attaches a listener to the named input port, an empty name picks the first port
func Open(name string, sink NoteSink, opts ...Option) (*Listener, error) {
	l := NewListener(sink, opts...)

	var port drivers.In
	if name == "" {
		ins := midi.GetInPorts()
		if len(ins) == 0 {
			return nil, ErrPortNotFound
		}
		port = ins[0]
	} else {
		found, err := midi.FindInPort(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrPortNotFound, name)
		}
		port = found
	}

	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("open midi port %s: %w", port.String(), err)
	}
	stop, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		l.Handle(msg)
	}, midi.HandleError(func(err error) {
		l.log.Warn("midi listener error", "port", port.String(), "error", err)
	}))
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("listen on %s: %w", port.String(), err)
	}

	l.mu.Lock()
	l.port = port
	l.stop = stop
	l.mu.Unlock()
	l.log.Info("midi input connected", "port", port.String())
	return l, nil
}

// Handle dispatches one MIDI message
// Velocity-zero note-on counts as note-off, keys outside the note table are ignored
func (l *Listener) Handle(msg midi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !l.accepts(ch) {
			return
		}
		note, ok := audio.NoteName(int(key))
		if !ok {
			l.log.Debug("midi key outside note table", "key", key)
			return
		}
		l.mu.Lock()
		l.held[key] = note
		l.mu.Unlock()
		l.sink.TriggerAttack(note)

	case msg.GetNoteEnd(&ch, &key):
		if !l.accepts(ch) {
			return
		}
		l.mu.Lock()
		note, ok := l.held[key]
		delete(l.held, key)
		l.mu.Unlock()
		if ok {
			l.sink.TriggerRelease(note)
		}
	}
}

func (l *Listener) accepts(ch uint8) bool {
	return l.channel < 0 || int(ch) == l.channel
}

// Held returns the number of keys currently down
func (l *Listener) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Close stops listening and releases every held note
func (l *Listener) Close() error {
	l.mu.Lock()
	stop, port := l.stop, l.port
	l.stop, l.port = nil, nil
	held := l.held
	l.held = make(map[uint8]string)
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, note := range held {
		l.sink.TriggerRelease(note)
	}
	if port != nil {
		l.log.Info("midi input disconnected", "port", port.String())
		if err := port.Close(); err != nil {
			return fmt.Errorf("close midi port: %w", err)
		}
	}
	return nil
}
