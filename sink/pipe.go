package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
)

// Pipe feeds an external player process detected on the system
type Pipe struct {
	opts    Options
	backend *BackendConfig

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File
	writer  *Writer

	running atomic.Bool
	failed  atomic.Bool
	wg      sync.WaitGroup
	log     *slog.Logger
}

// NewPipe creates an unstarted pipe sink, detection happens on Start
func NewPipe(opts Options) *Pipe {
	opts = opts.withDefaults()
	return &Pipe{opts: opts, log: opts.Logger}
}

// Name implements Sink
func (p *Pipe) Name() string {
	if p.backend != nil {
		return "pipe:" + p.backend.Name
	}
	return "pipe"
}

// Failed reports whether the player exited or the pipe broke while running
func (p *Pipe) Failed() bool {
	return p.failed.Load()
}

// Start implements Sink
func (p *Pipe) Start(src beep.Streamer) error {
	if p.running.Load() {
		return ErrAlreadyStarted
	}
	backend, err := DetectBackend(int(p.opts.Rate), int(p.opts.Buffer.Milliseconds()))
	if err != nil {
		return err
	}
	p.backend = backend

	var out io.Writer
	if backend.Type == BackendOSS {
		f, err := os.OpenFile(backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", backend.Path, err)
		}
		p.ossFile = f
		out = f
	} else {
		cmd := exec.Command(backend.Path, backend.Args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("%s stdin: %w", backend.Name, err)
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return fmt.Errorf("start %s: %w", backend.Name, err)
		}
		p.cmd = cmd
		p.stdin = stdin
		out = stdin

		p.wg.Add(1)
		go p.monitorProcess()
	}

	p.writer = NewWriter(p.Name(), out, p.opts)
	if err := p.writer.Start(src); err != nil {
		return err
	}
	p.running.Store(true)

	p.wg.Add(1)
	go p.monitorWriter()

	p.log.Info("pipe sink started", "backend", backend.Name, "path", backend.Path)
	return nil
}

// monitorProcess watches for player exit
func (p *Pipe) monitorProcess() {
	defer p.wg.Done()
	err := p.cmd.Wait()
	if err != nil && p.running.Load() {
		p.failed.Store(true)
		p.log.Warn("audio player exited", "backend", p.backend.Name, "error", err)
	}
}

// monitorWriter watches for pipe errors
func (p *Pipe) monitorWriter() {
	defer p.wg.Done()
	select {
	case err := <-p.writer.Errors():
		p.failed.Store(true)
		p.log.Warn("audio pipe broken", "error", err)
	case <-p.writer.stopChan:
	}
}

// SetVolume changes the master volume in [0,1]
func (p *Pipe) SetVolume(v float64) {
	if p.writer != nil {
		p.writer.SetVolume(v)
	}
}

// Stop implements Sink
func (p *Pipe) Stop() error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	p.writer.Stop()
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.ossFile != nil {
		p.ossFile.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.wg.Wait()
	return nil
}
