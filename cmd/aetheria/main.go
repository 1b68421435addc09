// Command aetheria is a terminal front-end for the generative synthesizer
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/aetheria/audio"
	"github.com/lixenwraith/aetheria/midiin"
	"github.com/lixenwraith/aetheria/service"
	"github.com/lixenwraith/aetheria/status"
)

const frameInterval = 16 * time.Millisecond

var (
	backendFlag  = flag.String("backend", "", "Audio output: auto, speaker, oto, pipe, null")
	rateFlag     = flag.Int("rate", 0, "Sample rate in Hz")
	volumeFlag   = flag.Int("volume", -1, "Master volume 0-100")
	patchFlag    = flag.String("patch", "", "Patch file to load at startup")
	saveFlag     = flag.String("save", defaultSave, "Patch file written by save")
	seedFlag     = flag.Uint64("seed", 0, "Random seed, 0 seeds from the clock")
	midiFlag     = flag.Bool("midi", false, "Enable MIDI input")
	midiPortFlag = flag.String("midi-port", "", "MIDI input port name, empty picks the first port")
	channelFlag  = flag.Int("midi-channel", -1, "MIDI channel 0-15, -1 accepts all")
	listMIDIFlag = flag.Bool("list-midi", false, "List MIDI input ports and exit")
	debugFlag    = flag.Bool("debug", false, "Write logs to logs/aetheria.log")
)

func main() {
	flag.Parse()

	if *listMIDIFlag {
		listMIDIPorts()
		closeMIDI()
		return
	}

	logFile := setupLogging(*debugFlag)
	if logFile != nil {
		defer logFile.Close()
	}
	logger := newLogger(logFile, *debugFlag)

	cfg := configFromFlags()
	reg := status.NewRegistry()

	synth := audio.NewService(cfg, logger, reg)
	hub := service.NewHub(service.WithLogger(logger))
	if err := hub.Register(synth); err != nil {
		fail("register synth: %v", err)
	}
	if *midiFlag {
		resolve := func() midiin.NoteSink {
			if eng := synth.Engine(); eng != nil {
				return eng
			}
			return nil
		}
		if err := hub.Register(midiin.NewService(*midiPortFlag, *channelFlag, resolve, logger)); err != nil {
			fail("register midi: %v", err)
		}
	}

	if err := hub.InitAll(nil); err != nil {
		fail("init: %v", err)
	}
	if err := hub.StartAll(); err != nil {
		hub.StopAll()
		fail("start: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		hub.StopAll()
		fail("terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		hub.StopAll()
		fail("terminal: %v", err)
	}

	// Restore the terminal before reporting a crash
	defer func() {
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "\n\x1b[31mAETHERIA CRASHED: %v\x1b[0m\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	u := newUI(screen, synth.Engine(), reg, logger, audio.NewRandom(cfg.Seed))
	u.patchName = synth.PatchName()
	u.savePath = *saveFlag
	run(u)

	screen.Fini()
	if err := hub.StopAll(); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	if *midiFlag {
		closeMIDI()
	}
	logger.Info("exit")
}

// configFromFlags layers explicitly set flags over the environment config
func configFromFlags() *audio.Config {
	cfg := audio.LoadConfig()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendFlag
		case "rate":
			cfg.SampleRate = max(8000, min(*rateFlag, 192000))
		case "volume":
			cfg.MasterVolume = max(0, min(float64(*volumeFlag)/100, 1))
		case "patch":
			cfg.PatchPath = *patchFlag
		case "seed":
			cfg.Seed = *seedFlag
		}
	})
	return cfg
}

func run(u *ui) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	u.draw()
	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !u.handleKey(ev, time.Now()) {
					u.releaseNotes(u.keys.releaseAll())
					return
				}
			case *tcell.EventResize:
				u.screen.Sync()
			}
		case now := <-ticker.C:
			u.tick(now)
			u.draw()
		}
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "aetheria: "+format+"\n", args...)
	os.Exit(1)
}
