package main

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/lixenwraith/aetheria/midiin"
)

// listMIDIPorts prints the available input ports to stdout
func listMIDIPorts() {
	ports := midiin.Ports()
	if len(ports) == 0 {
		fmt.Println("no MIDI input ports")
		return
	}
	for i, name := range ports {
		fmt.Printf("%d: %s\n", i, name)
	}
}

// closeMIDI releases the registered driver
func closeMIDI() {
	midi.CloseDriver()
}
