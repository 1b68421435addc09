package main

import (
	"slices"
	"time"
)

// Terminals report key presses only, a note is held while auto-repeat keeps arriving
const (
	// holdInitial covers the delay before the first auto-repeat
	holdInitial = 600 * time.Millisecond
	// holdRepeat covers the gap between repeats
	holdRepeat = 150 * time.Millisecond
)

// noteKeys maps two piano rows onto the computer keyboard
// Lower row z..m spans C3-E4, upper row q..] spans C4-G5
var noteKeys = map[rune]string{
	'z': "C3", 's': "C#3", 'x': "D3", 'd': "D#3", 'c': "E3", 'v': "F3",
	'g': "F#3", 'b': "G3", 'h': "G#3", 'n': "A3", 'j': "A#3", 'm': "B3",
	',': "C4", 'l': "C#4", '.': "D4", ';': "D#4", '/': "E4",

	'q': "C4", '2': "C#4", 'w': "D4", '3': "D#4", 'e': "E4", 'r': "F4",
	'5': "F#4", 't': "G4", '6': "G#4", 'y': "A4", '7': "A#4", 'u': "B4",
	'i': "C5", '9': "C#5", 'o': "D5", '0': "D#5", 'p': "E5", '[': "F5",
	'=': "F#5", ']': "G5",
}

type heldNote struct {
	deadline time.Time
	repeated bool
}

// keyboard tracks which notes are held from key press timing alone
type keyboard struct {
	held    map[string]*heldNote
	sustain bool
}

func newKeyboard() *keyboard {
	return &keyboard{held: make(map[string]*heldNote)}
}

// press handles a key event, attack is true when the note was not already held
func (k *keyboard) press(r rune, now time.Time) (note string, attack bool, ok bool) {
	note, ok = noteKeys[r]
	if !ok {
		return "", false, false
	}
	if h, exists := k.held[note]; exists {
		h.repeated = true
		h.deadline = now.Add(holdRepeat)
		return note, false, true
	}
	k.held[note] = &heldNote{deadline: now.Add(holdInitial)}
	return note, true, true
}

// expire returns notes whose hold deadline passed, sorted for stable release order
// Sustained notes never expire
func (k *keyboard) expire(now time.Time) []string {
	if k.sustain {
		return nil
	}
	var out []string
	for note, h := range k.held {
		if now.After(h.deadline) {
			out = append(out, note)
			delete(k.held, note)
		}
	}
	slices.Sort(out)
	return out
}

// toggleSustain flips sustain, turning it off releases everything held
func (k *keyboard) toggleSustain() []string {
	k.sustain = !k.sustain
	if k.sustain {
		return nil
	}
	return k.releaseAll()
}

// releaseAll drops every held note
func (k *keyboard) releaseAll() []string {
	out := make([]string, 0, len(k.held))
	for note := range k.held {
		out = append(out, note)
	}
	clear(k.held)
	slices.Sort(out)
	return out
}

// isHeld reports whether note is currently held
func (k *keyboard) isHeld(note string) bool {
	_, ok := k.held[note]
	return ok
}
