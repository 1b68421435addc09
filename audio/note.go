package audio

import (
	"math"
	"strconv"
)

// PitchClasses names the twelve semitones from C, sharps only
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

const (
	minOctave = 0
	maxOctave = 8
)

// NoteFrequencies maps note names like "C#4" to Hz for octaves 0-8
// A4 = 440Hz, equal temperament
var NoteFrequencies map[string]float64

func init() {
	NoteFrequencies = make(map[string]float64, len(PitchClasses)*(maxOctave-minOctave+1))
	for octave := minOctave; octave <= maxOctave; octave++ {
		for idx, pc := range PitchClasses {
			semis := 12*(octave-4) + (idx - 9)
			NoteFrequencies[pc+strconv.Itoa(octave)] = 440.0 * math.Pow(2, float64(semis)/12.0)
		}
	}
}

// NoteFreq returns the frequency for a note name, false if the name is unknown
func NoteFreq(name string) (float64, bool) {
	f, ok := NoteFrequencies[name]
	return f, ok
}

// NoteName converts a MIDI key number to a note name, false outside octaves 0-8
// MIDI 60 is C4
func NoteName(midi int) (string, bool) {
	octave := midi/12 - 1
	if midi < 0 || octave < minOctave || octave > maxOctave {
		return "", false
	}
	return PitchClasses[midi%12] + strconv.Itoa(octave), true
}

// Transpose shifts f by a pitch offset rounded to whole semitones
func Transpose(f, semitones float64) float64 {
	return f * math.Pow(2, math.Round(semitones)/12)
}
