package audio

import (
	"math"

	"github.com/lixenwraith/aetheria/constant"
	"github.com/lixenwraith/aetheria/graph"
)

// ImpulseLength returns the reverb impulse frame count for a decay amount in [0,1]
func ImpulseLength(decay float64, sampleRate int) int {
	seconds := decay*constant.ReverbDecayScale + constant.ReverbDecayOffset
	return int(math.Round(float64(sampleRate) * seconds))
}

// ImpulseEnvelope is the decay shape at frame i of length, 1 at the head falling to 0
func ImpulseEnvelope(i, length int) float64 {
	if length <= 0 {
		return 0
	}
	return math.Pow(1-float64(i)/float64(length), constant.ReverbDecayExponent)
}

// ImpulseResponse generates decaying stereo noise with independent channels
func ImpulseResponse(decay float64, sampleRate int, r Random) *graph.Buffer {
	length := ImpulseLength(decay, sampleRate)
	buf := graph.NewBuffer(2, length, sampleRate)
	left, right := buf.Channels[0], buf.Channels[1]
	for i := range length {
		env := ImpulseEnvelope(i, length)
		left[i] = bipolar(r, 1) * env
		right[i] = bipolar(r, 1) * env
	}
	return buf
}
