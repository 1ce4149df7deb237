// Package test contains helper functions which generate audio for tests of
// synth packages.
package test

import (
	"math"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/signal"
)

// Floats returns n copies of v.
func Floats(v float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Constant returns clip with frames of v in every channel.
func Constant(format signal.Format, v float64, frames int) clip.AudioData {
	floats := make(signal.Float64, format.Channels)
	for c := range floats {
		floats[c] = Floats(v, frames)
	}
	return clip.AudioData{Format: format, Data: format.Interleave(floats)}
}

// Sine returns clip with seconds of sine wave in every channel.
func Sine(format signal.Format, frequency, amplitude, seconds float64) clip.AudioData {
	frames := int(seconds * float64(format.FrameRate))
	floats := make(signal.Float64, format.Channels)
	for c := range floats {
		floats[c] = make([]float64, frames)
		for i := range floats[c] {
			floats[c][i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(format.FrameRate))
		}
	}
	return clip.AudioData{Format: format, Data: format.Interleave(floats)}
}
