// Package filter implements recursive filters over waveform histories.
//
// Every filter computes
//
//	y(t) = a*x(t) + b*x(t-d) + c*y(t-d)
//
// where x is the input, y is the output and d is the delay. Comb and
// all-pass filters only differ in the coefficients.
package filter

import (
	"github.com/dudk/synth/waveform"
)

// historySegments is the number of delay-long segments kept in history.
const historySegments = 3

// Filter is a recursive filter with its own input and output history.
// Waveforms passed to Apply must be in absolute time and follow each other.
type Filter struct {
	delay   float64
	a, b, c float64
	input   *waveform.Stream
	output  *waveform.Stream
}

// New returns filter with custom coefficients.
func New(delay, a, b, c float64) *Filter {
	return &Filter{
		delay:  delay,
		a:      a,
		b:      b,
		c:      c,
		input:  waveform.NewStream(historySegments, delay),
		output: waveform.NewStream(historySegments, delay),
	}
}

// FeedForwardComb adds delayed input scaled by gain.
func FeedForwardComb(delay, gain float64) *Filter {
	return New(delay, 1, gain, 0)
}

// FeedbackComb adds delayed output scaled by gain.
func FeedbackComb(delay, gain float64) *Filter {
	return New(delay, 1, 0, gain)
}

// AllPass diffuses the signal without changing its magnitude response.
func AllPass(delay, gain float64) *Filter {
	return New(delay, -gain, 1, gain)
}

// Delay returns filter delay in seconds.
func (f *Filter) Delay() float64 {
	return f.delay
}

// Apply filters the waveform. A sample which repeats the last processed
// time is not processed again, its previous output is reused.
func (f *Filter) Apply(w waveform.Waveform) waveform.Waveform {
	result := waveform.Waveform{
		Samples:       make([]waveform.Sample, 0, w.Len()),
		Interpolation: w.Interpolation,
	}
	for _, s := range w.Samples {
		if f.output.Len() > 0 && s.Time <= f.output.End() {
			y, _ := f.output.EvaluateAt(s.Time)
			result.Append(waveform.Sample{Time: s.Time, Amplitude: y})
			continue
		}
		f.input.AppendSample(s)
		// missing history is silence
		xd, _ := f.input.EvaluateAt(s.Time - f.delay)
		yd, _ := f.output.EvaluateAt(s.Time - f.delay)
		y := waveform.Sample{
			Time:      s.Time,
			Amplitude: f.a*s.Amplitude + f.b*xd + f.c*yd,
		}
		f.output.AppendSample(y)
		result.Append(y)
	}
	return result
}

// Reset drops filter history.
func (f *Filter) Reset() {
	f.input = waveform.NewStream(historySegments, f.delay)
	f.output = waveform.NewStream(historySegments, f.delay)
}
