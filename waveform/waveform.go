// Package waveform provides a time-domain representation of a signal as a
// time-ordered list of samples.
//
// Samples must be appended in non-decreasing time order. Every lookup relies
// on binary search and gives wrong results if the order is violated.
package waveform

import (
	"math"
	"sort"
)

// Interpolation defines how values between two samples are computed.
type Interpolation int

const (
	// Linear interpolation between two bracketing samples.
	Linear Interpolation = iota
	// Cubic is Catmull-Rom interpolation over four samples around the point.
	// It degrades to Linear at the edges of the waveform.
	Cubic
)

// Sample is an amplitude at a point of time.
type Sample struct {
	Time      float64
	Amplitude float64
}

// Waveform is a time-ordered list of samples.
type Waveform struct {
	Samples       []Sample
	Interpolation Interpolation
}

// Steps returns number of sample intervals needed to cover duration at rate.
// Any positive duration is covered by at least one interval.
func Steps(duration, rate float64) int {
	if duration <= 0 || rate <= 0 {
		return 0
	}
	n := int(math.Round(duration * rate))
	if n == 0 {
		n = 1
	}
	return n
}

// Generate samples fn on a uniform grid over [0, duration]. The last sample
// is placed exactly at duration.
func Generate(duration, rate float64, fn func(t float64) float64) Waveform {
	n := Steps(duration, rate)
	samples := make([]Sample, n+1)
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		samples[i] = Sample{Time: t, Amplitude: fn(t)}
	}
	samples[n] = Sample{Time: duration, Amplitude: fn(duration)}
	if n == 0 {
		samples[0].Time = 0
	}
	return Waveform{Samples: samples}
}

// Silence returns zero waveform over [0, duration].
func Silence(duration, rate float64) Waveform {
	return Generate(duration, rate, func(float64) float64 { return 0 })
}

// Append adds samples to the end of waveform.
func (w *Waveform) Append(samples ...Sample) {
	w.Samples = append(w.Samples, samples...)
}

// Len returns number of samples.
func (w Waveform) Len() int {
	return len(w.Samples)
}

// Start returns time of the first sample.
func (w Waveform) Start() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	return w.Samples[0].Time
}

// End returns time of the last sample.
func (w Waveform) End() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	return w.Samples[len(w.Samples)-1].Time
}

// Timespan returns time between first and last samples.
func (w Waveform) Timespan() float64 {
	return w.End() - w.Start()
}

// MinAmplitude returns the lowest amplitude.
func (w Waveform) MinAmplitude() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	min := w.Samples[0].Amplitude
	for _, s := range w.Samples[1:] {
		if s.Amplitude < min {
			min = s.Amplitude
		}
	}
	return min
}

// MaxAmplitude returns the highest amplitude.
func (w Waveform) MaxAmplitude() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	max := w.Samples[0].Amplitude
	for _, s := range w.Samples[1:] {
		if s.Amplitude > max {
			max = s.Amplitude
		}
	}
	return max
}

// Volume returns mean absolute amplitude of the peaks, where a peak is a
// sample at which the slope changes sign. Waveforms without peaks fall back
// to mean absolute amplitude of all samples.
func (w Waveform) Volume() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var (
		sum   float64
		peaks int
	)
	for i := 1; i < len(w.Samples)-1; i++ {
		before := w.Samples[i].Amplitude - w.Samples[i-1].Amplitude
		after := w.Samples[i+1].Amplitude - w.Samples[i].Amplitude
		if (before > 0 && after < 0) || (before < 0 && after > 0) {
			sum += math.Abs(w.Samples[i].Amplitude)
			peaks++
		}
	}
	if peaks > 0 {
		return sum / float64(peaks)
	}
	for _, s := range w.Samples {
		sum += math.Abs(s.Amplitude)
	}
	return sum / float64(len(w.Samples))
}

// AverageRate returns average number of samples per second.
func (w Waveform) AverageRate() float64 {
	span := w.Timespan()
	if len(w.Samples) < 2 || span <= 0 {
		return 0
	}
	return float64(len(w.Samples)-1) / span
}

// EvaluateAt returns interpolated amplitude at time t. If t is outside of
// samples range, silence and false are returned.
func (w Waveform) EvaluateAt(t float64) (float64, bool) {
	n := len(w.Samples)
	if n == 0 || t < w.Samples[0].Time || t > w.Samples[n-1].Time {
		return 0, false
	}
	i := sort.Search(n, func(i int) bool { return w.Samples[i].Time >= t })
	if w.Samples[i].Time == t || i == 0 {
		return w.Samples[i].Amplitude, true
	}
	left, right := w.Samples[i-1], w.Samples[i]
	span := right.Time - left.Time
	if span <= 0 {
		return right.Amplitude, true
	}
	x := (t - left.Time) / span
	if w.Interpolation == Cubic {
		y0 := left.Amplitude
		if i > 1 {
			y0 = w.Samples[i-2].Amplitude
		}
		y3 := right.Amplitude
		if i+1 < n {
			y3 = w.Samples[i+1].Amplitude
		}
		return cubic(y0, left.Amplitude, right.Amplitude, y3, x), true
	}
	return left.Amplitude + (right.Amplitude-left.Amplitude)*x, true
}

// cubic is Catmull-Rom spline between y1 and y2 at fractional position x.
func cubic(y0, y1, y2, y3, x float64) float64 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	return a0*x*x*x + a1*x*x + a2*x + y1
}

// SumTogether resamples and mixes waveforms in one pass. Result spans the
// union of all inputs and uses the highest average rate among them. Inputs
// contribute silence outside of their own range.
func SumTogether(waves ...Waveform) Waveform {
	var (
		start, end, rate float64
		found            bool
		interpolation    Interpolation
	)
	for _, w := range waves {
		if w.Len() == 0 {
			continue
		}
		if !found {
			start, end = w.Start(), w.End()
			interpolation = w.Interpolation
			found = true
		}
		start = math.Min(start, w.Start())
		end = math.Max(end, w.End())
		rate = math.Max(rate, w.AverageRate())
	}
	if !found {
		return Waveform{}
	}
	sum := func(t float64) float64 {
		var v float64
		for _, w := range waves {
			a, _ := w.EvaluateAt(t)
			v += a
		}
		return v
	}
	span := end - start
	if span <= 0 {
		return Waveform{
			Samples:       []Sample{{Time: start, Amplitude: sum(start)}},
			Interpolation: interpolation,
		}
	}
	if rate <= 0 {
		rate = 1 / span
	}
	n := int(math.Ceil(span*rate - 1e-9))
	result := Waveform{
		Samples:       make([]Sample, 0, n+1),
		Interpolation: interpolation,
	}
	for i := 0; i < n; i++ {
		t := start + float64(i)/rate
		result.Samples = append(result.Samples, Sample{Time: t, Amplitude: sum(t)})
	}
	result.Samples = append(result.Samples, Sample{Time: end, Amplitude: sum(end)})
	return result
}

// Scale multiplies every amplitude by the value returned by fn for the sample time.
func (w Waveform) Scale(fn func(t float64) float64) Waveform {
	result := Waveform{
		Samples:       make([]Sample, len(w.Samples)),
		Interpolation: w.Interpolation,
	}
	for i, s := range w.Samples {
		result.Samples[i] = Sample{Time: s.Time, Amplitude: s.Amplitude * fn(s.Time)}
	}
	return result
}

// Remap linearly maps sample times from [Start, End] onto [start, end].
func (w Waveform) Remap(start, end float64) Waveform {
	result := Waveform{
		Samples:       make([]Sample, len(w.Samples)),
		Interpolation: w.Interpolation,
	}
	span := w.Timespan()
	for i, s := range w.Samples {
		t := start
		if span > 0 {
			t = start + (s.Time-w.Start())/span*(end-start)
		}
		result.Samples[i] = Sample{Time: t, Amplitude: s.Amplitude}
	}
	if n := len(result.Samples); n > 1 {
		// exact bounds regardless of rounding
		result.Samples[n-1].Time = end
	}
	return result
}

// Shift moves every sample by dt seconds.
func (w Waveform) Shift(dt float64) Waveform {
	result := Waveform{
		Samples:       make([]Sample, len(w.Samples)),
		Interpolation: w.Interpolation,
	}
	for i, s := range w.Samples {
		result.Samples[i] = Sample{Time: s.Time + dt, Amplitude: s.Amplitude}
	}
	return result
}

// TrimBefore removes samples with time before t. Remaining samples are
// copied into a new slice, so the memory of removed ones can be released.
func (w *Waveform) TrimBefore(t float64) {
	i := sort.Search(len(w.Samples), func(i int) bool { return w.Samples[i].Time >= t })
	w.Samples = append([]Sample(nil), w.Samples[i:]...)
}

// TrimAfter removes samples with time after t.
func (w *Waveform) TrimAfter(t float64) {
	i := sort.Search(len(w.Samples), func(i int) bool { return w.Samples[i].Time > t })
	w.Samples = append([]Sample(nil), w.Samples[:i]...)
}

// QuickTrimBefore removes samples with time before t without copying. The
// waveform keeps sharing its backing array.
func (w *Waveform) QuickTrimBefore(t float64) {
	i := sort.Search(len(w.Samples), func(i int) bool { return w.Samples[i].Time >= t })
	w.Samples = w.Samples[i:]
}

// QuickTrimAfter removes samples with time after t without copying.
func (w *Waveform) QuickTrimAfter(t float64) {
	i := sort.Search(len(w.Samples), func(i int) bool { return w.Samples[i].Time > t })
	w.Samples = w.Samples[:i]
}

// PadWithSilence appends zero samples at rate until the timespan reaches
// target. If anything was appended, the last sample is moved so the span is
// exactly target.
func (w *Waveform) PadWithSilence(target, rate float64) {
	if len(w.Samples) == 0 {
		w.Samples = append(w.Samples, Sample{})
	}
	if w.Timespan() >= target {
		return
	}
	if rate <= 0 {
		w.Samples = append(w.Samples, Sample{Time: w.Start() + target})
		return
	}
	step := 1 / rate
	for w.Timespan() < target {
		w.Samples = append(w.Samples, Sample{Time: w.End() + step})
	}
	w.Samples[len(w.Samples)-1].Time = w.Start() + target
}
