package waveform_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth/waveform"
)

func ramp() waveform.Waveform {
	return waveform.Waveform{
		Samples: []waveform.Sample{
			{Time: 0, Amplitude: 0},
			{Time: 1, Amplitude: 1},
			{Time: 2, Amplitude: 0},
			{Time: 3, Amplitude: -1},
			{Time: 4, Amplitude: 0},
		},
	}
}

func TestQueries(t *testing.T) {
	w := ramp()
	assert.Equal(t, 0.0, w.Start())
	assert.Equal(t, 4.0, w.End())
	assert.Equal(t, 4.0, w.Timespan())
	assert.Equal(t, -1.0, w.MinAmplitude())
	assert.Equal(t, 1.0, w.MaxAmplitude())
	assert.Equal(t, 1.0, w.AverageRate())
	assert.Equal(t, 1.0, w.Volume())

	var empty waveform.Waveform
	assert.Equal(t, 0.0, empty.Volume())
	assert.Equal(t, 0.0, empty.AverageRate())
}

func TestEvaluateAt(t *testing.T) {
	tests := []struct {
		interpolation waveform.Interpolation
		at            float64
		expected      float64
		ok            bool
	}{
		{at: -0.1},
		{at: 4.1},
		{at: 0, expected: 0, ok: true},
		{at: 0.5, expected: 0.5, ok: true},
		{at: 2.5, expected: -0.5, ok: true},
		{at: 4, expected: 0, ok: true},
		{interpolation: waveform.Cubic, at: 1, expected: 1, ok: true},
		{interpolation: waveform.Cubic, at: 1.5, expected: 0.625, ok: true},
		{interpolation: waveform.Cubic, at: 4.5},
	}
	for _, test := range tests {
		w := ramp()
		w.Interpolation = test.interpolation
		v, ok := w.EvaluateAt(test.at)
		assert.Equal(t, test.ok, ok, "at %v", test.at)
		assert.InDelta(t, test.expected, v, 1e-9, "at %v", test.at)
	}
}

func TestLinearBounds(t *testing.T) {
	w := waveform.Generate(1, 50, func(t float64) float64 { return math.Sin(2 * math.Pi * 3 * t) })
	for i := 0; i+1 < w.Len(); i++ {
		left, right := w.Samples[i], w.Samples[i+1]
		mid := (left.Time + right.Time) / 2
		v, ok := w.EvaluateAt(mid)
		assert.True(t, ok)
		assert.True(t, v >= math.Min(left.Amplitude, right.Amplitude)-1e-12)
		assert.True(t, v <= math.Max(left.Amplitude, right.Amplitude)+1e-12)
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		duration float64
		rate     float64
		samples  int
	}{
		{duration: 1, rate: 10, samples: 11},
		{duration: 0.01, rate: 10, samples: 2},
		{duration: 0, rate: 10, samples: 1},
	}
	for _, test := range tests {
		w := waveform.Silence(test.duration, test.rate)
		assert.Equal(t, test.samples, w.Len())
		assert.Equal(t, 0.0, w.Start())
		assert.Equal(t, test.duration, w.End())
		for i := 1; i < w.Len(); i++ {
			assert.True(t, w.Samples[i-1].Time < w.Samples[i].Time)
		}
	}
}

func TestSumTogether(t *testing.T) {
	a := waveform.Generate(1, 4, func(float64) float64 { return 0.25 })
	b := waveform.Generate(0.5, 8, func(float64) float64 { return 0.5 }).Shift(1)

	sum := waveform.SumTogether(a, b)
	assert.Equal(t, 0.0, sum.Start())
	assert.Equal(t, 1.5, sum.End())
	assert.InDelta(t, 8, sum.AverageRate(), 1e-9)
	v, _ := sum.EvaluateAt(0.5)
	assert.InDelta(t, 0.25, v, 1e-9)
	// both waveforms cover the seam
	v, _ = sum.EvaluateAt(1)
	assert.InDelta(t, 0.75, v, 1e-9)
	v, _ = sum.EvaluateAt(1.25)
	assert.InDelta(t, 0.5, v, 1e-9)

	assert.Equal(t, 0, waveform.SumTogether().Len())
	assert.Equal(t, 0, waveform.SumTogether(waveform.Waveform{}).Len())
}

func TestTrim(t *testing.T) {
	tests := []struct {
		description string
		trim        func(*waveform.Waveform)
		start       float64
		end         float64
		samples     int
	}{
		{
			description: "trim before",
			trim:        func(w *waveform.Waveform) { w.TrimBefore(1.5) },
			start:       2,
			end:         4,
			samples:     3,
		},
		{
			description: "trim after",
			trim:        func(w *waveform.Waveform) { w.TrimAfter(2) },
			start:       0,
			end:         2,
			samples:     3,
		},
		{
			description: "quick trim before",
			trim:        func(w *waveform.Waveform) { w.QuickTrimBefore(1) },
			start:       1,
			end:         4,
			samples:     4,
		},
		{
			description: "quick trim after",
			trim:        func(w *waveform.Waveform) { w.QuickTrimAfter(0.5) },
			start:       0,
			end:         0,
			samples:     1,
		},
	}
	for _, test := range tests {
		w := ramp()
		test.trim(&w)
		assert.Equal(t, test.samples, w.Len(), test.description)
		assert.Equal(t, test.start, w.Start(), test.description)
		assert.Equal(t, test.end, w.End(), test.description)
	}
}

func TestPadWithSilence(t *testing.T) {
	w := waveform.Generate(0.5, 10, func(float64) float64 { return 1 })
	w.PadWithSilence(1.03, 10)
	assert.InDelta(t, 1.03, w.Timespan(), 1e-12)
	assert.Equal(t, 0.0, w.Samples[w.Len()-1].Amplitude)

	// already long enough
	n := w.Len()
	w.PadWithSilence(0.2, 10)
	assert.Equal(t, n, w.Len())

	var empty waveform.Waveform
	empty.PadWithSilence(0.3, 10)
	assert.InDelta(t, 0.3, empty.Timespan(), 1e-12)
}

func TestRemap(t *testing.T) {
	w := waveform.Generate(2, 2, func(t float64) float64 { return t })
	r := w.Remap(0, 1)
	assert.Equal(t, w.Len(), r.Len())
	assert.Equal(t, 1.0, r.End())
	v, _ := r.EvaluateAt(0.5)
	assert.InDelta(t, 1, v, 1e-9)
}
