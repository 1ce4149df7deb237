package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth/filter"
	"github.com/dudk/synth/waveform"
)

func impulse(t float64) float64 {
	if t == 0 {
		return 1
	}
	return 0
}

func TestFilters(t *testing.T) {
	tests := []struct {
		description string
		filter      *filter.Filter
		expected    map[int]float64
	}{
		{
			description: "feed-forward comb",
			filter:      filter.FeedForwardComb(0.3, 0.5),
			expected:    map[int]float64{0: 1, 3: 0.5, 6: 0, 9: 0},
		},
		{
			description: "feedback comb",
			filter:      filter.FeedbackComb(0.3, 0.5),
			expected:    map[int]float64{0: 1, 3: 0.5, 6: 0.25, 9: 0.125},
		},
		{
			description: "all-pass",
			filter:      filter.AllPass(0.3, 0.5),
			expected:    map[int]float64{0: -0.5, 3: 0.75, 6: 0.375, 9: 0.1875},
		},
	}
	for _, test := range tests {
		// two ticks sharing the boundary sample
		first := test.filter.Apply(waveform.Generate(0.5, 10, impulse))
		second := test.filter.Apply(waveform.Silence(0.5, 10).Shift(0.5))
		assert.Equal(t, first.Samples[first.Len()-1], second.Samples[0], test.description)

		result := first
		result.Append(second.Samples[1:]...)
		assert.Equal(t, 11, result.Len(), test.description)
		for i, v := range test.expected {
			assert.InDelta(t, v, result.Samples[i].Amplitude, 1e-9, "%s: sample %d", test.description, i)
		}
	}
}

func TestReset(t *testing.T) {
	f := filter.FeedbackComb(0.2, 0.9)
	f.Apply(waveform.Generate(0.5, 10, impulse))
	f.Reset()
	out := f.Apply(waveform.Silence(0.5, 10))
	assert.Equal(t, 0.0, out.MaxAmplitude())
	assert.Equal(t, 0.2, f.Delay())
}
