package waveform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth/waveform"
)

func TestStream(t *testing.T) {
	s := waveform.NewStream(3, 1)
	_, ok := s.EvaluateAt(0)
	assert.False(t, ok)

	for i := 0; i <= 20; i++ {
		v := float64(i) / 2
		s.AppendSample(waveform.Sample{Time: v, Amplitude: v})
	}
	assert.Equal(t, 3, s.Segments())
	assert.Equal(t, 7.0, s.Start())
	assert.Equal(t, 10.0, s.End())
	assert.Equal(t, 7, s.Len())

	tests := []struct {
		at       float64
		expected float64
		ok       bool
	}{
		{at: 6.9},
		{at: 10.1},
		{at: 7, expected: 7, ok: true},
		{at: 8, expected: 8, ok: true},
		{at: 8.25, expected: 8.25, ok: true},
		{at: 10, expected: 10, ok: true},
	}
	for _, test := range tests {
		v, ok := s.EvaluateAt(test.at)
		assert.Equal(t, test.ok, ok, "at %v", test.at)
		assert.InDelta(t, test.expected, v, 1e-9, "at %v", test.at)
	}

	w := s.Window(7.5, 9)
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, 7.5, w.Start())
	assert.Equal(t, 9.0, w.End())
}

func TestStreamAppendWaveform(t *testing.T) {
	s := waveform.NewStream(4, 0.5)
	s.Append(waveform.Generate(1, 10, func(t float64) float64 { return 1 }))
	s.Append(waveform.Generate(1, 10, func(t float64) float64 { return 2 }).Shift(1))
	// shared sample at 1.0 is kept once
	assert.Equal(t, 21, s.Len())
	v, ok := s.EvaluateAt(1.5)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
}
