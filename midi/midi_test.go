package midi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth/midi"
)

func TestChannelEventBytes(t *testing.T) {
	tests := []struct {
		event    midi.ChannelEvent
		expected []byte
	}{
		{
			event:    midi.ChannelEvent{Channel: 1, Type: midi.NoteOn, Param1: 60, Param2: 100},
			expected: []byte{0x91, 60, 100},
		},
		{
			event:    midi.ChannelEvent{Channel: 0, Type: midi.NoteOff, Param1: 60, Param2: 0},
			expected: []byte{0x80, 60, 0},
		},
		{
			event:    midi.ChannelEvent{Channel: 2, Type: midi.NoteOff, Param1: 61, Param2: 30},
			expected: []byte{0x82, 61, 30},
		},
		{
			event:    midi.ChannelEvent{Channel: 9, Type: midi.ProgramChange, Param1: 5},
			expected: []byte{0xC9, 5},
		},
		{
			event:    midi.ChannelEvent{Channel: 0, Type: midi.ControlChange, Param1: 7, Param2: 127},
			expected: []byte{0xB0, 7, 127},
		},
		{
			event:    midi.ChannelEvent{Channel: 0, Type: midi.PitchBend, Param1: 0, Param2: 0x40},
			expected: []byte{0xE0, 0, 0x40},
		},
	}
	for _, test := range tests {
		b := test.event.Bytes()
		assert.Equal(t, test.expected, b)

		p, err := midi.Parse(b)
		assert.Nil(t, err)
		assert.Equal(t, test.event, p)
	}
}

func TestMeta(t *testing.T) {
	e := midi.TempoEvent(500000)
	tempo, ok := e.Tempo()
	assert.True(t, ok)
	assert.Equal(t, uint32(500000), tempo)
	assert.Equal(t, []byte{0xFF, 0x51, 3, 0x07, 0xA1, 0x20}, e.Bytes())

	p, err := midi.Parse(e.Bytes())
	assert.Nil(t, err)
	assert.Equal(t, e, p)

	name := midi.MetaEvent{Type: midi.TrackName, Data: make([]byte, 200)}
	b := name.Bytes()
	// length takes two bytes
	assert.Equal(t, []byte{0x81, 0x48}, b[2:4])
	p, err = midi.Parse(b)
	assert.Nil(t, err)
	assert.Equal(t, name, p)
	_, ok = p.(midi.MetaEvent).Tempo()
	assert.False(t, ok)
}

func TestSysEx(t *testing.T) {
	s := midi.SysEx{0x7E, 0x7F, 0x09, 0x01}
	b := s.Bytes()
	assert.Equal(t, byte(0xF0), b[0])
	assert.Equal(t, byte(0xF7), b[len(b)-1])
	p, err := midi.Parse(b)
	assert.Nil(t, err)
	assert.Equal(t, s, p)
}

func TestParseMalformed(t *testing.T) {
	tests := [][]byte{
		nil,
		{0x90, 60},
		{0xFF, 0x51},
		{0xFF, 0x51, 3, 1},
		{0xF8},
		{0xFF, 0x01, 0x80, 0x80, 0x80, 0x80},
	}
	for _, raw := range tests {
		_, err := midi.Parse(raw)
		assert.ErrorIs(t, err, midi.ErrMalformed, "% X", raw)
	}
}

func TestNoteToFrequency(t *testing.T) {
	assert.Equal(t, 440.0, midi.NoteToFrequency(69))
	assert.InDelta(t, 261.6256, midi.NoteToFrequency(60), 1e-4)
	assert.InDelta(t, 880, midi.NoteToFrequency(81), 1e-9)
}
