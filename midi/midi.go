// Package midi describes MIDI data in memory and converts its events to raw
// messages.
package midi

import (
	"errors"
	"fmt"
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// DefaultTempo is the tempo assumed until the first tempo event, in
// microseconds per quarter note.
const DefaultTempo = 500000

// ErrMalformed is returned when raw bytes do not form a message.
var ErrMalformed = errors.New("malformed midi message")

// Format is the organisation of tracks.
type Format int

const (
	// SingleTrack data has exactly one track.
	SingleTrack Format = iota
	// MultiTrack data has simultaneous tracks, the first one holds tempo map.
	MultiTrack
	// MultiSong data has independent sequential tracks.
	MultiSong
)

// TimingMode is the meaning of delta ticks.
type TimingMode int

const (
	// Metrical timing counts ticks per quarter note.
	Metrical TimingMode = iota
	// SMPTE timing counts ticks per frame.
	SMPTE
)

// Timing defines how ticks are converted into time.
type Timing struct {
	Mode                TimingMode
	TicksPerQuarterNote int
	FramesPerSecond     int
	TicksPerFrame       int
}

// Data is a decoded MIDI sequence.
type Data struct {
	Format Format
	Timing Timing
	Tracks []Track
}

// Track is an ordered list of events.
type Track []Event

// Event is a payload placed DeltaTicks after the previous event of the
// track.
type Event struct {
	DeltaTicks uint32
	Payload    Payload
}

// Payload is one of ChannelEvent, MetaEvent or SysEx.
type Payload interface {
	Bytes() []byte
}

// EventType is the high nibble of channel message status.
type EventType uint8

// Channel event types.
const (
	NoteOff           EventType = 0x8
	NoteOn            EventType = 0x9
	PolyAftertouch    EventType = 0xA
	ControlChange     EventType = 0xB
	ProgramChange     EventType = 0xC
	ChannelAftertouch EventType = 0xD
	PitchBend         EventType = 0xE
)

// ChannelEvent is a channel voice message.
type ChannelEvent struct {
	Channel uint8
	Type    EventType
	Param1  uint8
	Param2  uint8
}

// Message returns event as gomidi message.
func (e ChannelEvent) Message() gomidi.Message {
	switch e.Type {
	case NoteOff:
		if e.Param2 == 0 {
			return gomidi.NoteOff(e.Channel, e.Param1)
		}
		return gomidi.Message{0x80 | e.Channel&0x0F, e.Param1 & 0x7F, e.Param2 & 0x7F}
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Param1, e.Param2)
	case PolyAftertouch:
		return gomidi.PolyAfterTouch(e.Channel, e.Param1, e.Param2)
	case ControlChange:
		return gomidi.ControlChange(e.Channel, e.Param1, e.Param2)
	case ProgramChange:
		return gomidi.ProgramChange(e.Channel, e.Param1)
	case ChannelAftertouch:
		return gomidi.AfterTouch(e.Channel, e.Param1)
	case PitchBend:
		return gomidi.Pitchbend(e.Channel, int16(int(e.Param2&0x7F)<<7|int(e.Param1&0x7F))-8192)
	}
	return nil
}

// Bytes returns raw message.
func (e ChannelEvent) Bytes() []byte {
	return []byte(e.Message())
}

func (e ChannelEvent) String() string {
	return e.Message().String()
}

// MetaType is the type of meta event.
type MetaType uint8

// Meta event types.
const (
	Text          MetaType = 0x01
	TrackName     MetaType = 0x03
	EndOfTrack    MetaType = 0x2F
	Tempo         MetaType = 0x51
	TimeSignature MetaType = 0x58
	KeySignature  MetaType = 0x59
)

// MetaEvent is non-sound information about the track.
type MetaEvent struct {
	Type MetaType
	Data []byte
}

// TempoEvent returns meta event which sets tempo in microseconds per
// quarter note.
func TempoEvent(microseconds uint32) MetaEvent {
	return MetaEvent{
		Type: Tempo,
		Data: []byte{byte(microseconds >> 16), byte(microseconds >> 8), byte(microseconds)},
	}
}

// Tempo returns tempo value if event is a valid tempo event.
func (m MetaEvent) Tempo() (uint32, bool) {
	if m.Type != Tempo || len(m.Data) != 3 {
		return 0, false
	}
	return uint32(m.Data[0])<<16 | uint32(m.Data[1])<<8 | uint32(m.Data[2]), true
}

// Bytes returns raw meta event: 0xFF, type, variable length and data.
func (m MetaEvent) Bytes() []byte {
	b := []byte{0xFF, byte(m.Type)}
	b = appendVarLen(b, uint32(len(m.Data)))
	return append(b, m.Data...)
}

// SysEx is system exclusive data without framing bytes.
type SysEx []byte

// Bytes returns data framed with 0xF0 and 0xF7.
func (s SysEx) Bytes() []byte {
	b := make([]byte, 0, len(s)+2)
	b = append(b, 0xF0)
	b = append(b, s...)
	return append(b, 0xF7)
}

// Parse decodes raw message into payload.
func Parse(raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return nil, ErrMalformed
	}
	status := raw[0]
	switch {
	case status == 0xFF:
		if len(raw) < 3 {
			return nil, fmt.Errorf("%w: short meta event", ErrMalformed)
		}
		length, n, err := readVarLen(raw[2:])
		if err != nil {
			return nil, err
		}
		data := raw[2+n:]
		if uint32(len(data)) != length {
			return nil, fmt.Errorf("%w: meta length %d, got %d", ErrMalformed, length, len(data))
		}
		return MetaEvent{Type: MetaType(raw[1]), Data: append([]byte(nil), data...)}, nil
	case status == 0xF0:
		end := len(raw)
		if raw[end-1] == 0xF7 {
			end--
		}
		return SysEx(append([]byte(nil), raw[1:end]...)), nil
	case status >= 0x80 && status < 0xF0:
		e := ChannelEvent{Channel: status & 0x0F, Type: EventType(status >> 4)}
		size := 3
		if e.Type == ProgramChange || e.Type == ChannelAftertouch {
			size = 2
		}
		if len(raw) < size {
			return nil, fmt.Errorf("%w: % X", ErrMalformed, raw)
		}
		e.Param1 = raw[1]
		if size == 3 {
			e.Param2 = raw[2]
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: status %X", ErrMalformed, status)
}

// NoteToFrequency converts MIDI key into frequency in Hz.
func NoteToFrequency(key float64) float64 {
	return 440 * math.Pow(2, (key-69)/12)
}

func appendVarLen(b []byte, v uint32) []byte {
	var buf [5]byte
	i := len(buf) - 1
	buf[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		buf[i] = byte(v&0x7F) | 0x80
	}
	return append(b, buf[i:]...)
}

func readVarLen(b []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < len(b) && i < 4; i++ {
		v = v<<7 | uint32(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: variable length", ErrMalformed)
}
