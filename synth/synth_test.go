package synth_test

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synth/bank"
	"github.com/dudk/synth/graph"
	"github.com/dudk/synth/midi"
	"github.com/dudk/synth/player"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/stream"
	"github.com/dudk/synth/synth"
	"github.com/dudk/synth/test"
)

var (
	stereo = signal.Format{Kind: signal.Float, BitsPerSample: 32, Channels: 2, FrameRate: 1000}
	mono8  = signal.Format{Kind: signal.SignedInt, BitsPerSample: 8, Channels: 1, FrameRate: 1000}
)

func testBank() *bank.Bank {
	return bank.New(
		bank.Sample{
			Name: "half", Keys: bank.Full, Velocities: bank.Full, Key: 69,
			LoopStart: 0.1, LoopEnd: 0.9, Looped: true,
			Audio: test.Constant(mono8, 0.5, mono8.FrameRate),
		},
		bank.Sample{
			Name: "quarter", Instrument: 5, Keys: bank.Full, Velocities: bank.Full, Key: 69,
			LoopStart: 0.1, LoopEnd: 0.9, Looped: true,
			Audio: test.Constant(mono8, 0.25, mono8.FrameRate),
		},
	)
}

func dry() synth.Options {
	return synth.Options{Release: 0.1}
}

func newSynth(t *testing.T, options synth.Options) (*synth.Synthesizer, *stream.Audio) {
	t.Helper()
	s, err := synth.New(testBank(), options)
	require.Nil(t, err)
	out := stream.NewAudio(stereo, stream.NewQueue(1024))
	s.SetAudioOutput(out)
	return s, out
}

// drain reads everything buffered in out.
func drain(t *testing.T, out *stream.Audio) signal.Float64 {
	t.Helper()
	data, err := io.ReadAll(out)
	require.Nil(t, err)
	return out.Format().AsFloat64(data)
}

func message(e midi.ChannelEvent) []byte {
	return e.Bytes()
}

func on(ch, key, vel uint8) []byte {
	return message(midi.ChannelEvent{Channel: ch, Type: midi.NoteOn, Param1: key, Param2: vel})
}

func off(ch, key uint8) []byte {
	return message(midi.ChannelEvent{Channel: ch, Type: midi.NoteOff, Param1: key})
}

func TestNoOutput(t *testing.T) {
	s, err := synth.New(testBank(), dry())
	require.Nil(t, err)
	assert.ErrorIs(t, s.GenerateAudio(0.1, 0.1), synth.ErrNoOutput)
}

func TestSilence(t *testing.T) {
	s, out := newSynth(t, dry())
	require.Nil(t, s.GenerateAudio(0.05, 0.1))
	assert.Equal(t, 100*stereo.BytesPerFrame(), out.Len())
	// buffered enough
	require.Nil(t, s.GenerateAudio(0.05, 0.1))
	assert.Equal(t, 100*stereo.BytesPerFrame(), out.Len())

	for _, channel := range drain(t, out) {
		for _, v := range channel {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestNoteLifecycle(t *testing.T) {
	s, out := newSynth(t, dry())
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 127)))
	assert.Equal(t, 1, s.Notes())
	assert.Equal(t, 6, s.Nodes())

	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	floats := drain(t, out)
	require.Equal(t, 100, len(floats[0]))
	for c := range floats {
		assert.InDelta(t, 0.5, floats[c][0], 1e-6)
		assert.InDelta(t, 0.5, floats[c][99], 1e-6)
	}

	require.Nil(t, s.ReceiveMessage(0.1, off(0, 69)))
	assert.Equal(t, 0, s.Notes())
	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	floats = drain(t, out)
	assert.InDelta(t, 0.5, floats[0][0], 1e-6)
	assert.InDelta(t, 0.25, floats[0][50], 1e-6)
	assert.InDelta(t, 0.25, floats[1][50], 1e-6)

	// released sub-graph is pruned
	assert.Equal(t, 2, s.Nodes())
	more, err := s.MoreSoundAvailable()
	require.Nil(t, err)
	assert.False(t, more)
}

func TestProgramChange(t *testing.T) {
	s, out := newSynth(t, dry())
	require.Nil(t, s.ReceiveMessage(0, message(midi.ChannelEvent{Channel: 3, Type: midi.ProgramChange, Param1: 5})))
	require.Nil(t, s.ReceiveMessage(0, on(3, 69, 127)))
	require.Nil(t, s.GenerateAudio(0.01, 0.01))
	assert.InDelta(t, 0.25, drain(t, out)[0][0], 1e-6)

	require.Nil(t, s.ReceiveMessage(0, message(midi.ChannelEvent{Channel: 3, Type: midi.ProgramChange, Param1: 9})))
	assert.ErrorIs(t, s.ReceiveMessage(0, on(3, 60, 127)), synth.ErrNoSample)
}

func TestBrokenSample(t *testing.T) {
	b := bank.New(bank.Sample{
		Name: "detuned", Keys: bank.Full, Velocities: bank.Full, Key: 69,
		FineTune: math.Inf(-1),
		Audio:    test.Constant(mono8, 0.5, mono8.FrameRate),
	})
	s, err := synth.New(b, dry())
	require.Nil(t, err)
	assert.ErrorIs(t, s.ReceiveMessage(0, on(0, 69, 127)), graph.ErrZeroFrequency)
	// nothing but the root mixers is left
	assert.Equal(t, 0, s.Notes())
	assert.Equal(t, 2, s.Nodes())
}

func TestRepeatedNote(t *testing.T) {
	s, _ := newSynth(t, dry())
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 100)))
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 100)))
	assert.Equal(t, 1, s.Notes())
	// both sub-graphs sound until the first one fades out
	assert.Equal(t, 10, s.Nodes())
	// note on with zero velocity is note off
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 0)))
	assert.Equal(t, 0, s.Notes())
}

func TestAllSoundOff(t *testing.T) {
	s, out := newSynth(t, dry())
	require.Nil(t, s.ReceiveMessage(0, on(1, 69, 127)))
	require.Nil(t, s.ReceiveMessage(0, on(1, 70, 127)))
	require.Nil(t, s.ReceiveMessage(0, on(2, 69, 127)))

	require.Nil(t, s.ReceiveMessage(0, message(midi.ChannelEvent{Channel: 1, Type: midi.ControlChange, Param1: 120})))
	assert.Equal(t, 1, s.Notes())
	assert.Equal(t, 6, s.Nodes())

	require.Nil(t, s.ReceiveMessage(0, message(midi.ChannelEvent{Channel: 2, Type: midi.ControlChange, Param1: 123})))
	assert.Equal(t, 0, s.Notes())
	// all notes off lets the note fade out
	assert.Equal(t, 6, s.Nodes())

	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	assert.InDelta(t, 0.5, drain(t, out)[0][0], 1e-6)
	assert.Equal(t, 2, s.Nodes())
}

// drainingOutput consumes frames right after the producer measured it.
type drainingOutput struct {
	*stream.Audio
	drain   int
	drained []byte
}

func (d *drainingOutput) Len() int {
	n := d.Audio.Len()
	if d.drain > 0 {
		b := make([]byte, d.drain)
		m, _ := d.Audio.Read(b)
		d.drained = append(d.drained, b[:m]...)
		d.drain = 0
	}
	return n
}

func TestConcurrentConsumer(t *testing.T) {
	s, err := synth.New(testBank(), dry())
	require.Nil(t, err)
	out := &drainingOutput{Audio: stream.NewAudio(stereo, stream.NewQueue(4096))}
	s.SetAudioOutput(out)
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 127)))
	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	assert.Equal(t, 100*stereo.BytesPerFrame(), out.Audio.Len())

	out.drain = 50 * stereo.BytesPerFrame()
	require.Nil(t, s.GenerateAudio(0.2, 0.2))
	assert.Equal(t, 150*stereo.BytesPerFrame(), out.Audio.Len())

	rest, err := io.ReadAll(out.Audio)
	require.Nil(t, err)
	floats := stereo.AsFloat64(append(out.drained, rest...))
	require.Equal(t, 200, len(floats[0]))
	for c := range floats {
		for i, v := range floats[c] {
			if !assert.InDelta(t, 0.5, v, 1e-6, "channel %d frame %d", c, i) {
				break
			}
		}
	}
}

func TestPitchBend(t *testing.T) {
	s, out := newSynth(t, dry())
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 127)))
	require.Nil(t, s.ReceiveMessage(0, message(midi.ChannelEvent{Channel: 0, Type: midi.PitchBend, Param1: 0, Param2: 0x7F})))
	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	// constant signal stays constant at any pitch
	assert.InDelta(t, 0.5, drain(t, out)[0][10], 1e-6)
	assert.Equal(t, 1, s.Notes())
}

func TestIgnoredMessages(t *testing.T) {
	s, _ := newSynth(t, dry())
	assert.Nil(t, s.ReceiveMessage(0, midi.TempoEvent(500000).Bytes()))
	assert.Nil(t, s.ReceiveMessage(0, nil))
	assert.Nil(t, s.ReceiveMessage(0, message(midi.ChannelEvent{Type: midi.ControlChange, Param1: 7, Param2: 100})))
	assert.Equal(t, 0, s.Notes())
}

func TestAudioInput(t *testing.T) {
	s, out := newSynth(t, dry())
	s.AddAudioInput(test.Constant(stereo, 0.25, 50).Stream())
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 127)))

	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	result := drain(t, out)
	assert.InDelta(t, 0.75, result[0][49], 1e-6)
	assert.InDelta(t, 0.5, result[1][50], 1e-6)

	require.Nil(t, s.SilenceAll())
	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	more, err := s.MoreSoundAvailable()
	require.Nil(t, err)
	assert.False(t, more)
}

func TestReverbTail(t *testing.T) {
	s, out := newSynth(t, synth.DefaultOptions())
	require.Nil(t, s.ReceiveMessage(0, on(0, 69, 127)))
	require.Nil(t, s.GenerateAudio(0.1, 0.1))
	require.Nil(t, s.ReceiveMessage(0, off(0, 69)))

	ticks := 0
	for ; ticks < 100; ticks++ {
		require.Nil(t, s.GenerateAudio(0.1, 0.1))
		drain(t, out)
		more, err := s.MoreSoundAvailable()
		require.Nil(t, err)
		if !more {
			break
		}
	}
	// tail rings longer than the release
	assert.Greater(t, ticks, 3)
	assert.Less(t, ticks, 100)
}

func TestPlayer(t *testing.T) {
	s, out := newSynth(t, dry())
	p, err := player.New(midi.Data{
		Timing: midi.Timing{Mode: midi.Metrical, TicksPerQuarterNote: 480},
		Tracks: []midi.Track{{
			{DeltaTicks: 0, Payload: midi.ChannelEvent{Type: midi.NoteOn, Param1: 69, Param2: 127}},
			{DeltaTicks: 96, Payload: midi.ChannelEvent{Type: midi.NoteOff, Param1: 69}},
		}},
	}, s)
	require.Nil(t, err)

	var left []float64
	delta := 0.0
	for i := 0; i < 4; i++ {
		require.Nil(t, p.Advance(delta))
		require.Nil(t, s.GenerateAudio(0.1, 0.1))
		left = append(left, drain(t, out)[0]...)
		delta = 0.1
	}
	assert.True(t, p.NoMoreToPlay())
	assert.InDelta(t, 0.5, left[50], 1e-6)
	assert.InDelta(t, 0.5, left[100], 1e-6)
	assert.InDelta(t, 0.25, left[150], 1e-6)
	assert.InDelta(t, 0.0, left[350], 1e-6)
}
