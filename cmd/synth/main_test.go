package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synth/bank"
	"github.com/dudk/synth/player"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/stream"
	"github.com/dudk/synth/synth"
	"github.com/dudk/synth/test"
)

var mono8 = signal.Format{Kind: signal.SignedInt, BitsPerSample: 8, Channels: 1, FrameRate: 100}

func TestInit(t *testing.T) {
	//check if commands are registered
	assert.Equal(t, len(commands), 3)
}

func TestRun(t *testing.T) {
	tests := []struct {
		args     []string
		expected int
	}{
		{args: []string{"synth"}, expected: errorExitCode},
		{args: []string{"synth", "unknown"}, expected: errorExitCode},
		{args: []string{"synth", "mix"}, expected: errorExitCode},
		{args: []string{"synth", "play", "-tempo", "x"}, expected: errorExitCode},
		{args: []string{"synth", "bank"}, expected: errorExitCode},
	}
	for _, test := range tests {
		a := app{args: test.args}
		assert.Equal(t, test.expected, a.run(), "%v", test.args)
	}
}

func TestUsage(t *testing.T) {
	tests := []struct {
		args     []string
		expected []string
	}{
		{
			args:     []string{"synth"},
			expected: []string{"Usage: synth <command>", "mix", "play", "bank"},
		},
		{
			args:     []string{"synth", "record"},
			expected: []string{`unknown command "record"`, "Commands:"},
		},
		{
			args:     []string{"synth", "play", "-h"},
			expected: []string{"Usage: synth play [flags]", "-tempo"},
		},
		{
			args:     []string{"synth", "bank"},
			expected: []string{"synth bank: "},
		},
	}
	for _, test := range tests {
		var out strings.Builder
		a := app{args: test.args, out: &out}
		assert.Equal(t, errorExitCode, a.run(), "%v", test.args)
		for _, expected := range test.expected {
			assert.Contains(t, out.String(), expected, "%v", test.args)
		}
	}
}

func TestClipList(t *testing.T) {
	var l clipList
	require.Nil(t, l.Set("a.wav"))
	require.Nil(t, l.Set("b@c.wav@1.5"))
	assert.Equal(t, clipList{{path: "a.wav"}, {path: "b@c.wav", offset: 1.5}}, l)
	assert.NotNil(t, l.Set("a.wav@x"))
	assert.NotNil(t, l.Set("a.wav@-1"))
	assert.NotNil(t, l.Set("@1"))
}

func TestSequence(t *testing.T) {
	data, err := sequence("60:1, r:0.5,62:0.5,r:1", 60, 3)
	require.Nil(t, err)
	require.Equal(t, 1, len(data.Tracks))
	var r player.Recorder
	p, err := player.New(data, &r)
	require.Nil(t, err)
	require.Nil(t, p.Advance(10))
	assert.True(t, p.NoMoreToPlay())

	var times []float64
	for _, m := range r.Messages {
		times = append(times, m.Time)
	}
	// tempo, program, two notes and end of track
	assert.InDeltaSlice(t, []float64{0, 0, 0, 1, 1.5, 2, 3}, times, 1e-9)
	assert.Equal(t, []byte{0xC0, 3}, r.Messages[1].Message)

	for _, notes := range []string{"60", "60:0", "x:1", "128:1"} {
		_, err := sequence(notes, 120, 0)
		assert.NotNil(t, err, notes)
	}
}

func TestMixdown(t *testing.T) {
	first, err := place(test.Constant(mono8, 0.5, 50), 0)
	require.Nil(t, err)
	second, err := place(test.Constant(mono8, 0.25, 100), 0.25)
	require.Nil(t, err)

	out := stream.NewAudio(mono8, stream.NewQueue(64))
	duration, err := mixdown(out, []stream.AudioStream{first, second})
	require.Nil(t, err)
	assert.InDelta(t, 1.25, duration, 1e-9)
	require.Equal(t, 125, out.Len())

	data, err := io.ReadAll(out)
	require.Nil(t, err)
	floats := mono8.AsFloat64(data)[0]
	assert.InDelta(t, 0.5, floats[0], 1e-6)
	assert.InDelta(t, 0.75, floats[30], 1e-6)
	assert.InDelta(t, 0.25, floats[60], 1e-6)
	assert.InDelta(t, 0.25, floats[124], 1e-6)
}

func TestRenderSteps(t *testing.T) {
	b := bank.New(bank.Sample{
		Name: "tone", Keys: bank.Full, Velocities: bank.Full, Key: 69,
		LoopStart: 0.1, LoopEnd: 0.9, Looped: true,
		Audio: test.Constant(mono8, 0.5, 100),
	})
	s, err := synth.New(b, synth.Options{Release: 0.1})
	require.Nil(t, err)
	path := filepath.Join(t.TempDir(), "out.pcm")
	file, err := stream.CreateFile(path)
	require.Nil(t, err)
	s.SetAudioOutput(stream.NewAudio(mono8, file))

	data, err := sequence("69:1", 120, 0)
	require.Nil(t, err)
	p, err := player.New(data, s)
	require.Nil(t, err)

	require.Nil(t, renderSteps(s, p, 0.1))
	assert.True(t, p.NoMoreToPlay())
	more, err := s.MoreSoundAvailable()
	require.Nil(t, err)
	assert.False(t, more)
	require.Nil(t, file.Close())

	info, err := os.Stat(path)
	require.Nil(t, err)
	// half a second of note and its release
	assert.GreaterOrEqual(t, mono8.BytesToSeconds(int(info.Size())), 0.6)
	assert.Less(t, mono8.BytesToSeconds(int(info.Size())), 1.0)
}
