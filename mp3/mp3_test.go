package mp3_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synth/mp3"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/test"
)

func TestEncodeDecode(t *testing.T) {
	format := signal.Format{Kind: signal.Float, BitsPerSample: 32, Channels: 2, FrameRate: 44100}
	sine := test.Sine(format, 440, 0.5, 1)

	path := filepath.Join(t.TempDir(), "sine.mp3")
	f, err := os.Create(path)
	require.Nil(t, err)
	require.Nil(t, mp3.DefaultEncoder.Encode(f, format, bytes.NewReader(sine.Data)))
	require.Nil(t, f.Close())

	f, err = os.Open(path)
	require.Nil(t, err)
	defer f.Close()
	a, err := mp3.Decoder{}.Decode(f)
	require.Nil(t, err)
	assert.Equal(t, signal.Format{Kind: signal.SignedInt, BitsPerSample: 16, Channels: 2, FrameRate: 44100}, a.Format)
	// encoder adds padding frames
	assert.InDelta(t, 1.0, a.Duration(), 0.1)
}

func TestUnsupportedChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	f, err := os.Create(path)
	require.Nil(t, err)
	defer f.Close()
	format := signal.Format{Kind: signal.SignedInt, BitsPerSample: 16, Channels: 6, FrameRate: 44100}
	assert.ErrorIs(t, mp3.DefaultEncoder.Encode(f, format, bytes.NewReader(nil)), mp3.ErrUnsupportedChannels)
}
