package mock_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synth/internal/mock"
	"github.com/dudk/synth/signal"
)

var errTest = errors.New("test error")

var mono16 = signal.Format{Kind: signal.SignedInt, BitsPerSample: 16, Channels: 1, FrameRate: 100}

func TestStream(t *testing.T) {
	tests := []struct {
		limit   int
		bufSize int
		calls   int
	}{
		{limit: 10, bufSize: 4, calls: 3},
		{limit: 10, bufSize: 10, calls: 1},
		{limit: 0, bufSize: 10, calls: 0},
	}
	for _, test := range tests {
		s := &mock.Stream{AudioFormat: mono16, Limit: test.limit, Value: 0.5}
		assert.Equal(t, test.limit*mono16.BytesPerFrame(), s.Len())

		var data []byte
		buf := make([]byte, test.bufSize*mono16.BytesPerFrame())
		for {
			n, err := s.Read(buf)
			data = append(data, buf[:n]...)
			if err == io.EOF {
				break
			}
			require.Nil(t, err)
		}
		calls, frames := s.Count()
		assert.Equal(t, test.calls, calls)
		assert.Equal(t, test.limit, frames)
		assert.Equal(t, test.limit*mono16.BytesPerFrame(), len(data))
		for _, v := range mono16.AsFloat64(data)[0] {
			assert.Equal(t, 0.5, v)
		}
		assert.Equal(t, 0, s.Len())
	}
}

func TestStreamWrite(t *testing.T) {
	s := &mock.Stream{AudioFormat: mono16}
	n, err := s.Write(mono16.Interleave(signal.Float64{{0.25, -0.25}}))
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, signal.Float64{{0.25, -0.25}}, s.Written())
	s.Reset()
	calls, frames := s.Count()
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, frames)

	s.ErrorOnCall = errTest
	_, err = s.Write([]byte{0, 0})
	assert.ErrorIs(t, err, errTest)
	_, err = s.Read(make([]byte, 2))
	assert.ErrorIs(t, err, errTest)

	s.ErrorOnClose = errTest
	assert.ErrorIs(t, s.Close(), errTest)
	assert.True(t, s.Closed)
}

func TestReceiver(t *testing.T) {
	r := &mock.Receiver{}
	msg := []byte{0x90, 60, 100}
	require.Nil(t, r.ReceiveMessage(0, msg))
	msg[0] = 0x80
	assert.Equal(t, [][]byte{{0x90, 60, 100}}, r.Messages)
	calls, size := r.Count()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, size)

	r.ErrorOnCall = errTest
	assert.ErrorIs(t, r.ReceiveMessage(0, msg), errTest)
}

func TestCodec(t *testing.T) {
	c := mock.Codec{Format: mono16}
	a, err := c.Decode(bytes.NewReader([]byte{1, 2}))
	require.Nil(t, err)
	assert.Equal(t, mono16, a.Format)
	assert.Equal(t, []byte{1, 2}, a.Data)

	c.ErrorOnCall = errTest
	_, err = c.Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, errTest)
}
