// Package mock provides mocks for engine components and allows to execute
// integration tests.
package mock

import (
	"io"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/signal"
)

// Stream mocks an audio stream. Reads produce frames of Value until Limit
// frames were read. Written data is kept unless Discard is set.
type Stream struct {
	counter
	AudioFormat signal.Format
	Limit       int
	Value       float64
	Discard     bool
	ErrorOnCall error
	Hooks
	written []byte
}

// Format implements stream.AudioStream.
func (m *Stream) Format() signal.Format {
	return m.AudioFormat
}

// Len returns number of bytes left to read.
func (m *Stream) Len() int {
	if left := m.Limit - m.samples; left > 0 {
		return left * m.AudioFormat.BytesPerFrame()
	}
	return 0
}

// Read fills p with whole frames of Value.
func (m *Stream) Read(p []byte) (int, error) {
	if m.ErrorOnCall != nil {
		return 0, m.ErrorOnCall
	}
	bpf := m.AudioFormat.BytesPerFrame()
	frames := len(p) / bpf
	if left := m.Limit - m.samples; left < frames {
		frames = left
	}
	if frames <= 0 {
		return 0, io.EOF
	}
	bps := m.AudioFormat.BytesPerSample()
	n := frames * bpf
	for pos := 0; pos < n; pos += bps {
		m.AudioFormat.EncodeSample(m.Value, p[pos:pos+bps])
	}
	m.advance(frames)
	return n, nil
}

// Write stores p.
func (m *Stream) Write(p []byte) (int, error) {
	if m.ErrorOnCall != nil {
		return 0, m.ErrorOnCall
	}
	if !m.Discard {
		m.written = append(m.written, p...)
	}
	m.advance(len(p) / m.AudioFormat.BytesPerFrame())
	return len(p), nil
}

// Close implements io.Closer.
func (m *Stream) Close() error {
	m.Closed = true
	return m.ErrorOnClose
}

// Written returns data written into stream.
func (m *Stream) Written() signal.Float64 {
	return m.AudioFormat.AsFloat64(m.written)
}

// Receiver mocks a MIDI message receiver.
type Receiver struct {
	counter
	Messages    [][]byte
	ErrorOnCall error
}

// ReceiveMessage keeps a copy of msg.
func (m *Receiver) ReceiveMessage(delta float64, msg []byte) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.Messages = append(m.Messages, append([]byte(nil), msg...))
	m.advance(len(msg))
	return nil
}

// Codec mocks a clip codec. Files hold raw pcm of Format.
type Codec struct {
	Format      signal.Format
	ErrorOnCall error
}

// Decode implements clip.Decoder.
func (m Codec) Decode(r io.ReadSeeker) (clip.AudioData, error) {
	if m.ErrorOnCall != nil {
		return clip.AudioData{}, m.ErrorOnCall
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return clip.AudioData{}, err
	}
	return clip.AudioData{Format: m.Format, Data: data}, nil
}

// Encode implements clip.Encoder. Format of pcm is ignored.
func (m Codec) Encode(w io.WriteSeeker, _ signal.Format, pcm io.Reader) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	_, err := io.Copy(w, pcm)
	return err
}

// Hooks allows to mock components hooks.
type Hooks struct {
	Closed       bool
	ErrorOnClose error
}

// Reset resets counter's metrics.
func (c *counter) Reset() {
	c.messages, c.samples = 0, 0
}

// counter counts calls and frames, or bytes for receivers.
type counter struct {
	messages int
	samples  int
}

// Advance counter's metrics.
func (c *counter) advance(size int) {
	c.messages++
	c.samples = c.samples + size
}

// Count returns messages and samples metrics.
func (c *counter) Count() (int, int) {
	return c.messages, c.samples
}
