package stream

import (
	"io"
	"sync"

	"github.com/dudk/synth/signal"
)

// AudioStream is a byte stream tagged with audio format.
type AudioStream interface {
	Stream
	Format() signal.Format
}

// Audio tags a stream with the format of its data.
type Audio struct {
	Stream
	format signal.Format
}

// NewAudio returns audio stream over s.
func NewAudio(format signal.Format, s Stream) *Audio {
	return &Audio{
		Stream: s,
		format: format,
	}
}

// Format returns format of the stream data.
func (a *Audio) Format() signal.Format {
	return a.format
}

// Duration returns number of buffered seconds.
func (a *Audio) Duration() float64 {
	return a.format.BytesToSeconds(a.Len())
}

// WriteSilence writes n bytes of silence in a single call.
func (a *Audio) WriteSilence(n int) error {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	a.format.FillSilence(b)
	_, err := a.Write(b)
	return err
}

// Close closes underlying stream if it can be closed.
func (a *Audio) Close() error {
	if c, ok := a.Stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Locked guards an audio stream with a mutex supplied by its creator. Every
// method locks once. Compound operations must use Do or ReadPadded.
type Locked struct {
	mu     sync.Locker
	stream *Audio
}

// NewLocked returns thread-safe audio stream. The mutex is not owned by the
// stream and may guard other state of the caller.
func NewLocked(mu sync.Locker, s *Audio) *Locked {
	return &Locked{
		mu:     mu,
		stream: s,
	}
}

func (l *Locked) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream.Read(p)
}

func (l *Locked) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream.Write(p)
}

// Len returns number of buffered bytes.
func (l *Locked) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream.Len()
}

// Format returns format of the stream data.
func (l *Locked) Format() signal.Format {
	return l.stream.Format()
}

// Duration returns number of buffered seconds.
func (l *Locked) Duration() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream.Duration()
}

// WriteSilence writes n bytes of silence under one lock.
func (l *Locked) WriteSilence(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream.WriteSilence(n)
}

// Do runs fn with the lock held.
func (l *Locked) Do(fn func(*Audio) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.stream)
}

// ReadPadded fills p completely: whole frames available in the stream are
// read and the rest is padded with silence. It never blocks on the producer
// and returns number of bytes taken from the stream.
func (l *Locked) ReadPadded(p []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	format := l.stream.Format()
	want := format.RoundToFrame(len(p))
	if available := format.RoundToFrame(l.stream.Len()); available < want {
		want = available
	}
	n := 0
	for n < want {
		m, err := l.stream.Read(p[n:want])
		n += m
		if err != nil || m == 0 {
			break
		}
	}
	format.FillSilence(p[n:])
	return n
}

// Padded returns reader which never ends and never blocks. Missing data
// is replaced with silence.
func (l *Locked) Padded() io.Reader {
	return paddedReader{l}
}

type paddedReader struct {
	*Locked
}

func (r paddedReader) Read(p []byte) (int, error) {
	r.ReadPadded(p)
	return len(p), nil
}
