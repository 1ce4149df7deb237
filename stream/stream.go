// Package stream provides byte FIFOs used to move audio between producers
// and consumers.
package stream

import (
	"errors"
	"io"
	"os"
)

// DefaultChunkSize is the size of a single Queue chunk.
const DefaultChunkSize = 4096

// ErrReadOnly is returned when writing into a read-only stream.
var ErrReadOnly = errors.New("stream is read-only")

// Stream is a byte FIFO which knows how many bytes are left to read.
type Stream interface {
	io.Reader
	io.Writer
	Len() int
}

// Queue is a growable in-memory FIFO. Data is kept in fixed-size chunks:
// writes fill the newest chunk, reads consume the oldest one and release it
// once empty.
type Queue struct {
	chunks    [][]byte
	head      int
	size      int
	chunkSize int
}

// NewQueue returns empty queue with chunks of provided size. Non-positive
// size results in DefaultChunkSize.
func NewQueue(chunkSize int) *Queue {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Queue{chunkSize: chunkSize}
}

// Write appends p to the queue. It never fails.
func (q *Queue) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		if len(q.chunks) == 0 || len(q.chunks[len(q.chunks)-1]) == q.chunkSize {
			q.chunks = append(q.chunks, make([]byte, 0, q.chunkSize))
		}
		tail := &q.chunks[len(q.chunks)-1]
		n := copy((*tail)[len(*tail):q.chunkSize], p[written:])
		*tail = (*tail)[:len(*tail)+n]
		written += n
	}
	q.size += written
	return written, nil
}

// Read consumes up to len(p) bytes. io.EOF is returned when queue is empty.
func (q *Queue) Read(p []byte) (int, error) {
	if q.size == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	read := 0
	for read < len(p) && len(q.chunks) > 0 {
		head := q.chunks[0]
		n := copy(p[read:], head[q.head:])
		read += n
		q.head += n
		if q.head == len(head) && (len(head) == q.chunkSize || len(q.chunks) > 1) {
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
			q.head = 0
		}
		if n == 0 {
			break
		}
	}
	q.size -= read
	if q.size == 0 {
		q.chunks = nil
		q.head = 0
	}
	return read, nil
}

// Len returns number of unread bytes.
func (q *Queue) Len() int {
	return q.size
}

// Fixed is a read-only stream over a fixed buffer.
type Fixed struct {
	data []byte
	pos  int
}

// NewFixed wraps data. Buffer must not be modified afterwards.
func NewFixed(data []byte) *Fixed {
	return &Fixed{data: data}
}

// Read consumes up to len(p) bytes.
func (f *Fixed) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += n
	return n, nil
}

// Peek copies up to len(p) bytes without consuming them.
func (f *Fixed) Peek(p []byte) int {
	return copy(p, f.data[f.pos:])
}

// Write always fails with ErrReadOnly.
func (f *Fixed) Write(p []byte) (int, error) {
	return 0, ErrReadOnly
}

// Len returns number of unread bytes.
func (f *Fixed) Len() int {
	return len(f.data) - f.pos
}

// Rewind moves cursor to the beginning of the buffer.
func (f *Fixed) Rewind() {
	f.pos = 0
}

// File is a stream backed by a file.
type File struct {
	file *os.File
}

// OpenFile opens file for reading.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{file: f}, nil
}

// CreateFile creates or truncates file for writing.
func CreateFile(path string) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &File{file: f}, nil
}

func (f *File) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

func (f *File) Write(p []byte) (int, error) {
	return f.file.Write(p)
}

// Len returns number of bytes between current offset and the end of file.
func (f *File) Len() int {
	pos, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	info, err := f.file.Stat()
	if err != nil || info.Size() < pos {
		return 0
	}
	return int(info.Size() - pos)
}

// Name returns name of the file.
func (f *File) Name() string {
	return f.file.Name()
}

// Close closes the file.
func (f *File) Close() error {
	return f.file.Close()
}
