// Package signal describes PCM audio formats and converts samples between
// their byte representation and normalized float64 values.
package signal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind is a numeric representation of a single sample.
type Kind int

const (
	// SignedInt is two's complement little-endian integer.
	SignedInt Kind = iota
	// UnsignedInt is offset-binary little-endian integer.
	UnsignedInt
	// Float is IEEE 754 little-endian float.
	Float
)

// ErrUnsupportedFormat is returned when kind and bit depth combination cannot be converted.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// Format of PCM audio data. Samples are interleaved by channel.
type Format struct {
	Kind          Kind
	BitsPerSample int
	Channels      int
	FrameRate     int
}

// Float64 is a non-interleaved float64 signal.
type Float64 [][]float64

func (k Kind) String() string {
	switch k {
	case SignedInt:
		return "signed"
	case UnsignedInt:
		return "unsigned"
	case Float:
		return "float"
	}
	return "unknown"
}

// ParseKind converts the string form of Kind back.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "signed", "":
		return SignedInt, nil
	case "unsigned":
		return UnsignedInt, nil
	case "float":
		return Float, nil
	}
	return 0, fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, s)
}

// Validate checks if format can be converted by this package.
func (f Format) Validate() error {
	if f.Channels <= 0 || f.FrameRate <= 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	switch f.Kind {
	case SignedInt:
		switch f.BitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case UnsignedInt:
		switch f.BitsPerSample {
		case 8, 16:
			return nil
		}
	case Float:
		switch f.BitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
}

// Equal compares bit depth, channels and frame rate. Kind is not compared.
func (f Format) Equal(o Format) bool {
	return f.BitsPerSample == o.BitsPerSample &&
		f.Channels == o.Channels &&
		f.FrameRate == o.FrameRate
}

// BytesPerSample returns size of single sample of single channel.
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// BytesPerFrame returns size of single sample of every channel.
func (f Format) BytesPerFrame() int {
	return f.BytesPerSample() * f.Channels
}

// BytesPerSecond returns size of one second of audio.
func (f Format) BytesPerSecond() int {
	return f.BytesPerFrame() * f.FrameRate
}

// RoundToFrame rounds number of bytes down to a whole frame.
func (f Format) RoundToFrame(n int) int {
	bpf := f.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return n - n%bpf
}

// SecondsToBytes returns number of bytes needed to hold duration, rounded up
// to a whole frame.
func (f Format) SecondsToBytes(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	// tolerance keeps exact durations from rounding up an extra frame
	frames := int(math.Ceil(seconds*float64(f.FrameRate) - 1e-9))
	return frames * f.BytesPerFrame()
}

// BytesToSeconds returns duration of n bytes of audio.
func (f Format) BytesToSeconds(n int) float64 {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float64(n) / float64(bps)
}

func (f Format) String() string {
	return fmt.Sprintf("%s%d %dch %dHz", f.Kind, f.BitsPerSample, f.Channels, f.FrameRate)
}

// fullScale is the magnitude which maps to 1.0.
func (f Format) fullScale() float64 {
	return float64(int64(1) << uint(f.BitsPerSample-1))
}

// Range returns the raw integer range of the format in signed domain.
// Float formats are measured in normalized units.
func (f Format) Range() (min, max int64) {
	if f.Kind == Float {
		return -1, 1
	}
	half := int64(1) << uint(f.BitsPerSample-1)
	return -half, half - 1
}

// ReadRaw reads one sample as signed integer. Unsigned values are shifted
// to signed domain.
func (f Format) ReadRaw(b []byte) int64 {
	switch f.Kind {
	case SignedInt:
		switch f.BitsPerSample {
		case 8:
			return int64(int8(b[0]))
		case 16:
			return int64(int16(binary.LittleEndian.Uint16(b)))
		case 24:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			return int64(v)
		case 32:
			return int64(int32(binary.LittleEndian.Uint32(b)))
		}
	case UnsignedInt:
		half := int64(1) << uint(f.BitsPerSample-1)
		switch f.BitsPerSample {
		case 8:
			return int64(b[0]) - half
		case 16:
			return int64(binary.LittleEndian.Uint16(b)) - half
		}
	}
	return 0
}

// WriteRaw writes one signed domain integer sample, clamped to format range.
func (f Format) WriteRaw(v int64, b []byte) {
	min, max := f.Range()
	if v < min {
		v = min
	} else if v > max {
		v = max
	}
	switch f.Kind {
	case SignedInt:
		switch f.BitsPerSample {
		case 8:
			b[0] = byte(int8(v))
		case 16:
			binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		case 24:
			b[0] = byte(v)
			b[1] = byte(v >> 8)
			b[2] = byte(v >> 16)
		case 32:
			binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		}
	case UnsignedInt:
		u := v - min
		switch f.BitsPerSample {
		case 8:
			b[0] = byte(u)
		case 16:
			binary.LittleEndian.PutUint16(b, uint16(u))
		}
	}
}

// DecodeSample converts a single sample to normalized value.
func (f Format) DecodeSample(b []byte) float64 {
	if f.Kind == Float {
		switch f.BitsPerSample {
		case 32:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case 64:
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return 0
	}
	return float64(f.ReadRaw(b)) / f.fullScale()
}

// EncodeSample writes a single normalized value. Integer formats are clamped.
func (f Format) EncodeSample(v float64, b []byte) {
	if f.Kind == Float {
		switch f.BitsPerSample {
		case 32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case 64:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		}
		return
	}
	f.WriteRaw(int64(math.Round(v*f.fullScale())), b)
}

// FillSilence fills buffer with silence samples.
func (f Format) FillSilence(b []byte) {
	if f.Kind != UnsignedInt {
		for i := range b {
			b[i] = 0
		}
		return
	}
	bps := f.BytesPerSample()
	if bps == 0 {
		return
	}
	for i := 0; i+bps <= len(b); i += bps {
		f.WriteRaw(0, b[i:i+bps])
	}
}

// AsFloat64 converts interleaved bytes to non-interleaved normalized signal.
// Trailing bytes which do not form a whole frame are ignored.
func (f Format) AsFloat64(data []byte) Float64 {
	if f.Channels == 0 || f.BytesPerSample() == 0 {
		return nil
	}
	bps := f.BytesPerSample()
	frames := len(data) / f.BytesPerFrame()
	floats := make([][]float64, f.Channels)
	for i := range floats {
		floats[i] = make([]float64, frames)
	}
	pos := 0
	for i := 0; i < frames; i++ {
		for c := 0; c < f.Channels; c++ {
			floats[c][i] = f.DecodeSample(data[pos : pos+bps])
			pos += bps
		}
	}
	return floats
}

// Interleave converts float64 signal to interleaved bytes in format f.
// Channels missing in signal are filled with silence.
func (f Format) Interleave(floats Float64) []byte {
	size := floats.Size()
	bps := f.BytesPerSample()
	data := make([]byte, size*f.BytesPerFrame())
	f.FillSilence(data)
	pos := 0
	for i := 0; i < size; i++ {
		for c := 0; c < f.Channels; c++ {
			if c < len(floats) && i < len(floats[c]) {
				f.EncodeSample(floats[c][i], data[pos:pos+bps])
			}
			pos += bps
		}
	}
	return data
}

// NumChannels returns number of channels in this signal.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in the longest channel.
func (floats Float64) Size() int {
	size := 0
	for i := range floats {
		if len(floats[i]) > size {
			size = len(floats[i])
		}
	}
	return size
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
