// Package wav decodes and encodes RIFF/WAVE clips with go-audio/wav.
package wav

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/signal"
)

// Extensions handled by this package.
var Extensions = []string{".wav", ".wave"}

const (
	pcmFormat = 1
	// frames per encoded buffer
	bufferSize = 4096
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 8, 16, 24 and 32 bit depth is supported")
	// ErrInvalidFile is returned when data is not a pcm wave file.
	ErrInvalidFile = errors.New("wav is not valid")
)

// Decoder reads whole wav file into memory.
type Decoder struct{}

// Decode implements clip.Decoder.
func (Decoder) Decode(r io.ReadSeeker) (clip.AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return clip.AudioData{}, ErrInvalidFile
	}
	if decoder.WavAudioFormat != pcmFormat {
		return clip.AudioData{}, fmt.Errorf("%w: audio format %d", ErrInvalidFile, decoder.WavAudioFormat)
	}
	format, err := formatOf(int(decoder.BitDepth), int(decoder.NumChans), int(decoder.SampleRate))
	if err != nil {
		return clip.AudioData{}, err
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return clip.AudioData{}, err
	}
	bps := format.BytesPerSample()
	data := make([]byte, len(ib.Data)*bps)
	for i, v := range ib.Data {
		if format.Kind == signal.UnsignedInt {
			v -= 1 << uint(format.BitsPerSample-1)
		}
		format.WriteRaw(int64(v), data[i*bps:(i+1)*bps])
	}
	return clip.AudioData{Format: format, Data: data}, nil
}

// Encoder writes pcm wav files. Zero BitDepth keeps bit depth of integer
// input and uses 16 bits for float input.
type Encoder struct {
	BitDepth int
}

// Encode implements clip.Encoder.
func (e Encoder) Encode(w io.WriteSeeker, format signal.Format, pcm io.Reader) error {
	bitDepth := e.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
		if format.Kind != signal.Float {
			bitDepth = format.BitsPerSample
		}
	}
	if _, err := formatOf(bitDepth, format.Channels, format.FrameRate); err != nil {
		return err
	}
	encoder := wav.NewEncoder(w, format.FrameRate, bitDepth, format.Channels, pcmFormat)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.FrameRate,
		},
		SourceBitDepth: bitDepth,
	}
	fullScale := float64(int64(1) << uint(bitDepth-1))
	bps := format.BytesPerSample()
	buf := make([]byte, bufferSize*format.BytesPerFrame())
	for {
		n, err := io.ReadFull(pcm, buf)
		n = format.RoundToFrame(n)
		if n > 0 {
			ib.Data = ib.Data[:0]
			for pos := 0; pos < n; pos += bps {
				v := math.Round(format.DecodeSample(buf[pos:pos+bps]) * fullScale)
				v = math.Max(-fullScale, math.Min(fullScale-1, v))
				if bitDepth == 8 {
					v += fullScale
				}
				ib.Data = append(ib.Data, int(v))
			}
			if werr := encoder.Write(ib); werr != nil {
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return encoder.Close()
}

// formatOf returns sample format of pcm wav data. 8-bit wav data is
// unsigned.
func formatOf(bitDepth, channels, sampleRate int) (signal.Format, error) {
	format := signal.Format{
		Kind:          signal.SignedInt,
		BitsPerSample: bitDepth,
		Channels:      channels,
		FrameRate:     sampleRate,
	}
	switch bitDepth {
	case 8:
		format.Kind = signal.UnsignedInt
	case 16, 24, 32:
	default:
		return signal.Format{}, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	return format, format.Validate()
}
