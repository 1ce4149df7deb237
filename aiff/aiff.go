// Package aiff decodes and encodes AIFF clips with go-audio/aiff.
package aiff

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/signal"
)

// Extensions handled by this package.
var Extensions = []string{".aif", ".aiff"}

// frames per encoded buffer
const bufferSize = 4096

var (
	// ErrInvalidFile is returned when data is not an aiff file.
	ErrInvalidFile = errors.New("not an aiff file")
	// ErrUnsupportedBitDepth is returned for bit depths other than 8, 16,
	// 24 and 32.
	ErrUnsupportedBitDepth = errors.New("unsupported aiff bit depth")
)

// Decoder reads whole aiff file into memory.
type Decoder struct{}

// Decode implements clip.Decoder.
func (Decoder) Decode(r io.ReadSeeker) (clip.AudioData, error) {
	decoder := aiff.NewDecoder(r)
	if !decoder.IsValidFile() {
		return clip.AudioData{}, ErrInvalidFile
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return clip.AudioData{}, err
	}
	format, err := formatOf(int(decoder.BitDepth), int(decoder.NumChans), int(decoder.SampleRate))
	if err != nil {
		return clip.AudioData{}, err
	}
	bps := format.BytesPerSample()
	data := make([]byte, len(ib.Data)*bps)
	for i, v := range ib.Data {
		format.WriteRaw(int64(v), data[i*bps:(i+1)*bps])
	}
	return clip.AudioData{Format: format, Data: data}, nil
}

// Encoder writes aiff files with 16 bit samples unless BitDepth is set.
type Encoder struct {
	BitDepth int
}

// Encode implements clip.Encoder.
func (e Encoder) Encode(w io.WriteSeeker, format signal.Format, pcm io.Reader) error {
	bitDepth := e.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	if _, err := formatOf(bitDepth, format.Channels, format.FrameRate); err != nil {
		return err
	}
	encoder := aiff.NewEncoder(w, format.FrameRate, bitDepth, format.Channels)
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
				ib.Data = append(ib.Data, int(math.Max(-fullScale, math.Min(fullScale-1, v))))
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

// formatOf returns sample format of aiff data. Aiff samples are always
// signed.
func formatOf(bitDepth, channels, sampleRate int) (signal.Format, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return signal.Format{}, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	format := signal.Format{
		Kind:          signal.SignedInt,
		BitsPerSample: bitDepth,
		Channels:      channels,
		FrameRate:     sampleRate,
	}
	return format, format.Validate()
}
