// Package mp3 decodes mp3 clips with go-mp3 and encodes mixdowns with lame.
package mp3

import (
	"errors"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/viert/lame"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/signal"
)

// Extensions handled by this package.
var Extensions = []string{".mp3"}

// ErrUnsupportedChannels is returned when encoded data is not mono or
// stereo.
var ErrUnsupportedChannels = errors.New("only mono and stereo can be encoded")

// frames per encoded buffer
const bufferSize = 4096

// Decoded mp3 data is always signed 16 bit stereo.
const (
	bitDepth    = 16
	numChannels = 2
)

// Decoder reads whole mp3 file into memory.
type Decoder struct{}

// Decode implements clip.Decoder.
func (Decoder) Decode(r io.ReadSeeker) (clip.AudioData, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return clip.AudioData{}, err
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return clip.AudioData{}, err
	}
	format := signal.Format{
		Kind:          signal.SignedInt,
		BitsPerSample: bitDepth,
		Channels:      numChannels,
		FrameRate:     d.SampleRate(),
	}
	return clip.AudioData{Format: format, Data: data[:format.RoundToFrame(len(data))]}, nil
}

// Encoder writes mp3 files with lame.
type Encoder struct {
	BitRate int
	Quality int
}

// DefaultEncoder is 192 kbps variable bit rate of high quality.
var DefaultEncoder = Encoder{
	BitRate: 192,
	Quality: 2,
}

// Encode implements clip.Encoder.
func (e Encoder) Encode(w io.WriteSeeker, format signal.Format, pcm io.Reader) error {
	if format.Channels != 1 && format.Channels != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, format.Channels)
	}
	wr := lame.NewWriter(w)
	wr.Encoder.SetBitrate(e.BitRate)
	wr.Encoder.SetQuality(e.Quality)
	wr.Encoder.SetNumChannels(format.Channels)
	wr.Encoder.SetInSamplerate(format.FrameRate)
	wr.Encoder.SetMode(lame.JOINT_STEREO)
	wr.Encoder.SetVBR(lame.VBR_RH)
	wr.Encoder.InitParams()

	// lame takes interleaved signed 16 bit samples
	out := signal.Format{
		Kind:          signal.SignedInt,
		BitsPerSample: bitDepth,
		Channels:      format.Channels,
		FrameRate:     format.FrameRate,
	}
	bps := format.BytesPerSample()
	buf := make([]byte, bufferSize*format.BytesPerFrame())
	ints := make([]byte, bufferSize*out.BytesPerFrame())
	for {
		n, err := io.ReadFull(pcm, buf)
		n = format.RoundToFrame(n)
		if n > 0 {
			samples := n / bps
			for i := 0; i < samples; i++ {
				out.EncodeSample(format.DecodeSample(buf[i*bps:(i+1)*bps]), ints[i*2:i*2+2])
			}
			if _, werr := wr.Write(ints[:samples*2]); werr != nil {
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
	return wr.Close()
}

