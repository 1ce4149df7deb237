// Package ogg decodes ogg vorbis clips.
package ogg

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/jfreymuth/oggvorbis"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/signal"
)

// Extensions handled by this package.
var Extensions = []string{".ogg", ".oga"}

// Decoder reads whole ogg vorbis stream into memory. Decoded samples are
// kept as 32 bit floats.
type Decoder struct{}

// Decode implements clip.Decoder.
func (Decoder) Decode(r io.ReadSeeker) (clip.AudioData, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return clip.AudioData{}, err
	}
	data := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return clip.AudioData{
		Format: signal.Format{
			Kind:          signal.Float,
			BitsPerSample: 32,
			Channels:      format.Channels,
			FrameRate:     format.SampleRate,
		},
		Data: data,
	}, nil
}
