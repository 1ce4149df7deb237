// Package clip holds decoded audio clips and a registry of codecs keyed by
// file extension.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/stream"
	"github.com/dudk/synth/waveform"
)

// ErrUnknownExtension is returned when no codec is registered for a file.
var ErrUnknownExtension = errors.New("unknown file extension")

// AudioData is a decoded fixed-length clip.
type AudioData struct {
	Format signal.Format
	Data   []byte
}

// Duration returns length of the clip in seconds.
func (a AudioData) Duration() float64 {
	return a.Format.BytesToSeconds(a.Format.RoundToFrame(len(a.Data)))
}

// Stream returns read-only audio stream over clip data.
func (a AudioData) Stream() *stream.Audio {
	return stream.NewAudio(a.Format, stream.NewFixed(a.Data))
}

// Waveforms converts every channel of the clip into a waveform with
// samples at 1/rate intervals.
func (a AudioData) Waveforms() []waveform.Waveform {
	rate := float64(a.Format.FrameRate)
	channels := a.Format.AsFloat64(a.Data)
	result := make([]waveform.Waveform, len(channels))
	for c, samples := range channels {
		w := waveform.Waveform{Samples: make([]waveform.Sample, len(samples))}
		for i, v := range samples {
			w.Samples[i] = waveform.Sample{Time: float64(i) / rate, Amplitude: v}
		}
		result[c] = w
	}
	return result
}

// Mono returns average of all channels.
func (a AudioData) Mono() waveform.Waveform {
	channels := a.Waveforms()
	if len(channels) == 0 {
		return waveform.Waveform{}
	}
	mono := channels[0]
	for _, w := range channels[1:] {
		for i := range mono.Samples {
			mono.Samples[i].Amplitude += w.Samples[i].Amplitude
		}
	}
	n := float64(len(channels))
	for i := range mono.Samples {
		mono.Samples[i].Amplitude /= n
	}
	return mono
}

// Decoder reads whole clip from r.
type Decoder interface {
	Decode(r io.ReadSeeker) (AudioData, error)
}

// Encoder writes raw pcm of provided format into w.
type Encoder interface {
	Encode(w io.WriteSeeker, format signal.Format, pcm io.Reader) error
}

// Registry maps file extensions to codecs.
type Registry struct {
	decoders map[string]Decoder
	encoders map[string]Encoder
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
		encoders: make(map[string]Encoder),
	}
}

// RegisterDecoder adds decoder for extensions, e.g. ".wav".
func (r *Registry) RegisterDecoder(d Decoder, extensions ...string) {
	for _, ext := range extensions {
		r.decoders[normalize(ext)] = d
	}
}

// RegisterEncoder adds encoder for extensions.
func (r *Registry) RegisterEncoder(e Encoder, extensions ...string) {
	for _, ext := range extensions {
		r.encoders[normalize(ext)] = e
	}
}

// Decoder returns decoder for the file path.
func (r *Registry) Decoder(path string) (Decoder, error) {
	if d, ok := r.decoders[normalize(filepath.Ext(path))]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, path)
}

// Encoder returns encoder for the file path.
func (r *Registry) Encoder(path string) (Encoder, error) {
	if e, ok := r.encoders[normalize(filepath.Ext(path))]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, path)
}

// Extensions returns sorted list of decodable extensions.
func (r *Registry) Extensions() []string {
	result := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		result = append(result, ext)
	}
	sort.Strings(result)
	return result
}

// Load decodes file at path.
func (r *Registry) Load(path string) (AudioData, error) {
	d, err := r.Decoder(path)
	if err != nil {
		return AudioData{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return AudioData{}, err
	}
	defer f.Close()
	a, err := d.Decode(f)
	if err != nil {
		return AudioData{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return a, nil
}

// Save encodes pcm of provided format into file at path.
func (r *Registry) Save(path string, format signal.Format, pcm io.Reader) error {
	e, err := r.Encoder(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Encode(f, format, pcm); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func normalize(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
