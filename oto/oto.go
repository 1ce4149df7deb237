// Package oto plays a synthesized stream with ebitengine/oto. Only one
// device may exist per process.
package oto

import (
	"errors"
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"

	"github.com/dudk/synth/log"
	"github.com/dudk/synth/metric"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/stream"
)

// ErrUnsupportedFormat is returned for formats oto cannot play.
var ErrUnsupportedFormat = errors.New("oto plays float32, signed 16 and unsigned 8 bit only")

// Device pulls from a thread-safe stream on the oto player goroutine.
// Missing data is played as silence and counted as underrun.
type Device struct {
	log.Logger
	source   *stream.Locked
	context  *oto.Context
	player   *oto.Player
	underrun metric.UnderrunFunc
}

// New returns device for source.
func New(source *stream.Locked) *Device {
	d := &Device{
		Logger: log.Component("oto"),
		source: source,
	}
	d.underrun = metric.Underrun(d)
	return d
}

// Start creates oto context and starts playback.
func (d *Device) Start() error {
	format := d.source.Format()
	sampleFormat, err := sampleFormatOf(format)
	if err != nil {
		return err
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.FrameRate,
		ChannelCount: format.Channels,
		Format:       sampleFormat,
	})
	if err != nil {
		return fmt.Errorf("oto context: %w", err)
	}
	<-ready
	d.context = ctx
	d.player = ctx.NewPlayer(reader{d})
	d.player.Play()
	d.Infof("started: %v", format)
	return nil
}

// Close stops playback.
func (d *Device) Close() error {
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	if serr := d.context.Suspend(); err == nil {
		err = serr
	}
	return err
}

// reader never blocks and never ends.
type reader struct {
	*Device
}

func (r reader) Read(p []byte) (int, error) {
	if n := r.source.ReadPadded(p); n < r.source.Format().RoundToFrame(len(p)) {
		r.underrun()
	}
	return len(p), nil
}

var _ io.Reader = reader{}

func sampleFormatOf(f signal.Format) (oto.Format, error) {
	switch {
	case f.Kind == signal.Float && f.BitsPerSample == 32:
		return oto.FormatFloat32LE, nil
	case f.Kind == signal.SignedInt && f.BitsPerSample == 16:
		return oto.FormatSignedInt16LE, nil
	case f.Kind == signal.UnsignedInt && f.BitsPerSample == 8:
		return oto.FormatUnsignedInt8, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
}
