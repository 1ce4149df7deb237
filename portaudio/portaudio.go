// Package portaudio plays a synthesized stream on the default output
// device.
package portaudio

import (
	"github.com/gordonklaus/portaudio"

	"github.com/dudk/synth/log"
	"github.com/dudk/synth/metric"
	"github.com/dudk/synth/stream"
)

// Device drains a thread-safe stream from the portaudio callback. Missing
// data is played as silence and counted as underrun.
type Device struct {
	log.Logger
	source   *stream.Locked
	buf      []byte
	stream   *portaudio.Stream
	underrun metric.UnderrunFunc
}

// New returns device which reads from source in chunks of framesPerBuffer.
func New(source *stream.Locked, framesPerBuffer int) *Device {
	d := &Device{
		Logger: log.Component("portaudio"),
		source: source,
		buf:    make([]byte, framesPerBuffer*source.Format().BytesPerFrame()),
	}
	d.underrun = metric.Underrun(d)
	return d
}

// Start initializes portaudio and starts the default stream.
func (d *Device) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	format := d.source.Format()
	frames := len(d.buf) / format.BytesPerFrame()
	s, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.FrameRate), frames, d.process)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := s.Start(); err != nil {
		s.Close()
		portaudio.Terminate()
		return err
	}
	d.stream = s
	d.Infof("started: %v, %d frames per buffer", format, frames)
	return nil
}

// process is called on the real-time thread. It never blocks on the
// producer and doesn't allocate.
func (d *Device) process(out []float32) {
	format := d.source.Format()
	bps := format.BytesPerSample()
	n := len(out) * bps
	if n > len(d.buf) {
		n = len(d.buf)
	}
	if read := d.source.ReadPadded(d.buf[:n]); read < n {
		d.underrun()
	}
	for i := 0; i < len(out); i++ {
		if (i+1)*bps > n {
			out[i] = 0
			continue
		}
		out[i] = float32(format.DecodeSample(d.buf[i*bps : (i+1)*bps]))
	}
}

// Close stops the stream and terminates portaudio.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return err
	}
	if err := d.stream.Close(); err != nil {
		return err
	}
	d.stream = nil
	return portaudio.Terminate()
}
