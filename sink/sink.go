// Package sink mixes ephemeral audio inputs into a single output stream.
package sink

import (
	"io"

	"github.com/rs/xid"

	"github.com/dudk/synth/internal/pool"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/metric"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/stream"
	"github.com/dudk/synth/waveform"
)

// Sink owns zero or more input streams and one output stream. Every call of
// GenerateAudio tops the output up by mixing inputs. Exhausted inputs are
// evicted and closed. Sink is not safe for concurrent use; the output
// stream may be shared with a consumer if it is thread-safe.
type Sink struct {
	log.Logger
	output  stream.AudioStream
	inputs  []input
	measure metric.MeasureFunc
}

type input struct {
	id string
	stream.AudioStream
}

// Option configures the sink.
type Option func(*Sink)

// WithLogger sets custom logger.
func WithLogger(l log.Logger) Option {
	return func(s *Sink) {
		s.Logger = l
	}
}

// WithOutput sets output stream.
func WithOutput(out stream.AudioStream) Option {
	return func(s *Sink) {
		s.SetOutput(out)
	}
}

// New returns new sink.
func New(options ...Option) *Sink {
	s := &Sink{
		Logger: log.Component("sink"),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// SetOutput replaces output stream. Nil output turns GenerateAudio into
// no-op.
func (s *Sink) SetOutput(out stream.AudioStream) {
	s.output = out
	if out != nil {
		s.measure = metric.Meter(s, out.Format().FrameRate)
	}
}

// Output returns current output stream.
func (s *Sink) Output() stream.AudioStream {
	return s.output
}

// AddInput registers new input. The sink takes ownership of the stream and
// closes it once exhausted if it implements io.Closer. Returned id is used
// in log entries.
func (s *Sink) AddInput(in stream.AudioStream) string {
	id := xid.New().String()
	s.inputs = append(s.inputs, input{id: id, AudioStream: in})
	s.Debugf("input %s added: %v", id, in.Format())
	return id
}

// Inputs returns number of active inputs.
func (s *Sink) Inputs() int {
	return len(s.inputs)
}

// Buffered returns duration of output data which is not consumed yet.
func (s *Sink) Buffered() float64 {
	if s.output == nil {
		return 0
	}
	return s.output.Format().BytesToSeconds(s.output.Len())
}

// GenerateAudio mixes inputs into output until it holds at least desired
// seconds of audio. At least minPerCall seconds are produced when output
// needs data. Missing output is not an error.
func (s *Sink) GenerateAudio(desired, minPerCall float64) error {
	if s.output == nil {
		return nil
	}
	format := s.output.Format()
	buffered := s.Buffered()
	if buffered >= desired {
		return nil
	}
	need := format.SecondsToBytes(desired - buffered)
	if min := format.SecondsToBytes(minPerCall); need < min {
		need = min
	}
	return s.Mix(need)
}

// Mix writes exactly n bytes, rounded down to whole frames, of mixed inputs
// into output regardless of how much it holds already.
func (s *Sink) Mix(n int) error {
	if s.output == nil {
		return nil
	}
	format := s.output.Format()
	need := format.RoundToFrame(n)
	if need <= 0 {
		return nil
	}

	var (
		data []byte
		err  error
	)
	switch {
	case len(s.inputs) == 0:
		data = make([]byte, need)
		format.FillSilence(data)
	case s.sameFormat(format):
		data, err = s.sumFast(format, need)
	default:
		data, err = s.sumWaveforms(format, need)
	}
	if err != nil {
		return err
	}
	if _, err = s.output.Write(data); err != nil {
		return err
	}
	if s.measure != nil {
		s.measure(int64(need / format.BytesPerFrame()))
	}
	s.evict()
	return nil
}

func (s *Sink) sameFormat(format signal.Format) bool {
	for _, in := range s.inputs {
		f := in.Format()
		if !f.Equal(format) || f.Kind != format.Kind {
			return false
		}
	}
	return true
}

// sumFast sums samples of inputs in widened domain and clamps the result.
func (s *Sink) sumFast(format signal.Format, need int) ([]byte, error) {
	p := pool.Get(need)
	buffers := make([][]byte, 0, len(s.inputs))
	defer func() {
		for _, b := range buffers {
			p.Free(b)
		}
	}()
	for _, in := range s.inputs {
		b, err := readFrames(in, format, p.Alloc())
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, b)
	}
	data := make([]byte, need)
	bps := format.BytesPerSample()
	for pos := 0; pos+bps <= need; pos += bps {
		if format.Kind == signal.Float {
			var sum float64
			for _, b := range buffers {
				if pos+bps <= len(b) {
					sum += format.DecodeSample(b[pos : pos+bps])
				}
			}
			format.EncodeSample(clamp(sum), data[pos:pos+bps])
			continue
		}
		var sum int64
		for _, b := range buffers {
			if pos+bps <= len(b) {
				sum += format.ReadRaw(b[pos : pos+bps])
			}
		}
		format.WriteRaw(sum, data[pos:pos+bps])
	}
	return data, nil
}

// sumWaveforms converts every input into waveforms, mixes them per output
// channel and converts the result into output format. Input channel c feeds
// output channel c modulo number of output channels. Mono inputs feed every
// output channel.
func (s *Sink) sumWaveforms(format signal.Format, need int) ([]byte, error) {
	frames := need / format.BytesPerFrame()
	duration := float64(frames) / float64(format.FrameRate)
	channels := make([][]waveform.Waveform, format.Channels)
	for _, in := range s.inputs {
		inFormat := in.Format()
		b, err := readFrames(in, inFormat, make([]byte, inFormat.SecondsToBytes(duration)))
		if err != nil {
			return nil, err
		}
		for c, samples := range inFormat.AsFloat64(b) {
			w := toWaveform(samples, float64(inFormat.FrameRate))
			if w.Len() == 0 {
				continue
			}
			if inFormat.Channels == 1 {
				for out := range channels {
					channels[out] = append(channels[out], w)
				}
				continue
			}
			out := c % format.Channels
			channels[out] = append(channels[out], w)
		}
	}
	floats := make(signal.Float64, format.Channels)
	for c, waves := range channels {
		floats[c] = make([]float64, frames)
		var mixed waveform.Waveform
		switch len(waves) {
		case 0:
			continue
		case 1:
			mixed = waves[0]
		default:
			mixed = waveform.SumTogether(waves...)
		}
		for i := range floats[c] {
			v, _ := mixed.EvaluateAt(float64(i) / float64(format.FrameRate))
			floats[c][i] = v
		}
	}
	data := format.Interleave(floats)
	if len(data) < need {
		silence := make([]byte, need-len(data))
		format.FillSilence(silence)
		data = append(data, silence...)
	}
	return data, nil
}

// evict removes exhausted inputs by swapping them with the last one.
func (s *Sink) evict() {
	for i := 0; i < len(s.inputs); {
		in := s.inputs[i]
		if in.Format().RoundToFrame(in.Len()) > 0 {
			i++
			continue
		}
		last := len(s.inputs) - 1
		s.inputs[i] = s.inputs[last]
		s.inputs[last] = input{}
		s.inputs = s.inputs[:last]
		if c, ok := in.AudioStream.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.Warnf("input %s close: %v", in.id, err)
			}
		}
		s.Debugf("input %s evicted", in.id)
	}
}

// readFrames reads whole frames into b and returns the filled part.
func readFrames(in stream.AudioStream, format signal.Format, b []byte) ([]byte, error) {
	n := format.RoundToFrame(len(b))
	if available := format.RoundToFrame(in.Len()); available < n {
		n = available
	}
	read := 0
	for read < n {
		m, err := in.Read(b[read:n])
		read += m
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err == io.EOF || m == 0 {
			break
		}
	}
	return b[:read], nil
}

// toWaveform places samples at 1/rate intervals. One more sample holding
// the last value extends the waveform to the end of the last frame.
func toWaveform(samples []float64, rate float64) waveform.Waveform {
	if len(samples) == 0 {
		return waveform.Waveform{}
	}
	w := waveform.Waveform{Samples: make([]waveform.Sample, 0, len(samples)+1)}
	for i, v := range samples {
		w.Append(waveform.Sample{Time: float64(i) / rate, Amplitude: v})
	}
	w.Append(waveform.Sample{Time: float64(len(samples)) / rate, Amplitude: samples[len(samples)-1]})
	return w
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
