// Package synth turns MIDI messages into audio. Every note plays a bank
// sample through its own sub-graph, and the rendered graph is mixed with
// fire-and-forget clips into the output stream.
package synth

import (
	"errors"
	"fmt"

	"github.com/rs/xid"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/dudk/synth/bank"
	"github.com/dudk/synth/graph"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/midi"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/sink"
	"github.com/dudk/synth/stream"
	"github.com/dudk/synth/waveform"
)

var (
	// ErrNoOutput is returned when audio is generated before output is set.
	ErrNoOutput = errors.New("audio output is not set")
	// ErrNoSample is returned when bank has no sample for a note.
	ErrNoSample = bank.ErrNoSample
)

const (
	channels = 16
	// controllers which silence a channel
	allSoundOff = 120
	allNotesOff = 123
	// pitch bend range in semitones
	bendRange = 2
)

// Options of the synthesizer.
type Options struct {
	// Release is the fade-out time of released notes in seconds.
	Release float64
	// Haas is the delay of the right channel in seconds.
	Haas float64
	// Reverb is applied to both channels unless nil.
	Reverb *graph.ReverbOptions
}

// DefaultOptions returns 0.3s release, 0.6ms Haas delay and default reverb.
func DefaultOptions() Options {
	reverb := graph.DefaultReverb()
	return Options{
		Release: 0.3,
		Haas:    0.0006,
		Reverb:  &reverb,
	}
}

type noteKey struct {
	channel uint8
	key     uint8
}

type note struct {
	id          string
	attenuation graph.Handle
	pitchShift  graph.Handle
	delay       graph.Handle
	source      float64
}

// Synthesizer is not safe for concurrent use. Its output stream may be
// consumed from another goroutine if it is thread-safe.
type Synthesizer struct {
	log.Logger
	options  Options
	bank     *bank.Bank
	graph    *graph.Graph
	sink     *sink.Sink
	left     graph.Handle
	right    graph.Handle
	roots    []graph.Handle
	notes    map[noteKey]note
	programs [channels]uint8
	bends    [channels]float64
}

// New returns synthesizer which plays samples of b.
func New(b *bank.Bank, options Options) (*Synthesizer, error) {
	s := Synthesizer{
		Logger:  log.Component("synth"),
		options: options,
		bank:    b,
		graph:   graph.New(),
		notes:   make(map[noteKey]note),
	}
	s.sink = sink.New(sink.WithLogger(s.Logger))
	var err error
	if s.left, err = s.graph.NewMixer(); err != nil {
		return nil, err
	}
	if s.right, err = s.graph.NewMixer(); err != nil {
		return nil, err
	}
	if options.Reverb == nil {
		s.roots = []graph.Handle{s.left, s.right}
		return &s, nil
	}
	for _, mixer := range []graph.Handle{s.left, s.right} {
		// keep own reference to mixer, reverb takes over the other one
		if _, err := s.graph.Retain(mixer); err != nil {
			return nil, err
		}
		root, err := s.graph.NewReverb(mixer, *options.Reverb)
		if err != nil {
			return nil, err
		}
		s.roots = append(s.roots, root)
	}
	return &s, nil
}

// SetAudioOutput sets stream which GenerateAudio keeps filled.
func (s *Synthesizer) SetAudioOutput(out stream.AudioStream) {
	s.sink.SetOutput(out)
}

// AddAudioInput plays a clip once. Stream is closed after it is exhausted.
func (s *Synthesizer) AddAudioInput(in stream.AudioStream) string {
	return s.sink.AddInput(in)
}

// Notes returns number of sounding notes which are not released yet.
func (s *Synthesizer) Notes() int {
	return len(s.notes)
}

// Nodes returns number of graph nodes.
func (s *Synthesizer) Nodes() int {
	return s.graph.Len()
}

// ReceiveMessage applies raw MIDI message. Messages take effect at the
// start of the next generated buffer. Unsupported messages are ignored.
func (s *Synthesizer) ReceiveMessage(delta float64, raw []byte) error {
	var (
		msg                  = gomidi.Message(raw)
		ch, key, vel, cc, pg uint8
		rel                  int16
		abs                  uint16
	)
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return s.noteOn(ch, key, vel)
	case msg.GetNoteEnd(&ch, &key):
		return s.noteOff(ch, key)
	case msg.GetProgramChange(&ch, &pg):
		s.programs[ch] = pg
		s.Debugf("channel %d program %d", ch, pg)
	case msg.GetControlChange(&ch, &cc, &vel):
		switch cc {
		case allSoundOff:
			return s.silence(ch, true)
		case allNotesOff:
			return s.silence(ch, false)
		}
	case msg.GetPitchBend(&ch, &rel, &abs):
		return s.bend(ch, float64(rel)/8192*bendRange)
	default:
		s.Debugf("+%.3fs ignored message % X", delta, raw)
	}
	return nil
}

// GenerateAudio tops output up to max seconds once it holds less than min
// seconds. A tick which failed to evaluate the graph is replaced with
// silence and the error is returned.
func (s *Synthesizer) GenerateAudio(min, max float64) error {
	out := s.sink.Output()
	if out == nil {
		return ErrNoOutput
	}
	buffered := s.sink.Buffered()
	if buffered >= min {
		return nil
	}
	format := out.Format()
	frames := format.SecondsToBytes(max-buffered) / format.BytesPerFrame()
	if frames == 0 {
		return nil
	}
	rate := float64(format.FrameRate)
	duration := float64(frames) / rate

	waves, genErr := s.graph.Generate(duration, rate, s.roots...)
	var data []byte
	if genErr != nil {
		s.Warnf("generate %d frames: %v", frames, genErr)
		data = make([]byte, frames*format.BytesPerFrame())
		format.FillSilence(data)
	} else {
		data = render(format, frames, waves)
	}
	s.sink.AddInput(stream.NewAudio(format, stream.NewFixed(data)))
	// the consumer may drain output meanwhile, so the amount is not re-measured
	if err := s.sink.Mix(len(data)); err != nil {
		return err
	}
	if err := s.prune(); err != nil {
		return err
	}
	return genErr
}

// SilenceAll releases every sounding note.
func (s *Synthesizer) SilenceAll() error {
	for c := uint8(0); c < channels; c++ {
		if err := s.silence(c, false); err != nil {
			return err
		}
	}
	return nil
}

// MoreSoundAvailable reports if any note or reverb tail still sounds.
func (s *Synthesizer) MoreSoundAvailable() (bool, error) {
	for _, root := range s.roots {
		more, err := s.graph.MoreSoundAvailable(root)
		if err != nil || more {
			return more, err
		}
	}
	return s.sink.Inputs() > 0, nil
}

func (s *Synthesizer) noteOn(ch, key, vel uint8) error {
	k := noteKey{channel: ch, key: key}
	if _, ok := s.notes[k]; ok {
		if err := s.noteOff(ch, key); err != nil {
			return err
		}
	}
	sample, err := s.bank.Lookup(s.programs[ch], key, vel)
	if err != nil {
		return err
	}
	n := note{
		id:     xid.New().String(),
		source: sample.Frequency(),
	}
	if err := s.build(&n, sample, ch, key, vel); err != nil {
		return fmt.Errorf("note %d sample %s: %w", key, sample.Name, err)
	}
	s.notes[k] = n
	s.Debugf("note %s on: channel %d key %d velocity %d sample %s", n.id, ch, key, vel, sample.Name)
	return nil
}

// build creates the note sub-graph and attaches it to both mixers. On
// failure every node created so far is released.
func (s *Synthesizer) build(n *note, sample *bank.Sample, ch, key, vel uint8) (err error) {
	g := s.graph
	// references held by this call
	var owned []graph.Handle
	own := func(h graph.Handle) { owned = append(owned, h) }
	disown := func(h graph.Handle) {
		for i := range owned {
			if owned[i] == h {
				owned = append(owned[:i], owned[i+1:]...)
				return
			}
		}
	}
	defer func() {
		if err == nil {
			return
		}
		for _, h := range owned {
			if rerr := g.Release(h); rerr != nil {
				s.Warnf("release %v: %v", h, rerr)
			}
		}
	}()
	looped := g.NewLoopedAudio(sample.Waveform(), graph.Loop{
		Start:   sample.LoopStart,
		End:     sample.LoopEnd,
		Enabled: sample.Looped,
	})
	own(looped)
	if n.pitchShift, err = g.NewPitchShift(looped, n.source, s.target(ch, key)); err != nil {
		return err
	}
	disown(looped)
	own(n.pitchShift)
	if n.attenuation, err = g.NewAttenuation(n.pitchShift, float64(vel)/127, graph.LinearFallOff(s.options.Release)); err != nil {
		return err
	}
	disown(n.pitchShift)
	own(n.attenuation)
	// references: left mixer, delay and the note itself
	for i := 0; i < 2; i++ {
		if _, err = g.Retain(n.attenuation); err != nil {
			return err
		}
		own(n.attenuation)
	}
	if n.delay, err = g.NewDelay(n.attenuation, s.options.Haas); err != nil {
		return err
	}
	disown(n.attenuation)
	own(n.delay)
	if err = g.Attach(s.left, n.attenuation); err != nil {
		return err
	}
	disown(n.attenuation)
	if err = g.Attach(s.right, n.delay); err != nil {
		if derr := detach(g, s.left, n.attenuation); derr != nil {
			s.Warnf("detach %v: %v", n.attenuation, derr)
		}
		return err
	}
	return nil
}

func (s *Synthesizer) noteOff(ch, key uint8) error {
	k := noteKey{channel: ch, key: key}
	n, ok := s.notes[k]
	if !ok {
		return nil
	}
	delete(s.notes, k)
	s.Debugf("note %s off: channel %d key %d", n.id, ch, key)
	if err := s.graph.TriggerFallOff(n.attenuation); err != nil {
		return err
	}
	return s.graph.Release(n.attenuation)
}

// silence releases all notes of the channel. Immediate silence also
// removes their sub-graphs from the mixers.
func (s *Synthesizer) silence(ch uint8, immediate bool) error {
	for k, n := range s.notes {
		if k.channel != ch {
			continue
		}
		if immediate {
			if err := detach(s.graph, s.left, n.attenuation); err != nil {
				return err
			}
			if err := detach(s.graph, s.right, n.delay); err != nil {
				return err
			}
		}
		if err := s.noteOff(k.channel, k.key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesizer) bend(ch uint8, semitones float64) error {
	s.bends[ch] = semitones
	for k, n := range s.notes {
		if k.channel != ch {
			continue
		}
		if err := s.graph.SetPitch(n.pitchShift, n.source, s.target(ch, k.key)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesizer) target(ch, key uint8) float64 {
	return midi.NoteToFrequency(float64(key) + s.bends[ch])
}

func (s *Synthesizer) prune() error {
	for _, mixer := range []graph.Handle{s.left, s.right} {
		pruned, err := s.graph.PruneDeadBranches(mixer)
		if err != nil {
			return err
		}
		if pruned > 0 {
			s.Debugf("pruned %d branches, %d nodes left", pruned, s.graph.Len())
		}
	}
	return nil
}

// detach removes child from parent if it was not pruned already.
func detach(g *graph.Graph, parent, child graph.Handle) error {
	if err := g.Detach(parent, child); err != nil && !errors.Is(err, graph.ErrStaleHandle) {
		return err
	}
	return nil
}

// render converts left and right waveforms into interleaved frames.
// Mono output gets the average of both.
func render(format signal.Format, frames int, waves []waveform.Waveform) []byte {
	rate := float64(format.FrameRate)
	floats := make(signal.Float64, format.Channels)
	for c := range floats {
		floats[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		t := float64(i) / rate
		left, _ := waves[0].EvaluateAt(t)
		right, _ := waves[1].EvaluateAt(t)
		if format.Channels == 1 {
			floats[0][i] = clamp((left + right) / 2)
			continue
		}
		for c := range floats {
			if c%2 == 0 {
				floats[c][i] = clamp(left)
			} else {
				floats[c][i] = clamp(right)
			}
		}
	}
	return format.Interleave(floats)
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
