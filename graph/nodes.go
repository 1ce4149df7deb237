package graph

import (
	"fmt"
	"math"

	"github.com/dudk/synth/filter"
	"github.com/dudk/synth/waveform"
)

// Role of a graph node.
type Role int

const (
	// MixerRole sums any number of dependents.
	MixerRole Role = iota
	// AttenuationRole scales one dependent and fades it out on release.
	AttenuationRole
	// PitchShiftRole resamples one dependent.
	PitchShiftRole
	// LoopedAudioRole plays a cached waveform, optionally looping a window of it.
	LoopedAudioRole
	// DelayRole re-emits one dependent shifted by a fixed delay.
	DelayRole
	// ReverbRole is a Schroeder reverberator over one dependent.
	ReverbRole
	// FilterRole applies a recursive filter to one dependent.
	FilterRole
	// FuncRole samples a function of time.
	FuncRole
)

func (r Role) String() string {
	switch r {
	case MixerRole:
		return "mixer"
	case AttenuationRole:
		return "attenuation"
	case PitchShiftRole:
		return "pitch shift"
	case LoopedAudioRole:
		return "looped audio"
	case DelayRole:
		return "delay"
	case ReverbRole:
		return "reverb"
	case FilterRole:
		return "filter"
	case FuncRole:
		return "func"
	}
	return "unknown"
}

// role is implemented by node states of this package only.
type role interface {
	role() Role
}

type (
	mixer struct{}

	attenuation struct {
		gain      float64
		fallOff   FallOff
		triggered bool
		elapsed   float64
	}

	pitchShift struct {
		source float64
		target float64
	}

	loopedAudio struct {
		wave waveform.Waveform
		loop Loop
		pos  float64
	}

	delay struct {
		delay   float64
		clock   float64
		history *waveform.Stream
	}

	filtered struct {
		filter *filter.Filter
		clock  float64
	}

	generator struct {
		fn     func(t float64) float64
		length float64
		clock  float64
	}
)

func (*mixer) role() Role       { return MixerRole }
func (*attenuation) role() Role { return AttenuationRole }
func (*pitchShift) role() Role  { return PitchShiftRole }
func (*loopedAudio) role() Role { return LoopedAudioRole }
func (*delay) role() Role       { return DelayRole }
func (*reverb) role() Role      { return ReverbRole }
func (*filtered) role() Role    { return FilterRole }
func (*generator) role() Role   { return FuncRole }

// FallOff returns gain multiplier for time elapsed since release. Node stops
// once the multiplier reaches zero.
type FallOff func(elapsed float64) float64

// LinearFallOff ramps from 1 to 0 over decay seconds.
func LinearFallOff(decay float64) FallOff {
	return func(elapsed float64) float64 {
		if decay <= 0 {
			return 0
		}
		return math.Max(0, 1-elapsed/decay)
	}
}

// Loop is a window of looped audio. Window is ignored unless it is
// non-empty.
type Loop struct {
	Start   float64
	End     float64
	Enabled bool
}

// NewMixer returns mixer over provided dependents.
func (g *Graph) NewMixer(children ...Handle) (Handle, error) {
	if err := g.validate(children...); err != nil {
		return Handle{}, err
	}
	return g.add(&mixer{}, children...), nil
}

// NewAttenuation scales child by constant gain. Once fall-off is triggered,
// gain is multiplied by fallOff of time since trigger. Nil fallOff stops the
// sound immediately after trigger.
func (g *Graph) NewAttenuation(child Handle, gain float64, fallOff FallOff) (Handle, error) {
	if err := g.validate(child); err != nil {
		return Handle{}, err
	}
	if fallOff == nil {
		fallOff = LinearFallOff(0)
	}
	return g.add(&attenuation{gain: gain, fallOff: fallOff}, child), nil
}

// NewPitchShift resamples child from source to target frequency.
func (g *Graph) NewPitchShift(child Handle, source, target float64) (Handle, error) {
	if err := g.validate(child); err != nil {
		return Handle{}, err
	}
	if source == 0 {
		return Handle{}, ErrZeroFrequency
	}
	return g.add(&pitchShift{source: source, target: target}, child), nil
}

// NewLoopedAudio plays w from its start.
func (g *Graph) NewLoopedAudio(w waveform.Waveform, loop Loop) Handle {
	return g.add(&loopedAudio{wave: w, loop: loop})
}

// NewDelay re-emits child delayed by d seconds.
func (g *Graph) NewDelay(child Handle, d float64) (Handle, error) {
	if err := g.validate(child); err != nil {
		return Handle{}, err
	}
	return g.add(&delay{delay: d}, child), nil
}

// NewFilter applies f to child.
func (g *Graph) NewFilter(child Handle, f *filter.Filter) (Handle, error) {
	if err := g.validate(child); err != nil {
		return Handle{}, err
	}
	return g.add(&filtered{filter: f}, child), nil
}

// NewFunc samples fn over time. Non-positive length means infinite sound.
func (g *Graph) NewFunc(fn func(t float64) float64, length float64) Handle {
	return g.add(&generator{fn: fn, length: length})
}

// TriggerFallOff starts fading out attenuation node.
func (g *Graph) TriggerFallOff(h Handle) error {
	n, err := g.node(h)
	if err != nil {
		return err
	}
	a, ok := n.state.(*attenuation)
	if !ok {
		return fmt.Errorf("%w: fall-off on %v", ErrWrongRole, n.state.role())
	}
	if !a.triggered {
		a.triggered = true
		a.elapsed = 0
	}
	return nil
}

// SetPitch changes frequencies of pitch shift node.
func (g *Graph) SetPitch(h Handle, source, target float64) error {
	n, err := g.node(h)
	if err != nil {
		return err
	}
	p, ok := n.state.(*pitchShift)
	if !ok {
		return fmt.Errorf("%w: set pitch on %v", ErrWrongRole, n.state.role())
	}
	p.source, p.target = source, target
	return nil
}

// evaluate dispatches generation on node role.
func (g *Graph) evaluate(n *node, duration, rate float64) (waveform.Waveform, error) {
	switch s := n.state.(type) {
	case *mixer:
		return g.mix(n, duration, rate)
	case *attenuation:
		child, err := single(n)
		if err != nil {
			return waveform.Waveform{}, err
		}
		w, err := g.childOrSilence(child, duration, rate)
		if err != nil {
			return waveform.Waveform{}, err
		}
		if !s.triggered {
			return w.Scale(func(float64) float64 { return s.gain }), nil
		}
		elapsed := s.elapsed
		s.elapsed += duration
		return w.Scale(func(t float64) float64 { return s.gain * s.fallOff(elapsed+t) }), nil
	case *pitchShift:
		child, err := single(n)
		if err != nil {
			return waveform.Waveform{}, err
		}
		if s.source == 0 {
			return waveform.Waveform{}, ErrZeroFrequency
		}
		if s.source == s.target {
			return g.childOrSilence(child, duration, rate)
		}
		ratio := s.target / s.source
		if ratio == 0 {
			return waveform.Silence(duration, rate), nil
		}
		childDuration := ratio * duration
		if math.IsNaN(childDuration) || math.IsInf(childDuration, 0) || childDuration < 0 {
			return waveform.Waveform{}, fmt.Errorf("%w: pitch shift %v -> %v", ErrNonFinite, s.source, s.target)
		}
		// child covers ratio*duration with the same number of samples
		w, err := g.childOrSilence(child, childDuration, rate/ratio)
		if err != nil {
			return waveform.Waveform{}, err
		}
		return w.Remap(0, duration), nil
	case *loopedAudio:
		if err := none(n); err != nil {
			return waveform.Waveform{}, err
		}
		pos := s.pos
		s.pos += duration
		w := waveform.Generate(duration, rate, func(t float64) float64 {
			v, _ := s.wave.EvaluateAt(s.localTime(pos + t))
			return v
		})
		w.Interpolation = s.wave.Interpolation
		return w, nil
	case *delay:
		child, err := single(n)
		if err != nil {
			return waveform.Waveform{}, err
		}
		if s.history == nil || s.history.MaxSpan() < duration+s.delay {
			s.grow(duration)
		}
		if g.live(child) {
			w, err := g.generate(child, duration, rate)
			if err != nil {
				return waveform.Waveform{}, err
			}
			s.history.Append(w.Shift(s.clock))
		}
		clock := s.clock
		s.clock += duration
		return waveform.Generate(duration, rate, func(t float64) float64 {
			v, _ := s.history.EvaluateAt(clock + t - s.delay)
			return v
		}), nil
	case *reverb:
		child, err := single(n)
		if err != nil {
			return waveform.Waveform{}, err
		}
		w, err := g.childOrSilence(child, duration, rate)
		if err != nil {
			return waveform.Waveform{}, err
		}
		return s.apply(w, duration), nil
	case *filtered:
		child, err := single(n)
		if err != nil {
			return waveform.Waveform{}, err
		}
		w, err := g.childOrSilence(child, duration, rate)
		if err != nil {
			return waveform.Waveform{}, err
		}
		clock := s.clock
		s.clock += duration
		return s.filter.Apply(w.Shift(clock)).Shift(-clock), nil
	case *generator:
		if err := none(n); err != nil {
			return waveform.Waveform{}, err
		}
		clock := s.clock
		s.clock += duration
		return waveform.Generate(duration, rate, func(t float64) float64 {
			if s.length > 0 && clock+t > s.length {
				return 0
			}
			return s.fn(clock + t)
		}), nil
	}
	return waveform.Waveform{}, fmt.Errorf("%w: unknown node state %T", ErrWrongRole, n.state)
}

// more dispatches sound availability on node role.
func (g *Graph) more(n *node) bool {
	switch s := n.state.(type) {
	case *mixer:
		for _, c := range n.children {
			if g.live(c) {
				return true
			}
		}
		return false
	case *attenuation:
		if s.triggered && s.fallOff(s.elapsed) <= 0 {
			return false
		}
		return g.childMore(n)
	case *pitchShift, *filtered:
		return g.childMore(n)
	case *loopedAudio:
		return s.looping() || s.pos < s.wave.End()
	case *delay:
		if g.childMore(n) {
			return true
		}
		return s.history != nil && s.history.Len() > 0 && s.clock-s.delay < s.history.End()
	case *reverb:
		return g.childMore(n) || s.volume >= s.threshold
	case *generator:
		return s.length <= 0 || s.clock < s.length
	}
	return false
}

// childMore reports if the only dependent has sound. Nodes with wrong
// arity report true so that evaluation fails with ErrArity.
func (g *Graph) childMore(n *node) bool {
	if len(n.children) != 1 {
		return true
	}
	return g.live(n.children[0])
}

// mix sums live dependents.
func (g *Graph) mix(n *node, duration, rate float64) (waveform.Waveform, error) {
	children := append([]Handle(nil), n.children...)
	waves := make([]waveform.Waveform, 0, len(children))
	for _, c := range children {
		if !g.live(c) {
			continue
		}
		w, err := g.generate(c, duration, rate)
		if err != nil {
			return waveform.Waveform{}, err
		}
		waves = append(waves, w)
	}
	switch len(waves) {
	case 0:
		return waveform.Silence(duration, rate), nil
	case 1:
		return waves[0], nil
	}
	return waveform.SumTogether(waves...), nil
}

// childOrSilence generates child if it has sound, silence otherwise.
func (g *Graph) childOrSilence(child Handle, duration, rate float64) (waveform.Waveform, error) {
	if !g.live(child) {
		if _, err := g.node(child); err != nil {
			return waveform.Waveform{}, err
		}
		return waveform.Silence(duration, rate), nil
	}
	return g.generate(child, duration, rate)
}

func (s *loopedAudio) looping() bool {
	return s.loop.Enabled && s.loop.End > s.loop.Start
}

// localTime maps time since start of playback into waveform time.
func (s *loopedAudio) localTime(t float64) float64 {
	if !s.looping() || t < s.loop.End {
		return t
	}
	return s.loop.Start + math.Mod(t-s.loop.Start, s.loop.End-s.loop.Start)
}

// grow makes history long enough for ticks of duration seconds.
func (s *delay) grow(duration float64) {
	span := duration + s.delay
	if s.history == nil {
		s.history = waveform.NewStream(3, span)
		return
	}
	s.history.SetMaxSpan(span)
}
