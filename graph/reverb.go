package graph

import (
	"github.com/dudk/synth/filter"
	"github.com/dudk/synth/waveform"
)

// FilterSetting is delay and gain of a single reverb filter.
type FilterSetting struct {
	Delay float64
	Gain  float64
}

// ReverbOptions configures Schroeder reverberator.
type ReverbOptions struct {
	// Mix is the share of reverberated signal in the output.
	Mix float64
	// Threshold is the volume below which the tail is considered silent.
	Threshold float64
	// Combs are parallel feedback comb filters.
	Combs []FilterSetting
	// AllPasses are series all-pass filters applied after combs.
	AllPasses []FilterSetting
}

// DefaultReverb returns classic tuning with four combs and three all-pass
// filters.
func DefaultReverb() ReverbOptions {
	return ReverbOptions{
		Mix:       0.25,
		Threshold: 1e-3,
		Combs: []FilterSetting{
			{Delay: 0.0297, Gain: 0.805},
			{Delay: 0.0371, Gain: 0.827},
			{Delay: 0.0411, Gain: 0.783},
			{Delay: 0.0437, Gain: 0.764},
		},
		AllPasses: []FilterSetting{
			{Delay: 0.005, Gain: 0.7},
			{Delay: 0.0017, Gain: 0.7},
			{Delay: 0.0005, Gain: 0.7},
		},
	}
}

type reverb struct {
	mix       float64
	threshold float64
	combs     []*filter.Filter
	allPasses []*filter.Filter
	clock     float64
	volume    float64
}

// NewReverb wraps child into reverberator. Options without combs use the
// default tuning.
func (g *Graph) NewReverb(child Handle, options ReverbOptions) (Handle, error) {
	if err := g.validate(child); err != nil {
		return Handle{}, err
	}
	if len(options.Combs) == 0 {
		defaults := DefaultReverb()
		options.Combs = defaults.Combs
		if len(options.AllPasses) == 0 {
			options.AllPasses = defaults.AllPasses
		}
	}
	r := &reverb{
		mix:       options.Mix,
		threshold: options.Threshold,
	}
	for _, c := range options.Combs {
		r.combs = append(r.combs, filter.FeedbackComb(c.Delay, c.Gain))
	}
	for _, a := range options.AllPasses {
		r.allPasses = append(r.allPasses, filter.AllPass(a.Delay, a.Gain))
	}
	return g.add(r, child), nil
}

// apply runs w through combs and all-pass filters and mixes the result with
// dry signal.
func (r *reverb) apply(w waveform.Waveform, duration float64) waveform.Waveform {
	abs := w.Shift(r.clock)
	wet := waveform.Waveform{
		Samples:       make([]waveform.Sample, abs.Len()),
		Interpolation: w.Interpolation,
	}
	for i, s := range abs.Samples {
		wet.Samples[i].Time = s.Time
	}
	for _, c := range r.combs {
		out := c.Apply(abs)
		for i := range wet.Samples {
			wet.Samples[i].Amplitude += out.Samples[i].Amplitude / float64(len(r.combs))
		}
	}
	for _, a := range r.allPasses {
		wet = a.Apply(wet)
	}
	r.volume = wet.Volume()
	result := waveform.Waveform{
		Samples:       make([]waveform.Sample, w.Len()),
		Interpolation: w.Interpolation,
	}
	for i, s := range w.Samples {
		result.Samples[i] = waveform.Sample{
			Time:      s.Time,
			Amplitude: (1-r.mix)*s.Amplitude + r.mix*wet.Samples[i].Amplitude,
		}
	}
	r.clock += duration
	return result
}
