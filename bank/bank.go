// Package bank keeps instrument samples and selects one for a note.
package bank

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/midi"
	"github.com/dudk/synth/waveform"
)

// ErrNoSample is returned when instrument has no samples.
var ErrNoSample = errors.New("no sample for note")

// Range is an inclusive range of MIDI values.
type Range struct {
	Low  uint8 `yaml:"low"`
	High uint8 `yaml:"high"`
}

// Full covers every MIDI value.
var Full = Range{Low: 0, High: 127}

// Contains reports if v is within range.
func (r Range) Contains(v uint8) bool {
	return v >= r.Low && v <= r.High
}

// Width returns number of values in range.
func (r Range) Width() int {
	return int(r.High) - int(r.Low) + 1
}

// Sample is a recorded note of an instrument.
type Sample struct {
	Name       string
	Instrument uint8
	Keys       Range
	Velocities Range
	// Key is the MIDI key the sample was recorded at.
	Key uint8
	// FineTune corrects the recorded pitch, in cents.
	FineTune float64
	// Loop window in seconds. Sample is not looped unless Looped is set.
	LoopStart float64
	LoopEnd   float64
	Looped    bool
	Audio     clip.AudioData

	wave waveform.Waveform
}

// Frequency returns pitch of the recording in Hz.
func (s *Sample) Frequency() float64 {
	return midi.NoteToFrequency(float64(s.Key) + s.FineTune/100)
}

// Waveform returns mono waveform of the sample audio.
func (s *Sample) Waveform() waveform.Waveform {
	return s.wave
}

// Bank is a set of samples. It is safe for concurrent use.
type Bank struct {
	mu      sync.RWMutex
	samples []*Sample
}

// New returns bank with provided samples.
func New(samples ...Sample) *Bank {
	var b Bank
	b.Replace(samples)
	return &b
}

// Replace swaps all samples of the bank.
func (b *Bank) Replace(samples []Sample) {
	prepared := make([]*Sample, 0, len(samples))
	for i := range samples {
		s := samples[i]
		s.wave = s.Audio.Mono()
		prepared = append(prepared, &s)
	}
	b.mu.Lock()
	b.samples = prepared
	b.mu.Unlock()
}

// Len returns number of samples.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Samples returns all samples.
func (b *Bank) Samples() []*Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Sample(nil), b.samples...)
}

// Lookup returns the best sample of instrument for key and velocity.
// Samples whose ranges contain the note win, narrower key range first,
// then closest recorded key. When none contains the note, the sample with
// the closest recorded key is used.
func (b *Bank) Lookup(instrument, key, velocity uint8) (*Sample, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var best *Sample
	bestContains := false
	for _, s := range b.samples {
		if s.Instrument != instrument {
			continue
		}
		contains := s.Keys.Contains(key) && s.Velocities.Contains(velocity)
		switch {
		case best == nil:
		case contains && !bestContains:
		case contains == bestContains && better(s, best, key, contains):
		default:
			continue
		}
		best, bestContains = s, contains
	}
	if best == nil {
		return nil, fmt.Errorf("%w: instrument %d key %d velocity %d", ErrNoSample, instrument, key, velocity)
	}
	return best, nil
}

func better(s, than *Sample, key uint8, ranged bool) bool {
	if ranged && s.Keys.Width() != than.Keys.Width() {
		return s.Keys.Width() < than.Keys.Width()
	}
	return distance(s.Key, key) < distance(than.Key, key)
}

func distance(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
