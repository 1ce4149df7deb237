// Package player walks MIDI tracks in time and fires their events into
// receivers.
package player

import (
	"fmt"

	"github.com/dudk/synth/log"
	"github.com/dudk/synth/midi"
)

// events within this distance of current time are due
const epsilon = 1e-9

const (
	channels = 16
	keys     = 128
)

type track struct {
	events midi.Track
	cursor int
	// tempo in microseconds per quarter note
	tempo float64
	// time of the last fired event or tempo change
	last float64
	// ticks of the pending event elapsed before last
	elapsed float64
}

// Player fires events of all tracks. Tracks of multi-track data advance
// together and share tempo changes. Tracks of multi-song data are played
// one after another. Player is not safe for concurrent use.
type Player struct {
	log.Logger
	tracks          []*track
	receivers       []Receiver
	ticksPerQuarter float64
	sequential      bool
	song            int
	time            float64
	fired           float64
}

// New returns player positioned before the first event.
func New(data midi.Data, receivers ...Receiver) (*Player, error) {
	if data.Timing.Mode != midi.Metrical {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTiming, data.Timing.Mode)
	}
	if data.Timing.TicksPerQuarterNote <= 0 {
		return nil, ErrZeroTicks
	}
	p := Player{
		Logger:          log.Component("player"),
		receivers:       receivers,
		ticksPerQuarter: float64(data.Timing.TicksPerQuarterNote),
		sequential:      data.Format == midi.MultiSong,
	}
	for _, t := range data.Tracks {
		p.tracks = append(p.tracks, &track{
			events: t,
			tempo:  midi.DefaultTempo,
		})
	}
	return &p, nil
}

// AddReceiver registers one more receiver.
func (p *Player) AddReceiver(r Receiver) {
	p.receivers = append(p.receivers, r)
}

// Time returns number of seconds the player was advanced by.
func (p *Player) Time() float64 {
	return p.time
}

// NoMoreToPlay reports if every track reached its end.
func (p *Player) NoMoreToPlay() bool {
	for _, t := range p.tracks {
		if t.cursor < len(t.events) {
			return false
		}
	}
	return true
}

// Advance moves player delta seconds forward and fires all events which
// became due, earliest first. Errors of receivers do not stop the sweep.
func (p *Player) Advance(delta float64) error {
	if delta < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDelta, delta)
	}
	p.time += delta
	var errs sendErrors
	for {
		t, due := p.next()
		if t == nil || due > p.time+epsilon {
			break
		}
		event := t.events[t.cursor]
		t.cursor++
		t.last, t.elapsed = due, 0
		if meta, ok := event.Payload.(midi.MetaEvent); ok {
			if tempo, ok := meta.Tempo(); ok {
				p.setTempo(t, due, float64(tempo))
			}
		}
		errs = append(errs, p.send(due, event.Payload.Bytes())...)
	}
	return errs.ret()
}

// SilenceAllChannels sends note off for every key of every channel.
func (p *Player) SilenceAllChannels() error {
	var errs sendErrors
	for c := 0; c < channels; c++ {
		for k := 0; k < keys; k++ {
			off := midi.ChannelEvent{Channel: uint8(c), Type: midi.NoteOff, Param1: uint8(k)}
			errs = append(errs, p.send(p.time, off.Bytes())...)
		}
	}
	return errs.ret()
}

func (p *Player) send(at float64, msg []byte) sendErrors {
	delta := at - p.fired
	p.fired = at
	var errs sendErrors
	for _, r := range p.receivers {
		if err := r.ReceiveMessage(delta, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// setTempo changes tempo of the firing track at time at. Simultaneous
// tracks follow the same tempo map: ticks of their pending events which
// elapsed before the change keep the old tempo.
func (p *Player) setTempo(t *track, at, tempo float64) {
	p.Debugf("tempo %v us per quarter at %.3fs", tempo, at)
	t.tempo = tempo
	if p.sequential {
		return
	}
	for _, other := range p.tracks {
		if other == t {
			continue
		}
		if other.cursor < len(other.events) && at > other.last {
			other.elapsed += (at - other.last) * 1e6 * p.ticksPerQuarter / other.tempo
			other.last = at
		}
		other.tempo = tempo
	}
}

// next returns track with the earliest pending event and its due time.
func (p *Player) next() (*track, float64) {
	if p.sequential {
		for p.song < len(p.tracks) {
			t := p.tracks[p.song]
			if t.cursor < len(t.events) {
				return t, p.due(t)
			}
			p.song++
			if p.song < len(p.tracks) {
				p.tracks[p.song].last = t.last
			}
		}
		return nil, 0
	}
	var (
		earliest *track
		at       float64
	)
	for _, t := range p.tracks {
		if t.cursor >= len(t.events) {
			continue
		}
		if due := p.due(t); earliest == nil || due < at {
			earliest, at = t, due
		}
	}
	return earliest, at
}

func (p *Player) due(t *track) float64 {
	ticks := float64(t.events[t.cursor].DeltaTicks) - t.elapsed
	if ticks < 0 {
		ticks = 0
	}
	return t.last + ticks*t.tempo/p.ticksPerQuarter/1e6
}
