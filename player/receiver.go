package player

import (
	"math"

	"github.com/dudk/synth/log"
	"github.com/dudk/synth/midi"
)

// Receiver consumes raw messages fired by the player. Delta is the time in
// seconds since the previous message.
type Receiver interface {
	ReceiveMessage(delta float64, msg []byte) error
}

// ReceiverFunc is an adapter to use ordinary functions as receivers.
type ReceiverFunc func(delta float64, msg []byte) error

// ReceiveMessage calls f.
func (f ReceiverFunc) ReceiveMessage(delta float64, msg []byte) error {
	return f(delta, msg)
}

// Log returns receiver which writes every message at info level.
func Log(l log.Logger) Receiver {
	return ReceiverFunc(func(delta float64, msg []byte) error {
		p, err := midi.Parse(msg)
		if err != nil {
			return err
		}
		l.Infof("+%.3fs %v", delta, p)
		return nil
	})
}

// Recorded is a message captured by Recorder.
type Recorded struct {
	Time    float64
	Delta   float64
	Message []byte
}

// Recorder captures every received message with its time.
type Recorder struct {
	time     float64
	Messages []Recorded
}

// ReceiveMessage implements Receiver.
func (r *Recorder) ReceiveMessage(delta float64, msg []byte) error {
	r.time += delta
	r.Messages = append(r.Messages, Recorded{
		Time:    r.time,
		Delta:   delta,
		Message: append([]byte(nil), msg...),
	})
	return nil
}

// Track converts captured messages into a track at constant tempo.
// Messages which cannot be parsed are skipped.
func (r *Recorder) Track(ticksPerQuarter int, tempo uint32) midi.Track {
	ticksPerSecond := float64(ticksPerQuarter) * 1e6 / float64(tempo)
	track := make(midi.Track, 0, len(r.Messages))
	var ticks uint32
	for _, m := range r.Messages {
		p, err := midi.Parse(m.Message)
		if err != nil {
			continue
		}
		abs := uint32(math.Round(m.Time * ticksPerSecond))
		track = append(track, midi.Event{DeltaTicks: abs - ticks, Payload: p})
		ticks = abs
	}
	return track
}
