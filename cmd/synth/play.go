package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dudk/synth/bank"
	"github.com/dudk/synth/config"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/metric"
	"github.com/dudk/synth/midi"
	"github.com/dudk/synth/oto"
	"github.com/dudk/synth/player"
	"github.com/dudk/synth/portaudio"
	"github.com/dudk/synth/stream"
	"github.com/dudk/synth/synth"
)

const (
	ticksPerQuarter = 480
	// longest tail rendered after the last note
	maxTail = 30.0
	// frames per portaudio callback
	framesPerBuffer = 512
)

type device interface {
	Start() error
	Close() error
}

type playCommand struct {
	config  string
	bank    string
	device  string
	notes   string
	tempo   float64
	program int
	out     string
	watch   bool
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play a note sequence with a sample bank"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "yaml configuration")
	fs.StringVar(&cmd.bank, "bank", "", "sample bank manifest, overrides configuration")
	fs.StringVar(&cmd.device, "device", "", "output device: portaudio or oto, overrides configuration")
	fs.StringVar(&cmd.notes, "notes", "", "comma separated key:beats pairs, r is a rest (required)")
	fs.Float64Var(&cmd.tempo, "tempo", 120, "beats per minute")
	fs.IntVar(&cmd.program, "program", 0, "instrument number")
	fs.StringVar(&cmd.out, "out", "", "render into file instead of playing")
	fs.BoolVar(&cmd.watch, "watch", false, "reload bank when manifest changes")
}

func (cmd *playCommand) Validate() error {
	var problems []string
	if cmd.notes == "" {
		problems = append(problems, "missing required flag -notes")
	}
	if cmd.tempo <= 0 {
		problems = append(problems, "tempo must be positive")
	}
	if cmd.program < 0 || cmd.program > 127 {
		problems = append(problems, "program must be between 0 and 127")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func (cmd *playCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	if cmd.bank != "" {
		cfg.Bank = cmd.bank
	}
	if cmd.device != "" {
		cfg.Device = cmd.device
	}
	if cfg.Bank == "" {
		return errors.New("missing bank manifest")
	}
	data, err := sequence(cmd.notes, cmd.tempo, uint8(cmd.program))
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	registry := codecs()
	samples, err := bank.Load(ctx, cfg.Bank, registry)
	if err != nil {
		return err
	}
	b := bank.New(samples...)
	s, err := synth.New(b, cfg.SynthOptions())
	if err != nil {
		return err
	}
	p, err := player.New(data, s)
	if err != nil {
		return err
	}
	if cmd.out != "" {
		return render(cfg, s, p, cmd.out)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if cmd.watch {
		g.Go(func() error {
			return b.Watch(ctx, cfg.Bank, registry)
		})
	}
	g.Go(func() error {
		defer cancel()
		return play(ctx, cfg, s, p)
	})
	return g.Wait()
}

// play runs the synthesizer in real time until the sequence and its
// tail are over or ctx is done.
func play(ctx context.Context, cfg config.Config, s *synth.Synthesizer, p *player.Player) error {
	l := log.Component("play")
	format, err := cfg.Format()
	if err != nil {
		return err
	}
	var mu sync.Mutex
	out := stream.NewLocked(&mu, stream.NewAudio(format, stream.NewQueue(stream.DefaultChunkSize)))
	s.SetAudioOutput(out)
	if err := s.GenerateAudio(cfg.Buffer.Max, cfg.Buffer.Max); err != nil {
		l.Warnf("prefill: %v", err)
	}

	var d device
	switch cfg.Device {
	case "portaudio":
		d = portaudio.New(out, framesPerBuffer)
	case "oto":
		d = oto.New(out)
	default:
		return fmt.Errorf("unknown device %q", cfg.Device)
	}
	if err := d.Start(); err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			l.Warnf("close device: %v", err)
		}
		l.Infof("metrics: %v", metric.Get(d))
	}()

	ticker := time.NewTicker(time.Duration(cfg.Buffer.Min / 2 * float64(time.Second)))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return p.SilenceAllChannels()
		case now := <-ticker.C:
			if err := p.Advance(now.Sub(last).Seconds()); err != nil {
				l.Warnf("advance: %v", err)
			}
			last = now
			if err := s.GenerateAudio(cfg.Buffer.Min, cfg.Buffer.Max); err != nil {
				l.Warnf("generate: %v", err)
			}
			if !p.NoMoreToPlay() {
				continue
			}
			more, err := s.MoreSoundAvailable()
			if err != nil {
				return err
			}
			if !more && out.Len() == 0 {
				return nil
			}
		}
	}
}

// render plays the sequence offline into file at path.
func render(cfg config.Config, s *synth.Synthesizer, p *player.Player, path string) error {
	format, err := cfg.Format()
	if err != nil {
		return err
	}
	registry := codecs()
	if _, err := registry.Encoder(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp("", "synth-render-*.pcm")
	if err != nil {
		return err
	}
	pcm := tmp.Name()
	tmp.Close()
	defer os.Remove(pcm)

	file, err := stream.CreateFile(pcm)
	if err != nil {
		return err
	}
	s.SetAudioOutput(stream.NewAudio(format, file))
	if err := renderSteps(s, p, cfg.Buffer.Max); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	in, err := stream.OpenFile(pcm)
	if err != nil {
		return err
	}
	defer in.Close()
	return registry.Save(path, format, in)
}

// renderSteps advances player and synthesizer by fixed steps until all
// sound is over. Tail is limited to maxTail seconds.
func renderSteps(s *synth.Synthesizer, p *player.Player, step float64) error {
	var tail float64
	for delta := 0.0; tail < maxTail; delta = step {
		if err := p.Advance(delta); err != nil {
			return err
		}
		if err := s.GenerateAudio(step, step); err != nil {
			return err
		}
		if !p.NoMoreToPlay() {
			continue
		}
		more, err := s.MoreSoundAvailable()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		tail += step
	}
	return nil
}

// sequence builds single track data from key:beats pairs.
func sequence(notes string, bpm float64, program uint8) (midi.Data, error) {
	track := midi.Track{
		{Payload: midi.TempoEvent(uint32(60e6 / bpm))},
		{Payload: midi.ChannelEvent{Type: midi.ProgramChange, Param1: program}},
	}
	var rest uint32
	for _, n := range strings.Split(notes, ",") {
		key, beats, ok := strings.Cut(strings.TrimSpace(n), ":")
		if !ok {
			return midi.Data{}, fmt.Errorf("invalid note %q", n)
		}
		length, err := strconv.ParseFloat(beats, 64)
		if err != nil || length <= 0 {
			return midi.Data{}, fmt.Errorf("invalid note length %q", n)
		}
		ticks := uint32(length * ticksPerQuarter)
		if key == "r" {
			rest += ticks
			continue
		}
		k, err := strconv.ParseUint(key, 10, 7)
		if err != nil {
			return midi.Data{}, fmt.Errorf("invalid note key %q", n)
		}
		track = append(track,
			midi.Event{DeltaTicks: rest, Payload: midi.ChannelEvent{Type: midi.NoteOn, Param1: uint8(k), Param2: 100}},
			midi.Event{DeltaTicks: ticks, Payload: midi.ChannelEvent{Type: midi.NoteOff, Param1: uint8(k)}},
		)
		rest = 0
	}
	track = append(track, midi.Event{DeltaTicks: rest, Payload: midi.MetaEvent{Type: midi.EndOfTrack}})
	return midi.Data{
		Format: midi.SingleTrack,
		Timing: midi.Timing{Mode: midi.Metrical, TicksPerQuarterNote: ticksPerQuarter},
		Tracks: []midi.Track{track},
	}, nil
}
