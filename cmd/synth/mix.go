package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/config"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/sink"
	"github.com/dudk/synth/stream"
)

// seconds mixed per sink call
const mixChunk = 0.5

type placement struct {
	path   string
	offset float64
}

// clipList is a repeatable path[@offset] flag.
type clipList []placement

func (l *clipList) String() string {
	s := make([]string, 0, len(*l))
	for _, p := range *l {
		s = append(s, fmt.Sprintf("%s@%v", p.path, p.offset))
	}
	return strings.Join(s, ",")
}

func (l *clipList) Set(v string) error {
	p := placement{path: v}
	if i := strings.LastIndex(v, "@"); i >= 0 {
		offset, err := strconv.ParseFloat(v[i+1:], 64)
		if err != nil || offset < 0 {
			return fmt.Errorf("invalid offset in %q", v)
		}
		p.path, p.offset = v[:i], offset
	}
	if p.path == "" {
		return errors.New("empty clip path")
	}
	*l = append(*l, p)
	return nil
}

type mixCommand struct {
	clips  clipList
	out    string
	config string
}

func (cmd *mixCommand) Name() string {
	return "mix"
}

func (cmd *mixCommand) Help() string {
	return "Mix audio clips placed at offsets into one file"
}

func (cmd *mixCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.clips, "clip", "clip to mix as path[@offset seconds], repeatable (required)")
	fs.StringVar(&cmd.out, "out", "", "output file, format is chosen by extension (required)")
	fs.StringVar(&cmd.config, "config", "", "yaml configuration with output format")
}

func (cmd *mixCommand) Validate() error {
	var missing []string
	if len(cmd.clips) == 0 {
		missing = append(missing, "-clip")
	}
	if cmd.out == "" {
		missing = append(missing, "-out")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, " "))
	}
	return nil
}

func (cmd *mixCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	format, err := cfg.Format()
	if err != nil {
		return err
	}
	registry := codecs()
	if _, err := registry.Encoder(cmd.out); err != nil {
		return err
	}
	clips, err := decodeAll(context.Background(), registry, cmd.clips)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "synth-mix-*.pcm")
	if err != nil {
		return err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	file, err := stream.CreateFile(path)
	if err != nil {
		return err
	}
	inputs := make([]stream.AudioStream, len(clips))
	for i, c := range clips {
		if inputs[i], err = place(c, cmd.clips[i].offset); err != nil {
			file.Close()
			return err
		}
	}
	duration, err := mixdown(stream.NewAudio(format, file), inputs)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	pcm, err := stream.OpenFile(path)
	if err != nil {
		return err
	}
	defer pcm.Close()
	if err := registry.Save(cmd.out, format, pcm); err != nil {
		return err
	}
	fmt.Printf("Mixed %d clips into %s: %.3fs %v\n", len(clips), cmd.out, duration, format)
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// decodeAll decodes clips concurrently.
func decodeAll(ctx context.Context, registry *clip.Registry, placements []placement) ([]clip.AudioData, error) {
	clips := make([]clip.AudioData, len(placements))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range placements {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := registry.Load(p.path)
			if err != nil {
				return err
			}
			clips[i] = a
			return nil
		})
	}
	return clips, g.Wait()
}

// place returns stream which plays clip after offset seconds of silence.
func place(c clip.AudioData, offset float64) (stream.AudioStream, error) {
	if err := c.Format.Validate(); err != nil {
		return nil, err
	}
	s := stream.NewAudio(c.Format, stream.NewQueue(c.Format.BytesPerSecond()))
	if err := s.WriteSilence(c.Format.SecondsToBytes(offset)); err != nil {
		return nil, err
	}
	if _, err := s.Write(c.Data[:c.Format.RoundToFrame(len(c.Data))]); err != nil {
		return nil, err
	}
	return s, nil
}

// mixdown mixes inputs into out until all of them are exhausted and
// returns duration of mixed audio.
func mixdown(out stream.AudioStream, inputs []stream.AudioStream) (float64, error) {
	format := out.Format()
	var length float64
	for _, in := range inputs {
		length = math.Max(length, in.Format().BytesToSeconds(in.Len()))
	}
	s := sink.New(sink.WithOutput(out))
	for _, in := range inputs {
		s.AddInput(in)
	}
	total := format.SecondsToBytes(length) / format.BytesPerFrame()
	for written := 0; written < total; {
		frames := int(mixChunk * float64(format.FrameRate))
		if left := total - written; frames > left {
			frames = left
		}
		step := float64(frames) / float64(format.FrameRate)
		if err := s.GenerateAudio(s.Buffered()+step, step); err != nil {
			return 0, err
		}
		written += frames
	}
	return signal.DurationOf(format.FrameRate, int64(total)).Seconds(), nil
}
