package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"text/tabwriter"

	"github.com/dudk/synth/bank"
)

type bankCommand struct {
	manifest string
	watch    bool
}

func (cmd *bankCommand) Name() string {
	return "bank"
}

func (cmd *bankCommand) Help() string {
	return "List samples of a bank manifest"
}

func (cmd *bankCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.manifest, "manifest", "", "sample bank manifest (required)")
	fs.BoolVar(&cmd.watch, "watch", false, "keep reloading bank until interrupted")
}

func (cmd *bankCommand) Run() error {
	if cmd.manifest == "" {
		return errors.New("missing required flag -manifest")
	}
	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	registry := codecs()
	samples, err := bank.Load(ctx, cmd.manifest, registry)
	if err != nil {
		return err
	}
	b := bank.New(samples...)
	list(b)
	if !cmd.watch {
		return nil
	}
	return b.Watch(ctx, cmd.manifest, registry)
}

func list(b *bank.Bank) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINSTRUMENT\tKEYS\tVELOCITIES\tKEY\tLOOP\tDURATION")
	for _, s := range b.Samples() {
		loop := "-"
		if s.Looped {
			loop = fmt.Sprintf("%.3f-%.3f", s.LoopStart, s.LoopEnd)
		}
		fmt.Fprintf(w, "%s\t%d\t%d-%d\t%d-%d\t%d\t%s\t%.3fs\n",
			s.Name, s.Instrument,
			s.Keys.Low, s.Keys.High,
			s.Velocities.Low, s.Velocities.High,
			s.Key, loop, s.Audio.Duration())
	}
	w.Flush()
}
