package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// app dispatches the first argument to one of the commands. Usage and
// failures go to out.
type app struct {
	args []string
	out  io.Writer
}

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

var (
	successExitCode = 0
	errorExitCode   = 1
	commands        = []command{&mixCommand{}, &playCommand{}, &bankCommand{}}
)

func main() {
	a := app{
		args: os.Args,
		out:  os.Stderr,
	}
	os.Exit(a.run())
}

func (a *app) run() int {
	if a.out == nil {
		a.out = io.Discard
	}
	if len(a.args) < 2 {
		a.usage()
		return errorExitCode
	}
	name, args := a.args[1], a.args[2:]
	cmd := lookup(name)
	if cmd == nil {
		fmt.Fprintf(a.out, "synth: unknown command %q\n\n", name)
		a.usage()
		return errorExitCode
	}

	flags := flag.NewFlagSet("synth "+name, flag.ContinueOnError)
	flags.SetOutput(a.out)
	flags.Usage = func() {
		fmt.Fprintf(a.out, "%s\n\nUsage: synth %s [flags]\n\n", cmd.Help(), name)
		flags.PrintDefaults()
	}
	cmd.Register(flags)
	if err := flags.Parse(args); err != nil {
		return errorExitCode
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(a.out, "synth %s: %v\n", name, err)
		return errorExitCode
	}
	return successExitCode
}

func lookup(name string) command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func (a *app) usage() {
	fmt.Fprintln(a.out, "Synth renders MIDI sequences with a sample bank and mixes audio clips.")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Usage: synth <command> [flags]")
	fmt.Fprintln(a.out, "Run 'synth <command> -h' for command flags.")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s\t%s\n", cmd.Name(), cmd.Help())
	}
	w.Flush()
}
