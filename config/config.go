// Package config loads engine configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dudk/synth/graph"
	"github.com/dudk/synth/signal"
	"github.com/dudk/synth/synth"
)

// Config of the engine. Durations are in seconds.
type Config struct {
	Output Output `yaml:"output"`
	Buffer Buffer `yaml:"buffer"`
	Synth  Synth  `yaml:"synth"`
	// Bank is a path to sample bank manifest.
	Bank string `yaml:"bank"`
	// Device is either portaudio or oto.
	Device string `yaml:"device"`
}

// Output format.
type Output struct {
	Kind     string `yaml:"kind"`
	Bits     int    `yaml:"bits"`
	Channels int    `yaml:"channels"`
	Rate     int    `yaml:"rate"`
}

// Buffer keeps between Min and Max seconds of audio ahead of the device.
type Buffer struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Synth options.
type Synth struct {
	Release float64 `yaml:"release"`
	Haas    float64 `yaml:"haas"`
	Reverb  Reverb  `yaml:"reverb"`
}

// Reverb options. Default filter tuning is used.
type Reverb struct {
	Enabled   bool    `yaml:"enabled"`
	Mix       float64 `yaml:"mix"`
	Threshold float64 `yaml:"threshold"`
}

// Default returns built-in configuration.
func Default() Config {
	reverb := graph.DefaultReverb()
	return Config{
		Output: Output{
			Kind:     signal.SignedInt.String(),
			Bits:     16,
			Channels: 2,
			Rate:     44100,
		},
		Buffer: Buffer{
			Min: 0.05,
			Max: 0.1,
		},
		Synth: Synth{
			Release: 0.3,
			Haas:    0.0006,
			Reverb: Reverb{
				Enabled:   true,
				Mix:       reverb.Mix,
				Threshold: reverb.Threshold,
			},
		},
		Device: "portaudio",
	}
}

// Load reads file at path on top of default configuration.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, c.Validate()
}

// Validate checks output format and buffer bounds.
func (c Config) Validate() error {
	if _, err := c.Format(); err != nil {
		return err
	}
	if c.Buffer.Min < 0 || c.Buffer.Max < c.Buffer.Min {
		return fmt.Errorf("invalid buffer bounds: min %v max %v", c.Buffer.Min, c.Buffer.Max)
	}
	return nil
}

// Format returns output audio format.
func (c Config) Format() (signal.Format, error) {
	kind, err := signal.ParseKind(c.Output.Kind)
	if err != nil {
		return signal.Format{}, err
	}
	f := signal.Format{
		Kind:          kind,
		BitsPerSample: c.Output.Bits,
		Channels:      c.Output.Channels,
		FrameRate:     c.Output.Rate,
	}
	return f, f.Validate()
}

// SynthOptions returns synthesizer options.
func (c Config) SynthOptions() synth.Options {
	o := synth.Options{
		Release: c.Synth.Release,
		Haas:    c.Synth.Haas,
	}
	if c.Synth.Reverb.Enabled {
		reverb := graph.DefaultReverb()
		reverb.Mix = c.Synth.Reverb.Mix
		reverb.Threshold = c.Synth.Reverb.Threshold
		o.Reverb = &reverb
	}
	return o
}
