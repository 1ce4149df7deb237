package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/log"
)

// Manifest lists samples of a bank. File paths are relative to the
// manifest location.
type Manifest struct {
	Samples []Entry `yaml:"samples"`
}

// Entry describes one sample file.
type Entry struct {
	Name       string  `yaml:"name"`
	File       string  `yaml:"file"`
	Instrument uint8   `yaml:"instrument"`
	Keys       *Range  `yaml:"keys"`
	Velocities *Range  `yaml:"velocities"`
	Key        uint8   `yaml:"key"`
	FineTune   float64 `yaml:"fine_tune"`
	Loop       *Loop   `yaml:"loop"`
}

// Loop is a window of the sample in seconds.
type Loop struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// ReadManifest parses manifest file.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Load reads manifest and decodes its files concurrently.
func Load(ctx context.Context, path string, registry *clip.Registry) ([]Sample, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	samples := make([]Sample, len(m.Samples))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, e := range m.Samples {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file := e.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(dir, file)
			}
			a, err := registry.Load(file)
			if err != nil {
				return err
			}
			samples[i] = e.sample(a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (e Entry) sample(a clip.AudioData) Sample {
	s := Sample{
		Name:       e.Name,
		Instrument: e.Instrument,
		Keys:       Full,
		Velocities: Full,
		Key:        e.Key,
		FineTune:   e.FineTune,
		Audio:      a,
	}
	if s.Name == "" {
		s.Name = filepath.Base(e.File)
	}
	if e.Keys != nil {
		s.Keys = *e.Keys
	}
	if e.Velocities != nil {
		s.Velocities = *e.Velocities
	}
	if e.Loop != nil && e.Loop.End > e.Loop.Start {
		s.LoopStart, s.LoopEnd, s.Looped = e.Loop.Start, e.Loop.End, true
	}
	return s
}

// Watch reloads the bank every time manifest changes until ctx is done.
// Failed reloads keep previous samples.
func (b *Bank) Watch(ctx context.Context, path string, registry *clip.Registry) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// editors replace files, so the directory is watched
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	l := log.Component("bank")
	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			samples, err := Load(ctx, path, registry)
			if err != nil {
				l.Warnf("reload %s: %v", path, err)
				continue
			}
			b.Replace(samples)
			l.Infof("reloaded %s: %d samples", path, len(samples))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warnf("watch %s: %v", path, err)
		}
	}
}
