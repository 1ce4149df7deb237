// Package metric publishes expvar counters for audio producers and
// consumers.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/synth/signal"
)

const componentsLabel = "synth.components"

const (
	// CallCounter measures number of generate calls.
	CallCounter = "Calls"
	// FrameCounter measures number of produced frames.
	FrameCounter = "Frames"
	// LatencyCounter measures latency between generate calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of produced audio.
	DurationCounter = "Duration"
	// ComponentCounter counts number of metered components.
	ComponentCounter = "Components"
	// UnderrunCounter counts reads which were padded with silence.
	UnderrunCounter = "Underruns"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		CallCounter,
		FrameCounter,
		LatencyCounter,
		DurationCounter,
		ComponentCounter,
		UnderrunCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when a number of frames is produced.
type MeasureFunc func(frames int64)

// UnderrunFunc captures a read which could not be served completely.
type UnderrunFunc func()

// Meter creates new closure to capture component counters. Latency is
// measured between consecutive calls of the returned closure.
func Meter(component interface{}, sampleRate int) MeasureFunc {
	metric := components.get(getType(component))
	metric.components.Add(1)
	var (
		calledAt       time.Time
		frameCount     int64
		bufferDuration time.Duration
	)
	return func(frames int64) {
		if !calledAt.IsZero() {
			metric.latency.set(time.Since(calledAt))
		}
		metric.calls.Add(1)
		metric.frames.Add(frames)
		// recalculate duration only when number of frames has changed
		if frameCount != frames {
			frameCount = frames
			bufferDuration = signal.DurationOf(sampleRate, frames)
		}
		metric.duration.add(bufferDuration)
		calledAt = time.Now()
	}
}

// Underrun returns closure to count underruns of the component.
func Underrun(component interface{}) UnderrunFunc {
	metric := components.get(getType(component))
	return func() {
		metric.underruns.Add(1)
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		return metric
	}
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	key        string
	components *expvar.Int
	calls      *expvar.Int
	frames     *expvar.Int
	underruns  *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		key:        componentType,
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		calls:      expvar.NewInt(key(componentType, CallCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		underruns:  expvar.NewInt(key(componentType, UnderrunCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%v", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
