package metric_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth/metric"
)

func TestMeter(t *testing.T) {
	sampleRate := 44100
	pint := 1
	var tests = []struct {
		component          interface{}
		routines           int
		calls              int
		frames             int64
		expectedFrames     string
		expectedCalls      string
		expectedComponents string
	}{
		{
			component:          int(1),
			routines:           2,
			calls:              10,
			frames:             100,
			expectedFrames:     "2000",
			expectedCalls:      "20",
			expectedComponents: "2",
		},
		{
			component:          &pint,
			routines:           2,
			calls:              10,
			frames:             100,
			expectedFrames:     "4000",
			expectedCalls:      "40",
			expectedComponents: "4",
		},
	}
	testFn := func(fn metric.MeasureFunc, wg *sync.WaitGroup, calls int, frames int64) {
		for i := 0; i < calls; i++ {
			fn(frames)
		}
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			go testFn(metric.Meter(c.component, sampleRate), wg, c.calls, c.frames)
		}
		// check if no data race.
		wg.Wait()
		values := metric.Get(c.component)
		assert.Equal(t, c.expectedFrames, values[metric.FrameCounter])
		assert.Equal(t, c.expectedCalls, values[metric.CallCounter])
		assert.Equal(t, c.expectedComponents, values[metric.ComponentCounter])
	}
}

func TestUnderrun(t *testing.T) {
	type device struct{}
	underrun := metric.Underrun(device{})
	underrun()
	underrun()
	assert.Equal(t, "2", metric.Get(&device{})[metric.UnderrunCounter])
	assert.Contains(t, metric.GetAll(), "metric_test.device")
}
