package waveform

import "sort"

// Stream is a bounded history of a signal. Samples are kept in a fixed number
// of segments, each covering at most maxSpan seconds. When a new segment is
// needed and the limit is reached, the oldest one is evicted.
//
// Consecutive segments share their boundary sample, so evaluation between
// segments never falls into a gap.
type Stream struct {
	segments    []Waveform
	maxSegments int
	maxSpan     float64
}

// NewStream returns a stream which remembers roughly maxSegments*maxSpan
// seconds of signal.
func NewStream(maxSegments int, maxSpan float64) *Stream {
	if maxSegments < 1 {
		maxSegments = 1
	}
	return &Stream{
		segments:    make([]Waveform, 0, maxSegments),
		maxSegments: maxSegments,
		maxSpan:     maxSpan,
	}
}

// AppendSample adds sample to the end of stream. Sample time must not be
// before the stream end.
func (s *Stream) AppendSample(sample Sample) {
	if len(s.segments) == 0 {
		s.segments = append(s.segments, Waveform{Samples: []Sample{sample}})
		return
	}
	tail := &s.segments[len(s.segments)-1]
	if sample.Time-tail.Start() <= s.maxSpan {
		tail.Append(sample)
		return
	}
	last := tail.Samples[len(tail.Samples)-1]
	if len(s.segments) == s.maxSegments {
		copy(s.segments, s.segments[1:])
		s.segments[len(s.segments)-1] = Waveform{}
		s.segments = s.segments[:len(s.segments)-1]
	}
	s.segments = append(s.segments, Waveform{Samples: []Sample{last, sample}})
}

// Append adds all samples of waveform to the stream. A sample which
// duplicates the current end of stream is skipped.
func (s *Stream) Append(w Waveform) {
	for i, sample := range w.Samples {
		if i == 0 && s.Len() > 0 && sample.Time == s.End() {
			continue
		}
		s.AppendSample(sample)
	}
}

// EvaluateAt returns interpolated amplitude at time t. Time outside of
// remembered history results in silence and false.
func (s *Stream) EvaluateAt(t float64) (float64, bool) {
	i := sort.Search(len(s.segments), func(i int) bool { return s.segments[i].End() >= t })
	if i == len(s.segments) {
		return 0, false
	}
	return s.segments[i].EvaluateAt(t)
}

// Start returns time of the oldest remembered sample.
func (s *Stream) Start() float64 {
	if len(s.segments) == 0 {
		return 0
	}
	return s.segments[0].Start()
}

// End returns time of the latest sample.
func (s *Stream) End() float64 {
	if len(s.segments) == 0 {
		return 0
	}
	return s.segments[len(s.segments)-1].End()
}

// Len returns number of remembered samples. Shared boundary samples are
// counted once.
func (s *Stream) Len() int {
	n := 0
	for i, seg := range s.segments {
		n += seg.Len()
		if i > 0 {
			n--
		}
	}
	return n
}

// MaxSpan returns maximum time span of a single segment.
func (s *Stream) MaxSpan() float64 {
	return s.maxSpan
}

// SetMaxSpan changes span of segments started from now on.
func (s *Stream) SetMaxSpan(span float64) {
	s.maxSpan = span
}

// Segments returns number of segments currently held.
func (s *Stream) Segments() int {
	return len(s.segments)
}

// Window returns waveform of remembered samples within [start, end].
func (s *Stream) Window(start, end float64) Waveform {
	var w Waveform
	for i, seg := range s.segments {
		if seg.End() < start || seg.Start() > end {
			continue
		}
		for j, sample := range seg.Samples {
			if i > 0 && j == 0 && w.Len() > 0 {
				continue
			}
			if sample.Time >= start && sample.Time <= end {
				w.Append(sample)
			}
		}
	}
	return w
}
