// Package series holds dense, time-ordered sensor series and the point
// estimation used to read a value at an arbitrary instant.
package series

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrDuplicateTime is returned when two samples share a timestamp.
	ErrDuplicateTime = errors.New("series: duplicate sample time")
	// ErrTooFewSamples is returned by ValueAt on a series with fewer than two samples.
	ErrTooFewSamples = errors.New("series: at least two samples required")
)

// Sample is one measurement of a dense series.
type Sample struct {
	Time  time.Time
	Value float64
}

// Series is a named, strictly time-ordered set of samples.
type Series struct {
	Name    string
	Samples []Sample
}

// New sorts samples by time and rejects duplicate timestamps.
// The input slice is not modified.
func New(name string, samples []Sample) (*Series, error) {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Time.Equal(sorted[i-1].Time) {
			return nil, fmt.Errorf("%w: %s at %s", ErrDuplicateTime, name, sorted[i].Time.Format(time.RFC3339))
		}
	}
	return &Series{Name: name, Samples: sorted}, nil
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// ValueAt estimates the series value at t by linear interpolation between the
// bracketing samples. Outside the series range the interpolation ratio is
// clamped to [0,1], so the first or last value is returned instead of an
// extrapolation.
func (s *Series) ValueAt(t time.Time) (float64, error) {
	n := s.Len()
	if n < 2 {
		return 0, ErrTooFewSamples
	}

	// first index with Time > t; the bracket is [hi-1, hi]
	hi := sort.Search(n, func(i int) bool { return s.Samples[i].Time.After(t) })
	lo := hi - 1
	if lo < 0 {
		lo = 0
	}
	if lo > n-2 {
		lo = n - 2
	}

	p0, p1 := s.Samples[lo], s.Samples[lo+1]
	span := p1.Time.Sub(p0.Time)
	if span == 0 {
		return p0.Value, nil
	}

	ratio := float64(t.Sub(p0.Time)) / float64(span)
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	return p0.Value + (p1.Value-p0.Value)*ratio, nil
}

// At returns the sample recorded exactly at t, if any.
func (s *Series) At(t time.Time) (float64, bool) {
	n := s.Len()
	i := sort.Search(n, func(i int) bool { return !s.Samples[i].Time.Before(t) })
	if i < n && s.Samples[i].Time.Equal(t) {
		return s.Samples[i].Value, true
	}
	return 0, false
}

// Between returns the samples with start <= Time <= end. The result shares
// the backing array with s.
func (s *Series) Between(start, end time.Time) []Sample {
	if end.Before(start) {
		start, end = end, start
	}
	n := s.Len()
	lo := sort.Search(n, func(i int) bool { return !s.Samples[i].Time.Before(start) })
	hi := sort.Search(n, func(i int) bool { return s.Samples[i].Time.After(end) })
	if lo >= hi {
		return nil
	}
	return s.Samples[lo:hi]
}

// Bounds returns the first and last sample times. ok is false for an empty series.
func (s *Series) Bounds() (first, last time.Time, ok bool) {
	n := s.Len()
	if n == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.Samples[0].Time, s.Samples[n-1].Time, true
}

// Values returns the sample values in time order.
func (s *Series) Values() []float64 {
	out := make([]float64, s.Len())
	for i, p := range s.Samples {
		out[i] = p.Value
	}
	return out
}

// Difference returns a-b evaluated at every timestamp present in both series.
func Difference(name string, a, b *Series) *Series {
	out := &Series{Name: name}
	for _, p := range a.Samples {
		if v, ok := b.At(p.Time); ok {
			out.Samples = append(out.Samples, Sample{Time: p.Time, Value: p.Value - v})
		}
	}
	return out
}
