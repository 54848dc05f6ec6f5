// Package trend fits a straight line to a regularly sampled sub-range and
// projects when it will reach a threshold.
package trend

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when fewer than two values are supplied.
	ErrInsufficientData = errors.New("trend: at least two values required")
	// ErrInvalidCadence is returned for a non-positive sample cadence.
	ErrInvalidCadence = errors.New("trend: cadence must be positive")
)

// slopeEpsilon is the per-day slope below which a line is treated as flat.
const slopeEpsilon = 1e-12

// Direction is the sign of a fitted slope.
type Direction int

const (
	Flat Direction = iota
	Rising
	Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "flat"
	}
}

// Model is an ordinary least-squares line over (sample index, value).
// Intercept is the fitted value at the first sample.
type Model struct {
	SlopePerSample float64
	SlopePerDay    float64
	Intercept      float64
	RSquared       float64
	DurationHours  float64
	CadenceMinutes float64
	Samples        int
}

// Fit regresses values against their index. cadenceMinutes is the spacing
// between consecutive values. RSquared is 0 when the values are all equal.
func Fit(values []float64, cadenceMinutes float64) (Model, error) {
	if len(values) < 2 {
		return Model{}, ErrInsufficientData
	}
	if cadenceMinutes <= 0 || math.IsNaN(cadenceMinutes) || math.IsInf(cadenceMinutes, 0) {
		return Model{}, ErrInvalidCadence
	}

	xs := make([]float64, len(values))
	floats.Span(xs, 0, float64(len(values)-1))

	alpha, beta := stat.LinearRegression(xs, values, nil, false)

	mean := stat.Mean(values, nil)
	ssTot := 0.0
	for _, v := range values {
		ssTot += (v - mean) * (v - mean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = stat.RSquared(xs, values, nil, alpha, beta)
	}

	samplesPerDay := 1440 / cadenceMinutes
	return Model{
		SlopePerSample: beta,
		SlopePerDay:    beta * samplesPerDay,
		Intercept:      alpha,
		RSquared:       r2,
		DurationHours:  float64(len(values)-1) * cadenceMinutes / 60,
		CadenceMinutes: cadenceMinutes,
		Samples:        len(values),
	}, nil
}

// Direction reports whether the line rises, falls or is flat.
func (m Model) Direction() Direction {
	switch {
	case math.Abs(m.SlopePerDay) < slopeEpsilon:
		return Flat
	case m.SlopePerDay > 0:
		return Rising
	default:
		return Falling
	}
}

// ValueAtHours evaluates the line h hours after the first sample.
func (m Model) ValueAtHours(h float64) float64 {
	return m.Intercept + m.SlopePerDay*h/24
}

// PredictHoursToThreshold returns the hours remaining, measured from
// elapsedHours after the first sample, until the line equals threshold.
// ok is false for a flat line, or when the line at elapsedHours has already
// reached or passed threshold in its direction of travel.
func PredictHoursToThreshold(m Model, elapsedHours, threshold float64) (hours float64, ok bool) {
	dir := m.Direction()
	if dir == Flat {
		return 0, false
	}

	current := m.ValueAtHours(elapsedHours)
	if dir == Rising && current >= threshold {
		return 0, false
	}
	if dir == Falling && current <= threshold {
		return 0, false
	}

	crossing := (threshold - m.Intercept) / m.SlopePerDay * 24
	remaining := crossing - elapsedHours
	if remaining <= 0 || math.IsInf(remaining, 0) || math.IsNaN(remaining) {
		return 0, false
	}
	return remaining, true
}
