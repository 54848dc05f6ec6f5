package rangestats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/series"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func hourly(t *testing.T, name string, vals ...float64) *series.Series {
	t.Helper()
	samples := make([]series.Sample, len(vals))
	for i, v := range vals {
		samples[i] = series.Sample{Time: t0.Add(time.Duration(i) * time.Hour), Value: v}
	}
	s, err := series.New(name, samples)
	require.NoError(t, err)
	return s
}

func TestCompute(t *testing.T) {
	tube := hourly(t, "Ptr", 10, 11, 12, 13)
	line := hourly(t, "Pshl", 4, 4, 4, 4)

	sel := interaction.NewSelection(t0.Add(2*time.Hour), t0.Add(time.Hour))
	r, err := Compute([]*series.Series{tube, line}, sel)
	require.NoError(t, err)
	require.Len(t, r.Series, 2)

	assert.Equal(t, Summary{Name: "Ptr", Count: 2, Min: 11, Max: 12, Mean: 11.5, Median: 11.5}, r.Series[0])
	assert.Equal(t, Summary{Name: "Pshl", Count: 2, Min: 4, Max: 4, Mean: 4, Median: 4}, r.Series[1])
	assert.True(t, r.HasDelta)
	assert.InDelta(t, 7.5, r.MeanDelta, 1e-9)
	assert.Equal(t, t0.Add(time.Hour), r.Start)
}

func TestComputeEmptyRange(t *testing.T) {
	tube := hourly(t, "Ptr", 10, 11)
	sel := interaction.NewSelection(t0.Add(10*time.Hour), t0.Add(11*time.Hour))

	_, err := Compute([]*series.Series{tube}, sel)
	assert.True(t, errors.Is(err, ErrNoDataInRange))
	assert.Equal(t, "no data in range", err.Error())

	_, err = Compute(nil, sel)
	assert.ErrorIs(t, err, ErrNoDataInRange)
}

func TestComputeSingleSeriesHasNoDelta(t *testing.T) {
	tube := hourly(t, "Ptr", 1, 2, 3)
	r, err := Compute([]*series.Series{tube}, interaction.NewSelection(t0, t0.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.False(t, r.HasDelta)
	assert.Equal(t, 2.0, r.Series[0].Median)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"single", []float64{7}, 7},
		{"odd", []float64{5, 1, 3}, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]float64(nil), tt.in...)
			assert.Equal(t, tt.want, median(in))
			assert.Equal(t, tt.in, in, "input must not be reordered")
		})
	}
}

func TestThreshold(t *testing.T) {
	s := hourly(t, "ΔP", 1, 2, 3, 4, 5)

	r, err := Threshold(s, 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, r.Current)
	assert.Equal(t, 1.0, r.Min)
	assert.Equal(t, 5.0, r.Max)
	assert.Equal(t, 3.0, r.Mean)
	assert.Equal(t, 3.0, r.Median)
	assert.InDelta(t, 60, r.PercentAbove, 1e-9)
	assert.InDelta(t, 40, r.PercentBelow, 1e-9)
	assert.InDelta(t, 2.4, r.HoursAbove, 1e-9)
	assert.InDelta(t, 1.6, r.HoursBelow, 1e-9)
}

func TestThresholdSingleSample(t *testing.T) {
	r, err := Threshold(hourly(t, "ΔP", 9), 5)
	require.NoError(t, err)
	assert.Equal(t, 100.0, r.PercentAbove)
	assert.Zero(t, r.HoursAbove)
	assert.Zero(t, r.HoursBelow)
}

func TestThresholdEmpty(t *testing.T) {
	_, err := Threshold(&series.Series{Name: "ΔP"}, 5)
	assert.ErrorIs(t, err, ErrNoDataInRange)

	_, err = Threshold(nil, 5)
	assert.ErrorIs(t, err, ErrNoDataInRange)
}
