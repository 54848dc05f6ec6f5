package chartsync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/timeutil"
)

var serverNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

func occAt(id string, ago time.Duration, p events.Payload) events.Occurrence {
	return events.Occurrence{ID: id, WellID: "w1", Time: serverNow.Add(-ago), Payload: p}
}

func sampleOccurrences() []events.Occurrence {
	day := 24 * time.Hour
	return []events.Occurrence{
		occAt("old", 20*day, events.Note{}),
		occAt("inj-9d", 9*day, events.Injection{Reagent: "m", Qty: 4}),
		occAt("edge-7d", 7*day, events.Measurement{}),
		occAt("inj-2d", 2*day, events.Injection{Reagent: "m", Qty: 1.5}),
		occAt("purge-1d", day, events.PurgePhase{Phase: events.PhaseStart}),
		occAt("now", 0, events.Measurement{}),
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *timeutil.MockClock) {
	t.Helper()
	// local clock is skewed a year behind the server
	local := timeutil.NewMockClock(serverNow.AddDate(-1, 0, 0))
	c, err := NewCoordinator(Window{PeriodDays: 7, AggregationMinutes: 5}, local)
	require.NoError(t, err)
	c.SetOccurrences(sampleOccurrences(), serverNow)
	return c, local
}

func ids(occ []events.Occurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.ID
	}
	return out
}

func TestNewCoordinator_RejectsInvalid(t *testing.T) {
	_, err := NewCoordinator(Window{PeriodDays: 0, AggregationMinutes: 5}, nil)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCoordinator_FiltersFromServerNow(t *testing.T) {
	c, _ := newTestCoordinator(t)

	u := c.Current()
	assert.True(t, u.ReferenceNow.Equal(serverNow))
	assert.True(t, u.Cutoff.Equal(serverNow.Add(-7*24*time.Hour)))
	assert.Equal(t, []string{"edge-7d", "inj-2d", "purge-1d", "now"}, ids(u.Occurrences))

	assert.Equal(t, 1, u.Counts.Injections)
	assert.InDelta(t, 1.5, u.Counts.InjectedQty, 1e-12)
	assert.Equal(t, 1, u.Counts.Purges)
	assert.Equal(t, 2, u.Counts.Measurements)
}

func TestCoordinator_LocalClockFallback(t *testing.T) {
	local := timeutil.NewMockClock(serverNow)
	c, err := NewCoordinator(Window{PeriodDays: 1, AggregationMinutes: 5}, local)
	require.NoError(t, err)
	c.SetOccurrences(sampleOccurrences(), time.Time{})

	assert.Equal(t, []string{"purge-1d", "now"}, ids(c.Current().Occurrences))
}

func TestCoordinator_SetWindowPartialUpdate(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var got []WindowUpdate
	c.Subscribe(func(u WindowUpdate) { got = append(got, u) })

	require.NoError(t, c.SetWindow(WindowChange{IntervalMinutes: Ptr(30)}))
	require.Len(t, got, 1)
	assert.Equal(t, Window{PeriodDays: 7, AggregationMinutes: 30}, got[0].Window)

	require.NoError(t, c.SetWindow(WindowChange{Days: Ptr(30)}))
	require.Len(t, got, 2)
	assert.Equal(t, Window{PeriodDays: 30, AggregationMinutes: 30}, got[1].Window)
	assert.Len(t, got[1].Occurrences, 6)
}

func TestCoordinator_SetWindowInvalidKeepsState(t *testing.T) {
	c, _ := newTestCoordinator(t)
	calls := 0
	c.Subscribe(func(WindowUpdate) { calls++ })

	for _, change := range []WindowChange{
		{Days: Ptr(0)},
		{Days: Ptr(-3)},
		{IntervalMinutes: Ptr(0)},
	} {
		err := c.SetWindow(change)
		assert.True(t, errors.Is(err, ErrInvalidWindow))
	}
	assert.Zero(t, calls)
	assert.Equal(t, Window{PeriodDays: 7, AggregationMinutes: 5}, c.Window())
}

func TestCoordinator_FilterIsMonotonic(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var prev map[string]bool
	for _, d := range []int{1, 2, 3, 7, 8, 14, 30, 365} {
		require.NoError(t, c.SetWindow(WindowChange{Days: Days(d)}))
		cur := make(map[string]bool)
		for _, o := range c.Current().Occurrences {
			cur[o.ID] = true
		}
		for id := range prev {
			assert.True(t, cur[id], "days=%d lost %s", d, id)
		}
		prev = cur
	}
}

func TestCoordinator_SubscribersInOrderAndUnsubscribe(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var order []string
	c.Subscribe(func(WindowUpdate) { order = append(order, "pressure") })
	unsub := c.Subscribe(func(WindowUpdate) { order = append(order, "delta") })
	c.Subscribe(func(WindowUpdate) { order = append(order, "flow") })

	require.NoError(t, c.SetWindow(WindowChange{Days: Ptr(3)}))
	assert.Equal(t, []string{"pressure", "delta", "flow"}, order)

	unsub()
	order = nil
	require.NoError(t, c.SetWindow(WindowChange{Days: Ptr(4)}))
	assert.Equal(t, []string{"pressure", "flow"}, order)
}

func TestCoordinator_ChangeDuringBroadcastRunsAfter(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var seen []int
	first := true
	c.Subscribe(func(u WindowUpdate) {
		seen = append(seen, u.PeriodDays)
		if first {
			first = false
			require.NoError(t, c.SetWindow(WindowChange{Days: Ptr(14)}))
		}
	})
	c.Subscribe(func(u WindowUpdate) { seen = append(seen, -u.PeriodDays) })

	require.NoError(t, c.SetWindow(WindowChange{Days: Ptr(3)}))
	// the whole first broadcast completes before the nested change lands
	assert.Equal(t, []int{3, -3, 14, -14}, seen)
}

func TestCoordinator_ReferenceAdvancesWithLocalClock(t *testing.T) {
	c, local := newTestCoordinator(t)
	local.Advance(2 * time.Hour)
	assert.True(t, c.ReferenceNow().Equal(serverNow.Add(2*time.Hour)))
}
