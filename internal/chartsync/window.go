// Package chartsync keeps independently rendered views consistent: the
// Coordinator owns the global time window and the ViewportBus mirrors
// pan/zoom gestures between peer views.
package chartsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/monitoring"
	"github.com/banshee-data/welldash/internal/timeutil"
)

// ErrInvalidWindow is returned when a window change carries a non-positive field.
var ErrInvalidWindow = errors.New("chartsync: period and interval must be positive")

var logf = monitoring.Component("coordinator")

// Window is the dashboard-wide period filter and aggregation interval.
type Window struct {
	PeriodDays         int
	AggregationMinutes int
}

// Period returns the window length as a duration.
func (w Window) Period() time.Duration {
	return time.Duration(w.PeriodDays) * 24 * time.Hour
}

func (w Window) valid() bool {
	return w.PeriodDays > 0 && w.AggregationMinutes > 0
}

// WindowChange names the fields to update; nil fields keep their value.
type WindowChange struct {
	Days            *int
	IntervalMinutes *int
}

// Ptr is a convenience for building a WindowChange.
func Ptr(v int) *int { return &v }

// WindowUpdate is published to subscribers after every recompute.
type WindowUpdate struct {
	Window
	ReferenceNow time.Time
	Cutoff       time.Time
	Occurrences  []events.Occurrence
	Counts       events.Counts
}

type subscription struct {
	id int
	fn func(WindowUpdate)
}

// Coordinator is the single source of truth for the time window. It is
// created once per session and passed to every view. Not safe for concurrent
// use; all calls come from the session loop.
type Coordinator struct {
	clock  *timeutil.ReferenceClock
	window Window
	all    []events.Occurrence

	subs    []subscription
	nextSub int

	// changes requested by a subscriber while a broadcast is running are
	// applied after it finishes
	publishing bool
	deferred   []func()
}

// NewCoordinator returns a coordinator with the initial window. A nil clock
// uses the real clock.
func NewCoordinator(initial Window, clock timeutil.Clock) (*Coordinator, error) {
	if !initial.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidWindow, initial)
	}
	return &Coordinator{
		clock:  timeutil.NewReferenceClock(clock),
		window: initial,
	}, nil
}

// Window returns the current window.
func (c *Coordinator) Window() Window {
	return c.window
}

// ReferenceNow returns the server-preferred current time.
func (c *Coordinator) ReferenceNow() time.Time {
	return c.clock.Now()
}

// Bounds returns the cutoff and reference time the current window implies.
func (c *Coordinator) Bounds() (cutoff, now time.Time) {
	now = c.clock.Now()
	return now.Add(-c.window.Period()), now
}

// Subscribe registers fn for every published update and returns a function
// that removes it. Subscribers run in registration order.
func (c *Coordinator) Subscribe(fn func(WindowUpdate)) (unsubscribe func()) {
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// SetOccurrences replaces the full occurrence set and the server's notion of
// now (zero keeps the local clock), then republishes.
func (c *Coordinator) SetOccurrences(occ []events.Occurrence, serverNow time.Time) {
	c.run(func() {
		c.all = append([]events.Occurrence(nil), occ...)
		events.SortByTime(c.all)
		c.clock.SetServerNow(serverNow)
		c.publish()
	})
}

// SetWindow applies the provided fields and republishes. An invalid change
// leaves the window untouched.
func (c *Coordinator) SetWindow(change WindowChange) error {
	next := c.window
	if change.Days != nil {
		next.PeriodDays = *change.Days
	}
	if change.IntervalMinutes != nil {
		next.AggregationMinutes = *change.IntervalMinutes
	}
	if !next.valid() {
		return fmt.Errorf("%w: days=%d interval=%d", ErrInvalidWindow, next.PeriodDays, next.AggregationMinutes)
	}
	c.run(func() {
		// re-read: an earlier deferred change may have landed first
		if change.Days != nil {
			c.window.PeriodDays = *change.Days
		}
		if change.IntervalMinutes != nil {
			c.window.AggregationMinutes = *change.IntervalMinutes
		}
		c.publish()
	})
	return nil
}

// Current computes the update for the present window without publishing it.
func (c *Coordinator) Current() WindowUpdate {
	cutoff, now := c.Bounds()
	visible := events.FilterSince(c.all, cutoff)
	return WindowUpdate{
		Window:       c.window,
		ReferenceNow: now,
		Cutoff:       cutoff,
		Occurrences:  visible,
		Counts:       events.Summarize(visible),
	}
}

func (c *Coordinator) run(fn func()) {
	if c.publishing {
		c.deferred = append(c.deferred, fn)
		return
	}
	fn()
	for len(c.deferred) > 0 {
		next := c.deferred[0]
		c.deferred = c.deferred[1:]
		next()
	}
}

func (c *Coordinator) publish() {
	u := c.Current()
	logf("window days=%d interval=%d cutoff=%s visible=%d/%d",
		u.PeriodDays, u.AggregationMinutes, u.Cutoff.Format(time.RFC3339), len(u.Occurrences), len(c.all))

	c.publishing = true
	defer func() { c.publishing = false }()
	subs := append([]subscription(nil), c.subs...)
	for _, s := range subs {
		s.fn(u)
	}
}
