// Package purge derives venting cycles from purge-phase occurrences and keeps
// the per-well set of cycles a user has excluded from flow calculations.
package purge

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/welldash/internal/events"
)

// cycleNamespace scopes cycle IDs so they never collide with other UUIDv5 users.
var cycleNamespace = uuid.MustParse("6f1d2c1e-8a4b-5f7e-9c3d-2b1a0e4f6d58")

// Cycle is one start→stop venting cycle.
type Cycle struct {
	ID           string
	WellID       string
	Start        time.Time
	Press        *time.Time
	Stop         time.Time
	TotalMinutes int
	PressMinutes *int
	StopMinutes  *int
	Excluded     bool
}

// Duration returns the time between start and stop.
func (c Cycle) Duration() time.Duration {
	return c.Stop.Sub(c.Start)
}

// Pair matches purge-phase occurrences into cycles. Occurrences are grouped by
// well and processed in time order (ties keep input order):
//
//   - start opens a cycle, discarding any earlier unmatched start
//   - press while open is remembered; a later press replaces it
//   - stop while open emits a cycle and closes it
//   - stop with nothing open is ignored
//
// Anything that is not a purge phase of start/press/stop is skipped. Wells are
// emitted in ascending ID order.
func Pair(occ []events.Occurrence) []Cycle {
	byWell := make(map[string][]events.Occurrence)
	for _, o := range occ {
		p, ok := o.Payload.(events.PurgePhase)
		if !ok {
			continue
		}
		if _, valid := events.ParsePhase(string(p.Phase)); !valid {
			continue
		}
		byWell[o.WellID] = append(byWell[o.WellID], o)
	}

	wells := make([]string, 0, len(byWell))
	for w := range byWell {
		wells = append(wells, w)
	}
	sort.Strings(wells)

	var cycles []Cycle
	for _, w := range wells {
		cycles = append(cycles, pairWell(w, byWell[w])...)
	}
	return cycles
}

func pairWell(wellID string, occ []events.Occurrence) []Cycle {
	events.SortByTime(occ)

	var (
		out       []Cycle
		openStart *events.Occurrence
		press     *events.Occurrence
	)
	for i := range occ {
		o := &occ[i]
		phase, _ := events.ParsePhase(string(o.Payload.(events.PurgePhase).Phase))
		switch phase {
		case events.PhaseStart:
			openStart, press = o, nil
		case events.PhasePress:
			if openStart != nil {
				press = o
			}
		case events.PhaseStop:
			if openStart == nil {
				continue
			}
			out = append(out, newCycle(wellID, openStart, press, o))
			openStart, press = nil, nil
		}
	}
	return out
}

func newCycle(wellID string, start, press, stop *events.Occurrence) Cycle {
	c := Cycle{
		ID:           CycleID(wellID, *start, *stop),
		WellID:       wellID,
		Start:        start.Time,
		Stop:         stop.Time,
		TotalMinutes: roundMinutes(stop.Time.Sub(start.Time)),
	}
	if press != nil {
		pt := press.Time
		pm := roundMinutes(pt.Sub(start.Time))
		sm := roundMinutes(stop.Time.Sub(pt))
		c.Press, c.PressMinutes, c.StopMinutes = &pt, &pm, &sm
	}
	return c
}

// roundMinutes rounds half away from zero on the millisecond count.
func roundMinutes(d time.Duration) int {
	return int(math.Round(float64(d.Milliseconds()) / 60000))
}

// CycleID derives a stable identifier from the occurrences bounding a cycle.
// The same start and stop always yield the same ID, across reloads and
// processes.
func CycleID(wellID string, start, stop events.Occurrence) string {
	name := wellID + "|" + occurrenceKey(start) + "|" + occurrenceKey(stop)
	return uuid.NewSHA1(cycleNamespace, []byte(name)).String()
}

func occurrenceKey(o events.Occurrence) string {
	if o.ID != "" {
		return "id:" + o.ID
	}
	return "t:" + o.Time.UTC().Format(time.RFC3339Nano)
}

// ApplyExclusions marks each cycle whose ID is in excluded. IDs in excluded
// that match no cycle are ignored.
func ApplyExclusions(cycles []Cycle, excluded map[string]bool) []Cycle {
	out := make([]Cycle, len(cycles))
	for i, c := range cycles {
		c.Excluded = excluded[c.ID]
		out[i] = c
	}
	return out
}

// Included returns the cycles that are not excluded.
func Included(cycles []Cycle) []Cycle {
	var out []Cycle
	for _, c := range cycles {
		if !c.Excluded {
			out = append(out, c)
		}
	}
	return out
}
