package view

import (
	"sort"
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/series"
)

// Dataset labels shared with the renderers and exports.
const (
	LabelDelta          = "ΔP"
	LabelEvents         = "Events"
	LabelInjections     = "Injections"
	LabelCycles         = "Purge cycles"
	LabelExcludedCycles = "Excluded cycles"
)

// Data is the domain content of one completed load. Secondary series are
// drawn against a second value axis and are not read by tooltips, range
// statistics or exports.
type Data struct {
	Dense       []*series.Series
	Secondary   []*series.Series
	Occurrences []events.Occurrence
	Cycles      []purge.Cycle
}

// BuildDatasets maps loaded data onto the datasets a view of the given kind
// renders, and returns the dense series its tooltips read values from.
// Sparse markers are anchored on the first dense series so they sit on the
// curve they annotate.
func BuildDatasets(kind Kind, d Data) ([]interaction.Dataset, []*series.Series) {
	switch kind {
	case KindPressure:
		out := denseDatasets(d.Dense)
		var anchor *series.Series
		if len(d.Dense) > 0 {
			anchor = d.Dense[0]
		}
		evs, inj := splitInjections(d.Occurrences)
		out = append(out,
			occurrenceDataset(LabelEvents, evs, anchor),
			occurrenceDataset(LabelInjections, inj, anchor),
		)
		return out, d.Dense

	case KindDelta:
		if len(d.Dense) < 2 {
			return nil, nil
		}
		diff := series.Difference(LabelDelta, d.Dense[0], d.Dense[1])
		evs, _ := splitInjections(d.Occurrences)
		out := denseDatasets([]*series.Series{diff})
		out = append(out, occurrenceDataset(LabelEvents, evs, diff))
		return out, []*series.Series{diff}

	case KindFlowRate:
		out := denseDatasets(d.Dense)
		for _, ds := range denseDatasets(d.Secondary) {
			ds.Secondary = true
			out = append(out, ds)
		}
		var anchor *series.Series
		if len(d.Dense) > 0 {
			anchor = d.Dense[0]
		}
		var included, excluded []purge.Cycle
		for _, c := range d.Cycles {
			if c.Excluded {
				excluded = append(excluded, c)
			} else {
				included = append(included, c)
			}
		}
		out = append(out,
			cycleDataset(LabelCycles, included, anchor),
			cycleDataset(LabelExcludedCycles, excluded, anchor),
		)
		return out, d.Dense

	case KindEvents:
		byKind := make(map[events.Kind][]events.Occurrence)
		for _, o := range d.Occurrences {
			byKind[o.Kind()] = append(byKind[o.Kind()], o)
		}
		out := make([]interaction.Dataset, 0, len(events.Kinds))
		for lane, k := range events.Kinds {
			ds := occurrenceDataset(string(k), byKind[k], nil)
			for i := range ds.Points {
				ds.Points[i].Value = float64(lane + 1)
			}
			out = append(out, ds)
		}
		return out, nil
	}
	return nil, nil
}

func denseDatasets(dense []*series.Series) []interaction.Dataset {
	out := make([]interaction.Dataset, 0, len(dense))
	for _, s := range dense {
		ds := interaction.Dataset{Label: s.Name, Density: interaction.Dense}
		ds.Points = make([]interaction.Point, len(s.Samples))
		for i, p := range s.Samples {
			ds.Points[i] = interaction.Point{Time: p.Time, Value: p.Value}
		}
		out = append(out, ds)
	}
	return out
}

func splitInjections(occ []events.Occurrence) (other, injections []events.Occurrence) {
	for _, o := range occ {
		if _, ok := o.Payload.(events.Injection); ok {
			injections = append(injections, o)
		} else {
			other = append(other, o)
		}
	}
	return other, injections
}

func occurrenceDataset(label string, occ []events.Occurrence, anchor *series.Series) interaction.Dataset {
	sorted := append([]events.Occurrence(nil), occ...)
	events.SortByTime(sorted)

	ds := interaction.Dataset{Label: label, Density: interaction.Sparse}
	ds.Points = make([]interaction.Point, len(sorted))
	for i := range sorted {
		o := &sorted[i]
		ds.Points[i] = interaction.Point{Time: o.Time, Value: anchorValue(anchor, o), Occurrence: o}
	}
	return ds
}

func cycleDataset(label string, cycles []purge.Cycle, anchor *series.Series) interaction.Dataset {
	sorted := append([]purge.Cycle(nil), cycles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	ds := interaction.Dataset{Label: label, Density: interaction.Sparse}
	ds.Points = make([]interaction.Point, len(sorted))
	for i := range sorted {
		c := &sorted[i]
		v, _ := valueOn(anchor, c.Start)
		ds.Points[i] = interaction.Point{Time: c.Start, Value: v, Cycle: c}
	}
	return ds
}

// anchorValue places an occurrence marker: on the anchor curve when there is
// one, else at the tube reading the occurrence carries, else at zero.
func anchorValue(anchor *series.Series, o *events.Occurrence) float64 {
	if v, ok := valueOn(anchor, o.Time); ok {
		return v
	}
	if r, ok := readings(o.Payload); ok && r.Tube != nil {
		return *r.Tube
	}
	return 0
}

// valueOn reads s at t. A single-sample series reports that sample.
func valueOn(s *series.Series, t time.Time) (float64, bool) {
	switch s.Len() {
	case 0:
		return 0, false
	case 1:
		return s.Samples[0].Value, true
	}
	v, err := s.ValueAt(t)
	return v, err == nil
}

func readings(p events.Payload) (events.Readings, bool) {
	switch v := p.(type) {
	case events.Measurement:
		return v.Readings, true
	case events.PurgePhase:
		return v.Readings, true
	case events.Equipment:
		return v.Readings, true
	default:
		return events.Readings{}, false
	}
}
