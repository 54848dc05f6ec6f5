// Package events models the discrete occurrences (operational events and
// chemical injections) overlaid on the pressure views.
package events

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies the occurrence variant. The string values are the event
// type names used by the data service.
type Kind string

const (
	KindMeasurement Kind = "pressure"
	KindPurge       Kind = "purge"
	KindEquipment   Kind = "equip"
	KindNote        Kind = "note"
	KindInjection   Kind = "reagent"
	KindOther       Kind = "other"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindMeasurement, KindPurge, KindEquipment, KindNote, KindInjection, KindOther}

// ParseKind maps a service type name onto a Kind; unknown names become KindOther.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMeasurement, KindPurge, KindEquipment, KindNote, KindInjection:
		return k
	default:
		return KindOther
	}
}

// Phase is a purge-cycle stage.
type Phase string

const (
	PhaseStart Phase = "start"
	PhasePress Phase = "press"
	PhaseStop  Phase = "stop"
)

// ParsePhase normalizes a phase tag. ok is false for anything outside
// start/press/stop.
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhaseStart, PhasePress, PhaseStop:
		return p, true
	default:
		return p, false
	}
}

// Payload is the kind-specific part of an occurrence. The set of
// implementations is closed; consumers switch over the concrete types.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Readings are the pressures recorded alongside an event, when present.
type Readings struct {
	Tube *float64
	Line *float64
}

// Measurement is a manual pressure reading.
type Measurement struct {
	Readings
	Description string
}

// PurgePhase marks one stage of a venting cycle.
type PurgePhase struct {
	Readings
	Phase       Phase
	RawPhase    string
	Description string
}

// Equipment is an equipment install or change.
type Equipment struct {
	Readings
	Description string
}

// Note is a free-text operator note.
type Note struct {
	Description string
}

// Injection is a chemical reagent injection.
type Injection struct {
	Reagent     string
	Qty         float64
	Description string
}

// Other carries occurrences of any unrecognised type.
type Other struct {
	Type        string
	Description string
}

func (Measurement) Kind() Kind { return KindMeasurement }
func (PurgePhase) Kind() Kind  { return KindPurge }
func (Equipment) Kind() Kind   { return KindEquipment }
func (Note) Kind() Kind        { return KindNote }
func (Injection) Kind() Kind   { return KindInjection }
func (Other) Kind() Kind       { return KindOther }

func (Measurement) isPayload() {}
func (PurgePhase) isPayload()  {}
func (Equipment) isPayload()   {}
func (Note) isPayload()        {}
func (Injection) isPayload()   {}
func (Other) isPayload()       {}

// Occurrence is a single discrete event on a well's timeline.
type Occurrence struct {
	ID       string
	WellID   string
	Time     time.Time
	Operator string
	Payload  Payload
}

// Kind returns the payload kind, or KindOther when no payload is set.
func (o Occurrence) Kind() Kind {
	if o.Payload == nil {
		return KindOther
	}
	return o.Payload.Kind()
}

// Description returns the free-text description carried by any payload.
func (o Occurrence) Description() string {
	switch p := o.Payload.(type) {
	case Measurement:
		return p.Description
	case PurgePhase:
		return p.Description
	case Equipment:
		return p.Description
	case Note:
		return p.Description
	case Injection:
		return p.Description
	case Other:
		return p.Description
	default:
		return ""
	}
}

// Quantity returns the injected quantity for injections and 0 otherwise.
func (o Occurrence) Quantity() float64 {
	if inj, ok := o.Payload.(Injection); ok {
		return inj.Qty
	}
	return 0
}

// Label is a one-line human summary used by tooltips and exports.
func (o Occurrence) Label() string {
	switch p := o.Payload.(type) {
	case Injection:
		if p.Qty > 0 {
			return fmt.Sprintf("%s %g", p.Reagent, p.Qty)
		}
		return p.Reagent
	case PurgePhase:
		if p.Description != "" {
			return fmt.Sprintf("%s: %s", p.Phase, p.Description)
		}
		return string(p.Phase)
	case Other:
		if p.Description != "" {
			return fmt.Sprintf("%s: %s", p.Type, p.Description)
		}
		return p.Type
	default:
		return o.Description()
	}
}

// SortByTime orders occurrences by time, keeping input order for ties.
func SortByTime(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool { return occ[i].Time.Before(occ[j].Time) })
}

// FilterSince returns the occurrences with Time >= cutoff, in input order.
func FilterSince(occ []Occurrence, cutoff time.Time) []Occurrence {
	out := make([]Occurrence, 0, len(occ))
	for _, o := range occ {
		if !o.Time.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}

// Between returns the occurrences with start <= Time <= end.
func Between(occ []Occurrence, start, end time.Time) []Occurrence {
	if end.Before(start) {
		start, end = end, start
	}
	var out []Occurrence
	for _, o := range occ {
		if !o.Time.Before(start) && !o.Time.After(end) {
			out = append(out, o)
		}
	}
	return out
}

// Counts aggregates a set of occurrences for the summary panel.
type Counts struct {
	Injections   int
	InjectedQty  float64
	Purges       int
	Measurements int
	ByKind       map[Kind]int
}

// Summarize counts occurrences by kind.
func Summarize(occ []Occurrence) Counts {
	c := Counts{ByKind: make(map[Kind]int, len(Kinds))}
	for _, o := range occ {
		k := o.Kind()
		c.ByKind[k]++
		switch p := o.Payload.(type) {
		case Injection:
			c.Injections++
			c.InjectedQty += p.Qty
		case PurgePhase:
			c.Purges++
		case Measurement:
			c.Measurements++
		}
	}
	return c
}
