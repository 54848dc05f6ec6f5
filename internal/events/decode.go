package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are the timestamp forms the data service emits. Naive
// timestamps are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTime parses a service timestamp.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// non-numeric quantities are treated as absent
		return nil
	}
	f.v, f.ok = v, true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

// flexID accepts a JSON string or number identifier.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = flexID(s)
	return nil
}

// Raw is the wire shape of a timeline event or injection.
type Raw struct {
	ID          flexID    `json:"id"`
	Well        string    `json:"well"`
	T           string    `json:"t"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	PurgePhase  string    `json:"purge_phase"`
	Reagent     string    `json:"reagent"`
	Qty         flexFloat `json:"qty"`
	PTube       flexFloat `json:"p_tube"`
	PLine       flexFloat `json:"p_line"`
	Operator    string    `json:"operator"`
	Username    string    `json:"username"`
}

// Decode converts a wire event into an Occurrence for wellID. Entries without
// a parseable timestamp are rejected.
func (r Raw) Decode(wellID string) (Occurrence, error) {
	t, err := ParseTime(r.T)
	if err != nil {
		return Occurrence{}, err
	}
	if r.Well != "" {
		wellID = r.Well
	}

	o := Occurrence{
		ID:       string(r.ID),
		WellID:   wellID,
		Time:     t,
		Operator: r.Operator,
	}
	if o.Operator == "" {
		o.Operator = r.Username
	}

	readings := Readings{Tube: r.PTube.ptr(), Line: r.PLine.ptr()}
	switch ParseKind(r.Type) {
	case KindMeasurement:
		o.Payload = Measurement{Readings: readings, Description: r.Description}
	case KindPurge:
		phase, _ := ParsePhase(r.PurgePhase)
		o.Payload = PurgePhase{Readings: readings, Phase: phase, RawPhase: r.PurgePhase, Description: r.Description}
	case KindEquipment:
		o.Payload = Equipment{Readings: readings, Description: r.Description}
	case KindNote:
		o.Payload = Note{Description: r.Description}
	case KindInjection:
		o.Payload = Injection{Reagent: r.Reagent, Qty: r.Qty.v, Description: r.Description}
	default:
		typ := r.Type
		if typ == "" {
			typ = string(KindOther)
		}
		o.Payload = Other{Type: typ, Description: r.Description}
	}
	return o, nil
}

// DecodeInjection converts a wire injection entry. Injections carry no type
// field on the wire.
func (r Raw) DecodeInjection(wellID string) (Occurrence, error) {
	r.Type = string(KindInjection)
	return r.Decode(wellID)
}

// DecodeAll decodes a JSON array of wire events, skipping entries without a
// usable timestamp. skipped reports how many were dropped.
func DecodeAll(data []byte, wellID string, injections bool) (occ []Occurrence, skipped int, err error) {
	var raws []Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, 0, fmt.Errorf("decode events: %w", err)
	}
	for _, r := range raws {
		var o Occurrence
		var derr error
		if injections {
			o, derr = r.DecodeInjection(wellID)
		} else {
			o, derr = r.Decode(wellID)
		}
		if derr != nil {
			skipped++
			continue
		}
		occ = append(occ, o)
	}
	return occ, skipped, nil
}
