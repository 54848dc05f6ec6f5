package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/banshee-data/welldash/internal/events"
)

// OccurrenceSet is a well's full timeline.
type OccurrenceSet struct {
	// ServerNow is the service's clock at response time; zero when absent.
	ServerNow   time.Time
	Occurrences []events.Occurrence
	Skipped     int
}

// Occurrences fetches the timeline events and reagent injections of a well.
// Entries without a readable timestamp are skipped.
func (c *Client) Occurrences(ctx context.Context, wellID string) (OccurrenceSet, error) {
	var w struct {
		ServerNow  string          `json:"server_now"`
		Events     json.RawMessage `json:"events"`
		Injections json.RawMessage `json:"injections"`
	}
	if err := c.getJSON(ctx, "occurrences", "/api/wells/"+url.PathEscape(wellID)+"/events", nil, &w); err != nil {
		return OccurrenceSet{}, err
	}
	if missing(w.Events) || missing(w.Injections) {
		return OccurrenceSet{}, fmt.Errorf("%w: occurrences: missing events or injections", ErrMalformedResponse)
	}

	evs, skippedEvents, err := events.DecodeAll(w.Events, wellID, false)
	if err != nil {
		return OccurrenceSet{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	inj, skippedInj, err := events.DecodeAll(w.Injections, wellID, true)
	if err != nil {
		return OccurrenceSet{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := OccurrenceSet{
		Occurrences: append(evs, inj...),
		Skipped:     skippedEvents + skippedInj,
	}
	if w.ServerNow != "" {
		if t, err := events.ParseTime(w.ServerNow); err == nil {
			out.ServerNow = t
		} else {
			logf("occurrences %s: ignoring server_now: %v", wellID, err)
		}
	}
	events.SortByTime(out.Occurrences)
	return out, nil
}

func missing(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
