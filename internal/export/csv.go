package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/series"
)

// bom marks the file as UTF-8 for spreadsheet applications.
const bom = "\ufeff"

// timeLayout is the day-first layout operators read exports in.
const timeLayout = "02.01.2006 15:04"

// EventsHeading introduces the events section of a table.
const EventsHeading = "Events in range"

// Table is the content of a delimited text export.
type Table struct {
	WellID      string
	Selection   interaction.Selection
	Dense       []*series.Series
	Occurrences []events.Occurrence
	// Location formats timestamps; nil means UTC.
	Location *time.Location
}

// CSVFilename names a table export after its well and selected dates.
func CSVFilename(wellID string, sel interaction.Selection) string {
	return fmt.Sprintf("pressure_%s_%s_%s.csv", sanitize(wellID),
		sel.Start.UTC().Format("2006-01-02"), sel.End.UTC().Format("2006-01-02"))
}

// WriteCSV writes t as ';'-separated text with a UTF-8 BOM. Each dense
// timestamp inside the selection gets one row carrying every dense value and,
// with two or more dense series, their first-minus-second difference. The
// occurrences inside the selection follow in their own section.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	withDelta := len(t.Dense) >= 2

	header := []string{"Time"}
	for _, s := range t.Dense {
		header = append(header, s.Name)
	}
	if withDelta {
		header = append(header, "ΔP")
	}
	header = append(header, "Event", "Type", "Qty")
	width := len(header)

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, ts := range rowTimes(t.Dense, t.Selection) {
		row := make([]string, 0, width)
		row = append(row, ts.In(loc).Format(timeLayout))
		vals := make([]*float64, len(t.Dense))
		for i, s := range t.Dense {
			if v, ok := s.At(ts); ok {
				vals[i] = &v
				row = append(row, formatValue(v))
			} else {
				row = append(row, "")
			}
		}
		if withDelta {
			if vals[0] != nil && vals[1] != nil {
				row = append(row, formatValue(*vals[0]-*vals[1]))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, "", "", "")
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	occ := events.Between(t.Occurrences, t.Selection.Start, t.Selection.End)
	if len(occ) > 0 {
		events.SortByTime(occ)
		if err := cw.Write(make([]string, width)); err != nil {
			return err
		}
		heading := make([]string, width)
		heading[0] = EventsHeading
		if err := cw.Write(heading); err != nil {
			return err
		}
		for _, o := range occ {
			row := make([]string, width)
			row[0] = o.Time.In(loc).Format(timeLayout)
			row[width-3] = o.Label()
			row[width-2] = string(o.Kind())
			if q := o.Quantity(); q != 0 {
				row[width-1] = strconv.FormatFloat(q, 'f', -1, 64)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders t and saves it through sink.
func CSV(sink Sink, t Table) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return "", fmt.Errorf("render csv: %w", err)
	}
	return sink.Save(CSVFilename(t.WellID, t.Selection), buf.Bytes())
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// rowTimes is the sorted union of dense timestamps inside sel.
func rowTimes(dense []*series.Series, sel interaction.Selection) []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range dense {
		for _, p := range s.Between(sel.Start, sel.End) {
			seen[p.Time.UnixNano()] = p.Time
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
