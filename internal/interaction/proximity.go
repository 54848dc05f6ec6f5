// Package interaction answers pointer queries against a view's datasets and
// runs the cursor protocol used for locking and range selection.
package interaction

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/welldash/internal/events"
	"github.com/banshee-data/welldash/internal/purge"
)

// DefaultRadius is the sparse capture radius in pixels.
const DefaultRadius = 60.0

// Axis converts between time and horizontal pixel position. It is supplied
// by the rendering surface.
type Axis interface {
	PixelForTime(t time.Time) float64
	TimeForPixel(px float64) time.Time
}

// Density selects the matching rule applied to a dataset.
type Density int

const (
	// Dense datasets contribute their single nearest point.
	Dense Density = iota
	// Sparse datasets contribute every point inside the capture radius.
	Sparse
)

// Point is one rendered point. Sparse markers carry the occurrence or
// purge cycle they stand for.
type Point struct {
	Time       time.Time
	Value      float64
	Occurrence *events.Occurrence
	Cycle      *purge.Cycle
}

// Dataset is a rendered series as seen by the pointer. Points must be in
// time order. Secondary datasets are plotted against a second value axis.
type Dataset struct {
	Label     string
	Density   Density
	Hidden    bool
	Secondary bool
	Points    []Point
}

// Match is one point picked by a query.
type Match struct {
	Dataset    int
	Label      string
	Density    Density
	Secondary  bool
	Index      int
	Point      Point
	DistancePx float64
}

// ProximityQuery merges dense nearest-point and sparse radius matching.
type ProximityQuery struct {
	radius float64
}

// NewProximityQuery returns a query with DefaultRadius.
func NewProximityQuery() *ProximityQuery {
	return &ProximityQuery{radius: DefaultRadius}
}

// Radius returns the capture radius in pixels.
func (q *ProximityQuery) Radius() float64 {
	return q.radius
}

// SetRadius changes the capture radius. Non-positive or non-finite values are
// ignored and the current radius kept; the return value reports whether the
// radius changed.
func (q *ProximityQuery) SetRadius(r float64) bool {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return false
	}
	q.radius = r
	return true
}

// Query returns the matches for a pointer at horizontal pixel pointerPx.
// Hidden datasets are skipped. Each dense dataset yields at most one match;
// ties go to the earlier point. Sparse datasets yield every point within the
// radius, in time order.
func (q *ProximityQuery) Query(axis Axis, datasets []Dataset, pointerPx float64) []Match {
	var out []Match
	for di, ds := range datasets {
		if ds.Hidden || len(ds.Points) == 0 {
			continue
		}
		switch ds.Density {
		case Dense:
			if m, ok := nearest(axis, ds, pointerPx); ok {
				m.Dataset = di
				out = append(out, m)
			}
		case Sparse:
			for i, p := range ds.Points {
				d := math.Abs(axis.PixelForTime(p.Time) - pointerPx)
				if d <= q.radius {
					out = append(out, Match{Dataset: di, Label: ds.Label, Density: Sparse, Secondary: ds.Secondary, Index: i, Point: p, DistancePx: d})
				}
			}
		}
	}
	return out
}

// nearest bisects on time and compares the two neighbours in pixel space.
func nearest(axis Axis, ds Dataset, pointerPx float64) (Match, bool) {
	target := axis.TimeForPixel(pointerPx)
	pts := ds.Points
	i := sort.Search(len(pts), func(i int) bool { return !pts[i].Time.Before(target) })

	best, bestDist := -1, math.Inf(1)
	for _, c := range []int{i - 1, i} {
		if c < 0 || c >= len(pts) {
			continue
		}
		d := math.Abs(axis.PixelForTime(pts[c].Time) - pointerPx)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	if best < 0 || math.IsNaN(bestDist) {
		return Match{}, false
	}
	return Match{Label: ds.Label, Density: Dense, Secondary: ds.Secondary, Index: best, Point: pts[best], DistancePx: bestDist}, true
}
