package chartsync

import (
	"time"

	"github.com/banshee-data/welldash/internal/monitoring"
)

var buslogf = monitoring.Component("viewport")

// Viewport is the visible time range of a view, with optional value bounds.
type Viewport struct {
	XMin time.Time
	XMax time.Time
	YMin *float64
	YMax *float64
}

// NewViewport builds a time-only viewport, swapping the bounds if needed.
func NewViewport(a, b time.Time) Viewport {
	return Viewport{XMin: a, XMax: b}.Normalize()
}

// Normalize returns v with XMin <= XMax and YMin <= YMax.
func (v Viewport) Normalize() Viewport {
	if v.XMax.Before(v.XMin) {
		v.XMin, v.XMax = v.XMax, v.XMin
	}
	if v.YMin != nil && v.YMax != nil && *v.YMax < *v.YMin {
		v.YMin, v.YMax = v.YMax, v.YMin
	}
	return v
}

// Span returns the width of the time range.
func (v Viewport) Span() time.Duration {
	return v.XMax.Sub(v.XMin)
}

// Contains reports whether t lies inside the time range.
func (v Viewport) Contains(t time.Time) bool {
	return !t.Before(v.XMin) && !t.After(v.XMax)
}

// TimeOnly drops the value bounds.
func (v Viewport) TimeOnly() Viewport {
	return Viewport{XMin: v.XMin, XMax: v.XMax}
}

// Equal reports whether both viewports cover the same time range.
func (v Viewport) Equal(o Viewport) bool {
	return v.XMin.Equal(o.XMin) && v.XMax.Equal(o.XMax)
}

// Peer is a view taking part in viewport synchronisation.
type Peer interface {
	// PeerID identifies the view on the bus.
	PeerID() string
	// SetViewportSilently updates rendering bounds without running the
	// view's own gesture-completion handler.
	SetViewportSilently(Viewport)
}

// ViewportBus mirrors completed pan/zoom gestures between views.
// Not safe for concurrent use; all calls come from the session loop.
type ViewportBus struct {
	coord        *Coordinator
	peers        []Peer
	broadcasting bool
}

// NewViewportBus returns a bus whose Reset uses coord's window.
func NewViewportBus(coord *Coordinator) *ViewportBus {
	return &ViewportBus{coord: coord}
}

// Join adds p to the bus and returns a function that removes it.
func (b *ViewportBus) Join(p Peer) (leave func()) {
	b.peers = append(b.peers, p)
	return func() {
		for i, q := range b.peers {
			if q == p {
				b.peers = append(b.peers[:i:i], b.peers[i+1:]...)
				return
			}
		}
	}
}

// Peers returns the number of joined views.
func (b *ViewportBus) Peers() int {
	return len(b.peers)
}

// Publish delivers the time range of vp to every peer other than originID
// and returns how many received it. A publish issued while another is being
// delivered is dropped, so a peer that misbehaves and republishes from its
// silent setter cannot start a loop.
func (b *ViewportBus) Publish(originID string, vp Viewport) int {
	if b.broadcasting {
		buslogf("dropping nested publish from %s", originID)
		return 0
	}
	vp = vp.Normalize().TimeOnly()

	b.broadcasting = true
	defer func() { b.broadcasting = false }()

	delivered := 0
	for _, p := range append([]Peer(nil), b.peers...) {
		if p.PeerID() == originID {
			continue
		}
		p.SetViewportSilently(vp)
		delivered++
	}
	return delivered
}

// Reset returns every peer to the range implied by the coordinator's window
// and returns that range.
func (b *ViewportBus) Reset() Viewport {
	cutoff, now := b.coord.Bounds()
	vp := NewViewport(cutoff, now)
	b.broadcasting = true
	defer func() { b.broadcasting = false }()
	for _, p := range append([]Peer(nil), b.peers...) {
		p.SetViewportSilently(vp)
	}
	return vp
}
