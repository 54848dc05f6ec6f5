// Package render provides rendering surfaces for views: an in-memory canvas
// that owns the pixel↔time transform, an ECharts HTML renderer for the
// browser and a PNG renderer for static image exports.
package render

import (
	"time"

	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/interaction"
)

// TimeAxis maps the viewport's time range linearly onto [0, Width] pixels.
type TimeAxis struct {
	Min   time.Time
	Max   time.Time
	Width float64
}

// PixelForTime returns the horizontal pixel position of t. A zero-width
// range maps every time to pixel 0.
func (a TimeAxis) PixelForTime(t time.Time) float64 {
	span := a.Max.Sub(a.Min)
	if span <= 0 {
		return 0
	}
	return float64(t.Sub(a.Min)) / float64(span) * a.Width
}

// TimeForPixel is the inverse of PixelForTime.
func (a TimeAxis) TimeForPixel(px float64) time.Time {
	if a.Width <= 0 {
		return a.Min
	}
	span := a.Max.Sub(a.Min)
	return a.Min.Add(time.Duration(px / a.Width * float64(span)))
}

// Canvas is a headless rendering surface. It keeps the datasets and bounds
// the view last issued so they can be inspected, rendered to HTML or PNG, or
// served to a browser client.
type Canvas struct {
	width        float64
	viewport     chartsync.Viewport
	datasets     []interaction.Dataset
	replacements int
	destroyed    bool
}

// NewCanvas returns a canvas widthPx pixels wide.
func NewCanvas(widthPx int) *Canvas {
	return &Canvas{width: float64(widthPx)}
}

// ReplaceDatasets swaps the full dataset list.
func (c *Canvas) ReplaceDatasets(ds []interaction.Dataset) {
	c.datasets = ds
	c.replacements++
	c.destroyed = false
}

// SetBounds sets the visible range.
func (c *Canvas) SetBounds(vp chartsync.Viewport) {
	c.viewport = vp
}

// Axis returns the transform for the current bounds.
func (c *Canvas) Axis() interaction.Axis {
	return TimeAxis{Min: c.viewport.XMin, Max: c.viewport.XMax, Width: c.width}
}

// Destroy drops all datasets.
func (c *Canvas) Destroy() {
	c.datasets = nil
	c.destroyed = true
}

// Datasets returns the datasets last issued.
func (c *Canvas) Datasets() []interaction.Dataset {
	return c.datasets
}

// Bounds returns the current visible range.
func (c *Canvas) Bounds() chartsync.Viewport {
	return c.viewport
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() float64 {
	return c.width
}

// Replacements counts ReplaceDatasets calls.
func (c *Canvas) Replacements() int {
	return c.replacements
}

// Destroyed reports whether Destroy was the last dataset operation.
func (c *Canvas) Destroyed() bool {
	return c.destroyed
}
