package render

import (
	"time"

	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/interaction"
)

// Chart is everything needed to draw one view outside the canvas.
type Chart struct {
	Title      string
	Subtitle   string
	Datasets   []interaction.Dataset
	Viewport   chartsync.Viewport
	Selection  *interaction.Selection
	Threshold  *float64
	WidthPx    int
	HeightPx   int
	MarkerSize int
}

// palette colours datasets in order.
var palette = []string{"#e53935", "#1e88e5", "#43a047", "#fb8c00", "#8e24aa", "#00897b", "#6d4c41", "#546e7a"}

func colorFor(i int) string {
	return palette[i%len(palette)]
}

func (c Chart) markerSize() int {
	if c.MarkerSize <= 0 {
		return 8
	}
	return c.MarkerSize
}

func (c Chart) size() (w, h int) {
	w, h = c.WidthPx, c.HeightPx
	if w <= 0 {
		w = 1200
	}
	if h <= 0 {
		h = 420
	}
	return w, h
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
