package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/welldash/internal/interaction"
)

// pixelsPerInch converts the chart's pixel size to plot lengths.
const pixelsPerInch = 96

// PNG draws the chart as a static image: dense datasets as lines, sparse
// datasets as markers, plus the selection band and threshold when set.
// Secondary datasets are rescaled onto the primary value range and marked
// as such in the legend.
func PNG(c Chart) ([]byte, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04"}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	rescale := secondaryScale(c.Datasets)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, ds := range c.Datasets {
		if ds.Hidden || len(ds.Points) == 0 {
			continue
		}
		label := ds.Label
		if ds.Secondary {
			label += " (rescaled)"
		}
		xys := make(plotter.XYs, 0, len(ds.Points))
		for _, pt := range ds.Points {
			if !finite(pt.Value) {
				continue
			}
			y := pt.Value
			if ds.Secondary {
				y = rescale(y)
			}
			xys = append(xys, plotter.XY{X: unixSeconds(pt), Y: y})
			yMin, yMax = math.Min(yMin, y), math.Max(yMax, y)
		}
		if len(xys) == 0 {
			continue
		}
		col := hexColor(colorFor(i))

		switch ds.Density {
		case interaction.Dense:
			line, err := plotter.NewLine(xys)
			if err != nil {
				return nil, fmt.Errorf("line %s: %w", ds.Label, err)
			}
			line.Color = col
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(label, line)
		case interaction.Sparse:
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("markers %s: %w", ds.Label, err)
			}
			sc.GlyphStyle = draw.GlyphStyle{Color: col, Radius: vg.Points(float64(c.markerSize()) / 2), Shape: draw.CircleGlyph{}}
			p.Add(sc)
			p.Legend.Add(label, sc)
		}
	}

	if !c.Viewport.XMin.IsZero() && c.Viewport.XMax.After(c.Viewport.XMin) {
		p.X.Min = float64(c.Viewport.XMin.Unix())
		p.X.Max = float64(c.Viewport.XMax.Unix())
	}

	if c.Threshold != nil && p.X.Max > p.X.Min {
		th := *c.Threshold
		line, err := plotter.NewLine(plotter.XYs{{X: p.X.Min, Y: th}, {X: p.X.Max, Y: th}})
		if err == nil {
			line.Color = color.NRGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
			p.Add(line)
			p.Legend.Add("threshold", line)
		}
		yMin, yMax = math.Min(yMin, th), math.Max(yMax, th)
	}

	if c.Selection != nil && !math.IsInf(yMin, 0) {
		x0, x1 := float64(c.Selection.Start.Unix()), float64(c.Selection.End.Unix())
		band, err := plotter.NewPolygon(plotter.XYs{{X: x0, Y: yMin}, {X: x1, Y: yMin}, {X: x1, Y: yMax}, {X: x0, Y: yMax}})
		if err == nil {
			band.Color = color.NRGBA{R: 0x42, G: 0xa5, B: 0xf5, A: 0x40}
			band.LineStyle.Width = 0
			p.Add(band)
		}
	}

	w, h := c.size()
	wt, err := p.WriterTo(vg.Length(w)*vg.Inch/pixelsPerInch, vg.Length(h)*vg.Inch/pixelsPerInch, "png")
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// secondaryScale maps secondary values linearly onto the range of the
// primary datasets. It is the identity when either range is missing or
// flat.
func secondaryScale(datasets []interaction.Dataset) func(float64) float64 {
	pMin, pMax := math.Inf(1), math.Inf(-1)
	sMin, sMax := math.Inf(1), math.Inf(-1)
	for _, ds := range datasets {
		if ds.Hidden {
			continue
		}
		for _, pt := range ds.Points {
			if !finite(pt.Value) {
				continue
			}
			if ds.Secondary {
				sMin, sMax = math.Min(sMin, pt.Value), math.Max(sMax, pt.Value)
			} else {
				pMin, pMax = math.Min(pMin, pt.Value), math.Max(pMax, pt.Value)
			}
		}
	}
	if !(pMax > pMin) || !(sMax > sMin) {
		return func(v float64) float64 { return v }
	}
	return func(v float64) float64 {
		return pMin + (v-sMin)/(sMax-sMin)*(pMax-pMin)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func unixSeconds(p interaction.Point) float64 {
	return float64(p.Time.UnixMilli()) / 1000
}

// hexColor parses "#rrggbb"; anything else is black.
func hexColor(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.Black
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.Black
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
