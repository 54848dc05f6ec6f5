package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/welldash/internal/interaction"
)

// HTML writes an interactive ECharts page for the chart. Dense datasets are
// drawn as lines and sparse datasets as scatter markers over a shared time
// axis. Secondary dense datasets get a value axis on the right. Hidden
// datasets are left out.
func HTML(w io.Writer, c Chart) error {
	width, height := c.size()

	xAxis := opts.XAxis{Type: "time", Name: "time", NameLocation: "middle", NameGap: 25}
	if !c.Viewport.XMin.IsZero() && !c.Viewport.XMax.IsZero() {
		xAxis.Min = millis(c.Viewport.XMin)
		xAxis.Max = millis(c.Viewport.XMax)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Title, Width: fmt.Sprintf("%dpx", width), Height: fmt.Sprintf("%dpx", height)}),
		charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: c.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(xAxis),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)

	scatter := charts.NewScatter()
	sparse := 0
	secondaryAxis := false
	for i, ds := range c.Datasets {
		if ds.Hidden {
			continue
		}
		switch ds.Density {
		case interaction.Dense:
			data := make([]opts.LineData, 0, len(ds.Points))
			for _, p := range ds.Points {
				data = append(data, opts.LineData{Value: []interface{}{millis(p.Time), p.Value}})
			}
			lineOpts := opts.LineChart{ShowSymbol: opts.Bool(false)}
			if ds.Secondary {
				if !secondaryAxis {
					line.ExtendYAxis(opts.YAxis{Type: "value", Name: ds.Label, Position: "right", Scale: opts.Bool(true)})
					secondaryAxis = true
				}
				lineOpts.YAxisIndex = 1
			}
			var seriesOpts []charts.SeriesOpts
			seriesOpts = append(seriesOpts,
				charts.WithLineChartOpts(lineOpts),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: colorFor(i)}),
			)
			// threshold and selection belong to the primary axis
			if c.Threshold != nil && !ds.Secondary {
				seriesOpts = append(seriesOpts, charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "threshold", YAxis: *c.Threshold}))
			}
			if c.Selection != nil && !ds.Secondary {
				seriesOpts = append(seriesOpts, charts.WithMarkAreaNameCoordItemOpts(opts.MarkAreaNameCoordItem{
					Name:        "selection",
					Coordinate0: []interface{}{millis(c.Selection.Start), "min"},
					Coordinate1: []interface{}{millis(c.Selection.End), "max"},
				}))
			}
			line.AddSeries(ds.Label, data, seriesOpts...)
		case interaction.Sparse:
			data := make([]opts.ScatterData, 0, len(ds.Points))
			for _, p := range ds.Points {
				d := opts.ScatterData{Value: []interface{}{millis(p.Time), p.Value}}
				switch {
				case p.Occurrence != nil:
					d.Name = p.Occurrence.Label()
				case p.Cycle != nil:
					d.Name = fmt.Sprintf("cycle %d min", p.Cycle.TotalMinutes)
				}
				data = append(data, d)
			}
			scatter.AddSeries(ds.Label, data,
				charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: c.markerSize()}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: colorFor(i)}),
			)
			sparse++
		}
	}
	if sparse > 0 {
		line.Overlap(scatter)
	}
	return line.Render(w)
}
