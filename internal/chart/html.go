package chart

import (
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive line chart of d to w.
func RenderHTML(w io.Writer, d Data) error {
	n := d.Frames()
	if n == 0 {
		return ErrNoData
	}

	frames := make([]int, n)
	for i := range frames {
		frames[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: d.Title, Width: "1100px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: d.Title, Subtitle: d.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px, down)", Inverse: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(frames)

	for i, s := range d.Series {
		var seriesOpts []charts.SeriesOpts
		// markers ride on the first series so they are drawn once
		if i == 0 && len(d.Markers) > 0 {
			items := make([]opts.MarkLineNameXAxisItem, len(d.Markers))
			for j, m := range d.Markers {
				items[j] = opts.MarkLineNameXAxisItem{Name: m.Name, XAxis: m.Frame}
			}
			seriesOpts = append(seriesOpts, charts.WithMarkLineNameXAxisItemOpts(items...))
		}
		line.AddSeries(s.Name, lineData(s.Y, n), seriesOpts...)
	}
	return line.Render(w)
}

// lineData pads y to n samples; missing samples become "-", which ECharts
// draws as a gap.
func lineData(y []float64, n int) []opts.LineData {
	out := make([]opts.LineData, n)
	for i := range out {
		if i < len(y) && !math.IsNaN(y[i]) && !math.IsInf(y[i], 0) {
			out[i] = opts.LineData{Value: y[i]}
		} else {
			out[i] = opts.LineData{Value: "-"}
		}
	}
	return out
}
