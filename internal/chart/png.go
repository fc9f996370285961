package chart

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RenderPNG writes a static PNG of d to w.
func RenderPNG(w io.Writer, d Data) error {
	p, err := buildPlot(d)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("chart: failed to create png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("chart: failed to write png: %w", err)
	}
	return nil
}

func buildPlot(d Data) (*plot.Plot, error) {
	if d.Frames() == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = d.Title
	if d.Subtitle != "" {
		p.Title.Text += "\n" + d.Subtitle
	}
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "y (px, down)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, s := range d.Series {
		pts := finitePoints(s.Y)
		if len(pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("chart: series %s: %w", s.Name, err)
		}
		l.Color = plotutil.Color(i)
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(s.Name, l)

		for _, pt := range pts {
			yMin, yMax = math.Min(yMin, pt.Y), math.Max(yMax, pt.Y)
		}
	}
	if math.IsInf(yMin, 0) {
		return nil, ErrNoData
	}

	for i, m := range d.Markers {
		l, err := plotter.NewLine(plotter.XYs{
			{X: float64(m.Frame), Y: yMin},
			{X: float64(m.Frame), Y: yMax},
		})
		if err != nil {
			return nil, fmt.Errorf("chart: marker %s: %w", m.Name, err)
		}
		l.Color = plotutil.Color(len(d.Series) + i)
		l.Dashes = plotutil.Dashes(1)
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("%s (%d)", m.Name, m.Frame), l)
	}
	p.Legend.Top = true
	return p, nil
}

// finitePoints drops NaN and infinite samples; plotter rejects them.
func finitePoints(y []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(y))
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}
