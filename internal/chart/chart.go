// Package chart renders body-part tracks of an analysed fall with event
// markers, as an interactive HTML page (go-echarts) or a PNG (gonum/plot).
package chart

import (
	"errors"
	"fmt"
	"sort"

	"github.com/climbmate/fallcheck/internal/fall/contact"
	"github.com/climbmate/fallcheck/internal/fall/pipeline"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no track data")

// Series is one y-down track, one sample per frame. NaN samples are gaps.
type Series struct {
	Name string
	Y    []float64
}

// Marker is a labelled vertical line at a frame.
type Marker struct {
	Name  string
	Frame int
}

// Data is everything a chart shows.
type Data struct {
	Title    string
	Subtitle string
	Series   []Series
	Markers  []Marker
}

// Frames returns the length of the longest series.
func (d Data) Frames() int {
	n := 0
	for _, s := range d.Series {
		n = max(n, len(s.Y))
	}
	return n
}

// FromResult collects the COM, feet, hip and back tracks and marks
// t_drop, t_touch and each detected contact.
func FromResult(res *pipeline.Result) Data {
	r := res.Report
	d := Data{
		Title:    "Fall " + r.ID,
		Subtitle: fmt.Sprintf("gate=%s height=%.2f±%.2f m", r.Overview.Gate, r.Overview.HeightM, r.Overview.SigmaM),
		Series:   []Series{{Name: "com", Y: res.COM}},
		Markers: []Marker{
			{Name: "t_drop", Frame: r.Meta.Events.Drop},
			{Name: "t_touch", Frame: r.Meta.Events.Touch},
		},
	}
	if res.Tracks != nil {
		d.Series = append(d.Series,
			Series{Name: "feet", Y: res.Tracks.Feet},
			Series{Name: "hip", Y: res.Tracks.Hip},
			Series{Name: "back", Y: res.Tracks.Back},
		)
	}
	if r.Overview.LandingType != nil {
		d.Subtitle += " landing=" + r.Overview.LandingType.String()
	}
	if r.Contacts != nil {
		var contacts []Marker
		for _, part := range contact.Parts {
			if t, ok := r.Contacts.Frame(part); ok {
				contacts = append(contacts, Marker{Name: string(part), Frame: t})
			}
		}
		sort.SliceStable(contacts, func(i, j int) bool { return contacts[i].Frame < contacts[j].Frame })
		d.Markers = append(d.Markers, contacts...)
	}
	return d
}
