package chart

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climbmate/fallcheck/internal/fall/pipeline"
	"github.com/climbmate/fallcheck/internal/monitoring"
	"github.com/climbmate/fallcheck/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func sampleData() Data {
	com := testutil.Constant(40, 300)
	for i := 20; i < 40; i++ {
		com[i] = 300 + float64(i-20)*10
	}
	com[5] = math.NaN()
	return Data{
		Title:    "Fall test-1",
		Subtitle: "gate=use_breakfall",
		Series: []Series{
			{Name: "com", Y: com},
			{Name: "feet", Y: testutil.Constant(30, 400)},
		},
		Markers: []Marker{{Name: "t_drop", Frame: 20}, {Name: "t_touch", Frame: 35}},
	}
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	dy := testutil.FallTrace(80, testutil.Segment{Start: 30, Frames: 20, Step: 10})
	seq := pipeline.Sequence{
		FPS:    30,
		Frames: testutil.StandingSkeleton(80, 300, 100).Shifted(dy).Frames(),
	}
	res, err := pipeline.Analyze(seq, pipeline.DefaultOptions())
	require.NoError(t, err)

	d := FromResult(res)
	assert.True(t, strings.HasPrefix(d.Title, "Fall "))
	assert.Contains(t, d.Subtitle, "landing=")

	names := make([]string, len(d.Series))
	for i, s := range d.Series {
		names[i] = s.Name
		assert.Len(t, s.Y, 80)
	}
	assert.Equal(t, []string{"com", "feet", "hip", "back"}, names)

	require.GreaterOrEqual(t, len(d.Markers), 3)
	assert.Equal(t, Marker{Name: "t_drop", Frame: 28}, d.Markers[0])
	assert.Equal(t, Marker{Name: "t_touch", Frame: 50}, d.Markers[1])
	for i := 3; i < len(d.Markers); i++ {
		assert.LessOrEqual(t, d.Markers[i-1].Frame, d.Markers[i].Frame)
	}
	assert.Equal(t, 80, d.Frames())
}

func TestLineDataGaps(t *testing.T) {
	t.Parallel()

	got := lineData([]float64{1, math.NaN(), math.Inf(1)}, 4)
	require.Len(t, got, 4)
	assert.Equal(t, 1.0, got[0].Value)
	for _, ld := range got[1:] {
		assert.Equal(t, "-", ld.Value)
	}
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, sampleData()))

	html := buf.String()
	assert.Contains(t, html, "Fall test-1")
	assert.Contains(t, html, "t_drop")
	assert.Contains(t, html, "t_touch")
	assert.Contains(t, html, `"inverse":true`)
	assert.NotContains(t, html, "NaN")
}

func TestRenderPNG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, sampleData()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestFinitePoints(t *testing.T) {
	t.Parallel()

	pts := finitePoints([]float64{math.NaN(), 2, math.Inf(-1), 4})
	require.Len(t, pts, 2)
	assert.Equal(t, 1.0, pts[0].X)
	assert.Equal(t, 3.0, pts[1].X)
}

func TestRenderEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	assert.ErrorIs(t, RenderHTML(&buf, Data{}), ErrNoData)
	assert.ErrorIs(t, RenderPNG(&buf, Data{}), ErrNoData)

	allNaN := Data{Series: []Series{{Name: "com", Y: []float64{math.NaN(), math.NaN()}}}}
	assert.ErrorIs(t, RenderPNG(&buf, allNaN), ErrNoData)
}
