package input

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climbmate/fallcheck/internal/fall/pose"
	"github.com/climbmate/fallcheck/internal/fsutil"
)

// jsonFrame renders 17 joints at (x, y+j), with joint missing set to null.
func jsonFrame(y float64, missing int) string {
	joints := make([]string, pose.NumJoints)
	for j := range joints {
		if j == missing {
			joints[j] = "null"
			continue
		}
		joints[j] = fmt.Sprintf("[%d, %g]", 300+j, y+float64(j))
	}
	return "[" + strings.Join(joints, ",") + "]"
}

func csvRow(frame int, y float64) string {
	cells := []string{fmt.Sprint(frame)}
	for j := range pose.NumJoints {
		cells = append(cells, fmt.Sprint(300+j), fmt.Sprint(y+float64(j)))
	}
	return strings.Join(cells, ",")
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	doc := `{
  "fps": 30,
  "frames": [` + jsonFrame(100, pose.Nose) + `,` + jsonFrame(110, -1) + `],
  "com": [200, null],
  "hold_y_min": 450.5,
  "climb_start": 1,
  "climb_end": 2,
  "scale_y": 0.004
}`
	seq, err := DecodeJSON(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 30.0, seq.FPS)
	require.Len(t, seq.Frames, 2)
	assert.False(t, seq.Frames[0][pose.Nose].Valid())
	assert.Equal(t, pose.Point{X: 301, Y: 101}, seq.Frames[0][pose.LeftEye])
	assert.Equal(t, pose.Point{X: 300, Y: 110}, seq.Frames[1][pose.Nose])
	assert.Equal(t, 200.0, seq.COM[0])
	assert.True(t, math.IsNaN(seq.COM[1]))
	require.NotNil(t, seq.HoldYMin)
	assert.Equal(t, 450.5, *seq.HoldYMin)
	assert.Equal(t, 1, seq.ClimbStart)
	require.NotNil(t, seq.ClimbEnd)
	assert.Equal(t, 2, *seq.ClimbEnd)
	assert.Equal(t, 0.004, seq.ScaleY)
}

func TestDecodeJSONNullCoordinate(t *testing.T) {
	t.Parallel()

	frame := strings.Replace(jsonFrame(100, -1), "[300, 100]", "[300, null, 0.2]", 1)
	seq, err := DecodeJSON(strings.NewReader(`{"fps": 25, "frames": [` + frame + `]}`))
	require.NoError(t, err)

	nose := seq.Frames[0][pose.Nose]
	assert.Equal(t, 300.0, nose.X)
	assert.True(t, math.IsNaN(nose.Y))
	assert.Nil(t, seq.COM)
	assert.Nil(t, seq.HoldYMin)
}

func TestDecodeJSONErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		doc  string
	}{
		{"not_json", `{"fps": `},
		{"short_frame", `{"fps": 30, "frames": [[[1, 2]]]}`},
		{"one_coordinate", `{"fps": 30, "frames": [` + strings.Replace(jsonFrame(0, -1), "[300, 0]", "[300]", 1) + `]}`},
		{"com_length", `{"fps": 30, "frames": [` + jsonFrame(0, -1) + `], "com": [1, 2]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeJSON(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
		})
	}
}

func TestDecodeCSV(t *testing.T) {
	t.Parallel()

	header := "frame"
	for j := range pose.NumJoints {
		header += fmt.Sprintf(",x%d,y%d", j, j)
	}
	row1 := csvRow(0, 100)
	row2 := strings.Replace(csvRow(1, 110), ",300,110,", ",,,", 1)

	seq, err := DecodeCSV(strings.NewReader(header+"\n"+row1+"\n"+row2+"\n"), 60)
	require.NoError(t, err)

	assert.Equal(t, 60.0, seq.FPS)
	require.Len(t, seq.Frames, 2)
	assert.Equal(t, pose.Point{X: 316, Y: 116}, seq.Frames[0][pose.RightAnkle])
	assert.False(t, seq.Frames[1][pose.Nose].Valid())
	assert.Equal(t, pose.Point{X: 301, Y: 111}, seq.Frames[1][pose.LeftEye])
}

func TestDecodeCSVErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data string
	}{
		{"too_few_columns", "0,1,2\n"},
		{"bad_frame_number", strings.Replace(csvRow(0, 0), "0,", "zero,", 1) + "\n"},
		{"bad_cell", strings.Replace(csvRow(0, 0), ",300,", ",abc,", 1) + "\n"},
		{"frames_not_increasing", csvRow(1, 0) + "\n" + csvRow(1, 0) + "\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tc.data), 30)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/data", 0755))
	require.NoError(t, mfs.WriteFile("/data/fall.json", []byte(`{"fps": 30, "frames": [`+jsonFrame(0, -1)+`]}`), 0644))
	require.NoError(t, mfs.WriteFile("/data/fall.csv", []byte(csvRow(0, 0)+"\n"), 0644))
	require.NoError(t, mfs.WriteFile("/data/fall.npy", []byte("x"), 0644))

	seq, err := LoadFile(mfs, "/data/fall.json", 0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, seq.FPS)

	seq, err = LoadFile(mfs, "/data/fall.json", 59.94)
	require.NoError(t, err)
	assert.Equal(t, 59.94, seq.FPS, "fps override")

	seq, err = LoadFile(mfs, "/data/fall.csv", 24)
	require.NoError(t, err)
	assert.Len(t, seq.Frames, 1)
	assert.Equal(t, 24.0, seq.FPS)

	_, err = LoadFile(mfs, "/data/fall.npy", 30)
	assert.True(t, errors.Is(err, ErrFormat))

	_, err = LoadFile(mfs, "/data/missing.json", 30)
	assert.Error(t, err)
}
