// Package input loads keypoint sequences from JSON and CSV files.
package input

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/climbmate/fallcheck/internal/fall/pipeline"
	"github.com/climbmate/fallcheck/internal/fall/pose"
	"github.com/climbmate/fallcheck/internal/fsutil"
)

// ErrFormat reports a malformed keypoint file.
var ErrFormat = errors.New("malformed keypoint file")

// document is the JSON layout. Joints are [x, y] pairs (a trailing
// confidence value is ignored); null joints or coordinates are missing.
type document struct {
	FPS        float64        `json:"fps"`
	Frames     [][][]*float64 `json:"frames"`
	COM        []*float64     `json:"com,omitempty"`
	HoldYMin   *float64       `json:"hold_y_min,omitempty"`
	ClimbStart int            `json:"climb_start,omitempty"`
	ClimbEnd   *int           `json:"climb_end,omitempty"`
	ScaleY     float64        `json:"scale_y,omitempty"`
}

// DecodeJSON reads a JSON keypoint document.
func DecodeJSON(r io.Reader) (*pipeline.Sequence, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	seq := &pipeline.Sequence{
		FPS:        doc.FPS,
		Frames:     make([]pose.Frame, len(doc.Frames)),
		HoldYMin:   doc.HoldYMin,
		ClimbStart: doc.ClimbStart,
		ClimbEnd:   doc.ClimbEnd,
		ScaleY:     doc.ScaleY,
	}
	for i, joints := range doc.Frames {
		if len(joints) != pose.NumJoints {
			return nil, fmt.Errorf("%w: frame %d has %d joints, want %d", ErrFormat, i, len(joints), pose.NumJoints)
		}
		for j, xy := range joints {
			switch {
			case xy == nil:
				seq.Frames[i][j] = pose.Missing
			case len(xy) < 2:
				return nil, fmt.Errorf("%w: frame %d joint %d has %d coordinates", ErrFormat, i, j, len(xy))
			default:
				seq.Frames[i][j] = pose.Point{X: orNaN(xy[0]), Y: orNaN(xy[1])}
			}
		}
	}
	if doc.COM != nil {
		if len(doc.COM) != len(doc.Frames) {
			return nil, fmt.Errorf("%w: com has %d samples for %d frames", ErrFormat, len(doc.COM), len(doc.Frames))
		}
		seq.COM = make([]float64, len(doc.COM))
		for i, v := range doc.COM {
			seq.COM[i] = orNaN(v)
		}
	}
	return seq, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// DecodeCSV reads rows of frame,x0,y0,...,x16,y16. A header row starting
// with "frame" is skipped, empty cells are missing coordinates and frame
// numbers must increase. CSV carries no frame rate, so fps is supplied.
func DecodeCSV(r io.Reader, fps float64) (*pipeline.Sequence, error) {
	const cols = 1 + 2*pose.NumJoints

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	seq := &pipeline.Sequence{FPS: fps}
	last := -1
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "frame") {
			continue
		}
		if len(rec) != cols {
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ErrFormat, line, len(rec), cols)
		}

		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad frame number %q", ErrFormat, line, rec[0])
		}
		if idx <= last {
			return nil, fmt.Errorf("%w: line %d: frame %d not after %d", ErrFormat, line, idx, last)
		}
		last = idx

		var f pose.Frame
		for j := range f {
			x, err := parseCell(rec[1+2*j])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d joint %d x: %v", ErrFormat, line, j, err)
			}
			y, err := parseCell(rec[2+2*j])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d joint %d y: %v", ErrFormat, line, j, err)
			}
			f[j] = pose.Point{X: x, Y: y}
		}
		seq.Frames = append(seq.Frames, f)
	}
	return seq, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// LoadFile reads a .json or .csv keypoint file. A positive fps overrides
// the file's frame rate.
func LoadFile(fs fsutil.FileSystem, path string, fps float64) (*pipeline.Sequence, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypoints: %w", err)
	}

	var seq *pipeline.Sequence
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		seq, err = DecodeJSON(bytes.NewReader(data))
	case ".csv":
		seq, err = DecodeCSV(bytes.NewReader(data), fps)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q (want .json or .csv)", ErrFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if fps > 0 {
		seq.FPS = fps
	}
	return seq, nil
}
