// Package kinematics turns 1D position tracks into velocity, acceleration
// and jerk tracks, and provides the windowed statistics every fall detector
// builds its thresholds from.
//
// Sign convention: tracks are y-down (image rows), so a positive velocity
// means the body part is moving toward the bottom of the frame.
package kinematics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Epsilon is added to standard deviations before they become thresholds so
// a perfectly still baseline never yields a zero gate.
const Epsilon = 1e-6

// Derivative applies the scaled first-difference operator:
// out[0] = 0, out[t] = (x[t]-x[t-1]) * fps.
func Derivative(x []float64, fps float64) []float64 {
	out := make([]float64, len(x))
	for t := 1; t < len(x); t++ {
		out[t] = (x[t] - x[t-1]) * fps
	}
	return out
}

// Velocity returns the per-frame velocity of a y-down track. When yUp is true
// the input is treated as y-up and the sign is flipped so that positive still
// means downward.
func Velocity(y []float64, fps float64, yUp bool) []float64 {
	v := Derivative(y, fps)
	if yUp {
		for i := range v {
			v[i] = -v[i]
		}
	}
	return v
}

// Derivatives bundles the three derived tracks of one position track.
type Derivatives struct {
	V []float64 // px/s, positive = downward
	A []float64 // px/s²
	J []float64 // px/s³
}

// Derive computes velocity, acceleration and jerk for a y-down track.
func Derive(y []float64, fps float64) Derivatives {
	v := Velocity(y, fps, false)
	a := Derivative(v, fps)
	return Derivatives{V: v, A: a, J: Derivative(a, fps)}
}

// Len returns the number of frames covered.
func (d Derivatives) Len() int { return len(d.V) }

// Mean returns the arithmetic mean of x, or NaN for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// MeanAbs returns the mean of |x|, or NaN for an empty slice.
func MeanAbs(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum / float64(len(x))
}

// PopMeanStd returns the mean and population standard deviation of x.
// Returns (NaN, NaN) for an empty slice.
func PopMeanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(x, nil)
}

// PopStd returns the population standard deviation of x (0 for len < 2).
func PopStd(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.PopStdDev(x, nil)
}

// Max returns the largest element of x, or NaN for an empty slice.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Max(x)
}

// MaxAbs returns the largest |x|, or NaN for an empty slice.
func MaxAbs(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := math.Abs(x[0])
	for _, v := range x[1:] {
		if a := math.Abs(v); a > m || math.IsNaN(a) {
			m = a
		}
	}
	return m
}

// ArgMax returns the index of the first maximum of x, or -1 when x is empty.
func ArgMax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}

// ArgMaxAbs returns the index of the first maximum of |x|, or -1 when x is
// empty.
func ArgMaxAbs(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	abs := make([]float64, len(x))
	for i, v := range x {
		abs[i] = math.Abs(v)
	}
	return floats.MaxIdx(abs)
}

// Percentile returns the p-th percentile (0..100) of x using linear
// interpolation between closest ranks, the convention used for the airtime
// onset gate. NaN values are ignored; an all-NaN or empty input yields NaN.
func Percentile(x []float64, p float64) float64 {
	s := finite(x)
	if len(s) == 0 {
		return math.NaN()
	}
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	rank := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		return s[0]
	}
	if hi >= len(s) {
		return s[len(s)-1]
	}
	frac := rank - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

// Median returns the median of the finite values in x (NaN if none).
func Median(x []float64) float64 {
	return Percentile(x, 50)
}

// AnyFinite reports whether x holds at least one finite value.
func AnyFinite(x []float64) bool {
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if IsFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// Frames converts a duration in seconds to a frame count using truncation,
// floored at floor.
func Frames(seconds, fps float64, floor int) int {
	n := int(seconds * fps)
	if n < floor {
		return floor
	}
	return n
}

// RoundFrames converts a duration in seconds to a frame count, rounding
// half to even, floored at floor.
func RoundFrames(seconds, fps float64, floor int) int {
	n := int(math.RoundToEven(seconds * fps))
	if n < floor {
		return floor
	}
	return n
}
