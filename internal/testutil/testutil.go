// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the synthetic fall traces and keypoint sequences
// used across the fall engine tests.
package testutil

import (
	"math"
	"testing"

	"github.com/climbmate/fallcheck/internal/fall/pose"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Segment moves a trace by Step pixels per frame for Frames frames starting
// at frame Start.
type Segment struct {
	Start  int
	Frames int
	Step   float64
}

// FallTrace returns an n-frame y-down trace that starts at 0 and stays flat
// except during segs. Segments are applied in order and may overlap.
func FallTrace(n int, segs ...Segment) []float64 {
	step := make([]float64, n)
	for _, s := range segs {
		for t := s.Start; t < s.Start+s.Frames && t < n; t++ {
			if t > 0 {
				step[t] += s.Step
			}
		}
	}
	y := make([]float64, n)
	for t := 1; t < n; t++ {
		y[t] = y[t-1] + step[t]
	}
	return y
}

// Constant returns an n-frame trace holding v.
func Constant(n int, v float64) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = v
	}
	return y
}

// Offset returns y shifted by d.
func Offset(y []float64, d float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v + d
	}
	return out
}

// Skeleton describes a synthetic climber by the y track of each joint
// group. A nil track leaves those joints missing. All tracks must share a
// length.
type Skeleton struct {
	X        float64
	Head     []float64
	Shoulder []float64
	Elbow    []float64
	Wrist    []float64
	Hip      []float64
	Knee     []float64
	Ankle    []float64
}

// StandingSkeleton returns an n-frame skeleton standing still with the hip
// at hipY and a torso span of torso pixels.
func StandingSkeleton(n int, hipY, torso float64) Skeleton {
	return Skeleton{
		X:        320,
		Head:     Constant(n, hipY-torso-40),
		Shoulder: Constant(n, hipY-torso),
		Elbow:    Constant(n, hipY-torso/2),
		Wrist:    Constant(n, hipY-torso/4),
		Hip:      Constant(n, hipY),
		Knee:     Constant(n, hipY+torso*0.8),
		Ankle:    Constant(n, hipY+torso*1.6),
	}
}

// Shifted returns a copy of s with dy added to every joint track.
func (s Skeleton) Shifted(dy []float64) Skeleton {
	shift := func(tr []float64) []float64 {
		if tr == nil {
			return nil
		}
		out := make([]float64, len(tr))
		for i := range tr {
			out[i] = tr[i] + dy[i]
		}
		return out
	}
	return Skeleton{
		X:        s.X,
		Head:     shift(s.Head),
		Shoulder: shift(s.Shoulder),
		Elbow:    shift(s.Elbow),
		Wrist:    shift(s.Wrist),
		Hip:      shift(s.Hip),
		Knee:     shift(s.Knee),
		Ankle:    shift(s.Ankle),
	}
}

// Len returns the number of frames described.
func (s Skeleton) Len() int {
	for _, tr := range [][]float64{s.Head, s.Shoulder, s.Elbow, s.Wrist, s.Hip, s.Knee, s.Ankle} {
		if tr != nil {
			return len(tr)
		}
	}
	return 0
}

// Frames renders the skeleton into keypoint frames. Left and right joints
// share a y and sit symmetrically around X.
func (s Skeleton) Frames() []pose.Frame {
	n := s.Len()
	out := make([]pose.Frame, n)
	for t := 0; t < n; t++ {
		f := &out[t]
		for j := range f {
			f[j] = pose.Missing
		}
		set := func(tr []float64, dx float64, left, right int) {
			if tr == nil {
				return
			}
			f[left] = pose.Point{X: s.X - dx, Y: tr[t]}
			if right >= 0 {
				f[right] = pose.Point{X: s.X + dx, Y: tr[t]}
			}
		}
		set(s.Head, 0, pose.Nose, -1)
		set(s.Head, 6, pose.LeftEye, pose.RightEye)
		set(s.Head, 12, pose.LeftEar, pose.RightEar)
		set(s.Shoulder, 22, pose.LeftShoulder, pose.RightShoulder)
		set(s.Elbow, 28, pose.LeftElbow, pose.RightElbow)
		set(s.Wrist, 32, pose.LeftWrist, pose.RightWrist)
		set(s.Hip, 14, pose.LeftHip, pose.RightHip)
		set(s.Knee, 14, pose.LeftKnee, pose.RightKnee)
		set(s.Ankle, 14, pose.LeftAnkle, pose.RightAnkle)
	}
	return out
}

// NaNs returns an n-frame trace of NaN.
func NaNs(n int) []float64 {
	return Constant(n, math.NaN())
}
