// Package pose defines the 17-joint 2D keypoint frame consumed by the fall
// engine and derives the per-frame body tracks (center of mass, feet, hip,
// back, shoulders, head, hands, elbows) from it.
//
// Coordinates are image pixels, y-down. A missing joint is stored as NaN in
// both coordinates; gap filling and smoothing happen upstream.
package pose

import (
	"math"

	"github.com/climbmate/fallcheck/internal/fall/kinematics"
)

// Joint indices in the standard 17-keypoint human pose layout.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumJoints     = 17
)

// DefaultTorsoSpan is used when no frame shows both shoulders and both hips.
const DefaultTorsoSpan = 120.0

// Head center lift, as a fraction of torso height.
const (
	headLiftFace     = 0.22
	headLiftShoulder = 0.35
)

// Body-segment weights of the center-of-mass approximation.
const (
	weightHead  = 0.08
	weightTorso = 0.43
	weightArms  = 0.14
	weightLegs  = 0.35
)

var (
	headJoints  = []int{Nose, LeftEye, RightEye, LeftEar, RightEar}
	torsoJoints = []int{LeftShoulder, RightShoulder, LeftHip, RightHip}
	armJoints   = []int{LeftElbow, RightElbow, LeftWrist, RightWrist}
	legJoints   = []int{LeftKnee, RightKnee, LeftAnkle, RightAnkle}
)

// Point is a 2D image position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Missing is the placeholder stored for an undetected joint.
var Missing = Point{X: math.NaN(), Y: math.NaN()}

// Valid reports whether both coordinates are finite.
func (p Point) Valid() bool {
	return kinematics.IsFinite(p.X) && kinematics.IsFinite(p.Y)
}

// Mid returns the midpoint of p and q.
func (p Point) Mid(q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Frame holds the 17 joints of one video frame.
type Frame [NumJoints]Point

// ShoulderMid returns the midpoint of both shoulders.
func (f *Frame) ShoulderMid() Point { return f[LeftShoulder].Mid(f[RightShoulder]) }

// HipMid returns the midpoint of both hips.
func (f *Frame) HipMid() Point { return f[LeftHip].Mid(f[RightHip]) }

// TorsoVisible reports whether both shoulders and both hips are present.
func (f *Frame) TorsoVisible() bool {
	for _, j := range torsoJoints {
		if !f[j].Valid() {
			return false
		}
	}
	return true
}

// TorsoHeight returns the vertical shoulder-mid to hip-mid distance, or 0
// when the torso is not fully visible.
func (f *Frame) TorsoHeight() float64 {
	if !f.TorsoVisible() {
		return 0
	}
	return math.Abs(f.ShoulderMid().Y - f.HipMid().Y)
}

// partMean averages the valid joints of one body segment.
func (f *Frame) partMean(joints []int) (Point, bool) {
	var sx, sy float64
	var n int
	for _, j := range joints {
		if !f[j].Valid() {
			continue
		}
		sx += f[j].X
		sy += f[j].Y
		n++
	}
	if n == 0 {
		return Missing, false
	}
	return Point{X: sx / float64(n), Y: sy / float64(n)}, true
}

// CenterOfMass approximates the body center as a fixed weighted average of
// the head, torso, arm and leg segment means. A segment with no visible
// joint makes the result NaN.
func CenterOfMass(f *Frame) Point {
	head, _ := f.partMean(headJoints)
	torso, _ := f.partMean(torsoJoints)
	arms, _ := f.partMean(armJoints)
	legs, _ := f.partMean(legJoints)
	return Point{
		X: head.X*weightHead + torso.X*weightTorso + arms.X*weightArms + legs.X*weightLegs,
		Y: head.Y*weightHead + torso.Y*weightTorso + arms.Y*weightArms + legs.Y*weightLegs,
	}
}

// COMTrack returns the center-of-mass y coordinate of every frame.
func COMTrack(frames []Frame) []float64 {
	out := make([]float64, len(frames))
	for i := range frames {
		out[i] = CenterOfMass(&frames[i]).Y
	}
	return out
}

// HeadCenter estimates the center of the skull. Face landmarks (nose, eye
// midpoint or single eye, each ear) are averaged and lifted by a fraction of
// the torso height; without face landmarks the shoulder midpoint is lifted
// further. Returns false when neither is available.
func HeadCenter(f *Frame) (Point, bool) {
	var cands []Point
	if f[Nose].Valid() {
		cands = append(cands, f[Nose])
	}
	switch {
	case f[LeftEye].Valid() && f[RightEye].Valid():
		cands = append(cands, f[LeftEye].Mid(f[RightEye]))
	case f[LeftEye].Valid():
		cands = append(cands, f[LeftEye])
	case f[RightEye].Valid():
		cands = append(cands, f[RightEye])
	}
	if f[LeftEar].Valid() {
		cands = append(cands, f[LeftEar])
	}
	if f[RightEar].Valid() {
		cands = append(cands, f[RightEar])
	}

	torso := f.TorsoHeight()

	if len(cands) > 0 {
		var c Point
		for _, p := range cands {
			c.X += p.X
			c.Y += p.Y
		}
		c.X /= float64(len(cands))
		c.Y /= float64(len(cands))
		if torso > 0 {
			c.Y -= headLiftFace * torso
		}
		return c, true
	}

	if torso > 0 {
		sh := f.ShoulderMid()
		return Point{X: sh.X, Y: sh.Y - headLiftShoulder*torso}, true
	}
	return Missing, false
}

// MedianTorsoSpan returns the median shoulder-mid to hip-mid vertical
// distance over frames with a fully visible torso.
func MedianTorsoSpan(frames []Frame) float64 {
	vals := make([]float64, 0, len(frames))
	for i := range frames {
		if frames[i].TorsoVisible() {
			vals = append(vals, frames[i].TorsoHeight())
		}
	}
	if len(vals) == 0 {
		return DefaultTorsoSpan
	}
	return kinematics.Median(vals)
}

// Tracks are the per-frame y tracks every downstream stage consumes.
// Missing joints propagate as NaN.
type Tracks struct {
	COM      []float64
	Feet     []float64 // mean ankle y
	AnkleL   []float64
	AnkleR   []float64
	Hip      []float64 // mid-hip y
	Back     []float64 // midpoint of shoulder-mid and hip-mid
	Shoulder []float64 // mid-shoulder y
	Head     []float64 // head center y
	HandL    []float64
	HandR    []float64
	ElbowL   []float64
	ElbowR   []float64
}

// Len returns the number of frames covered.
func (t *Tracks) Len() int { return len(t.COM) }

// BuildTracks derives all body tracks from a keypoint sequence.
func BuildTracks(frames []Frame) *Tracks {
	n := len(frames)
	tr := &Tracks{
		COM:      make([]float64, n),
		Feet:     make([]float64, n),
		AnkleL:   make([]float64, n),
		AnkleR:   make([]float64, n),
		Hip:      make([]float64, n),
		Back:     make([]float64, n),
		Shoulder: make([]float64, n),
		Head:     make([]float64, n),
		HandL:    make([]float64, n),
		HandR:    make([]float64, n),
		ElbowL:   make([]float64, n),
		ElbowR:   make([]float64, n),
	}
	for i := range frames {
		f := &frames[i]
		sh, hip := f.ShoulderMid(), f.HipMid()

		tr.COM[i] = CenterOfMass(f).Y
		tr.AnkleL[i] = jointY(f, LeftAnkle)
		tr.AnkleR[i] = jointY(f, RightAnkle)
		tr.Feet[i] = (f[LeftAnkle].Y + f[RightAnkle].Y) / 2
		tr.Hip[i] = hip.Y
		tr.Shoulder[i] = sh.Y
		tr.Back[i] = sh.Mid(hip).Y
		tr.HandL[i] = jointY(f, LeftWrist)
		tr.HandR[i] = jointY(f, RightWrist)
		tr.ElbowL[i] = jointY(f, LeftElbow)
		tr.ElbowR[i] = jointY(f, RightElbow)

		tr.Head[i] = math.NaN()
		if hc, ok := HeadCenter(f); ok {
			tr.Head[i] = hc.Y
		}
	}
	return tr
}

func jointY(f *Frame, j int) float64 {
	if !f[j].Valid() {
		return math.NaN()
	}
	return f[j].Y
}
