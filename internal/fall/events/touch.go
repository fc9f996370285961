package events

import (
	"github.com/climbmate/fallcheck/internal/fall/kinematics"
)

// BaselineS is the length of the quiet window, in seconds, whose
// acceleration and jerk spread sets the deceleration and jerk gates.
const BaselineS = 0.30

// TouchCriteria parameterises the single-track touchdown search. The same
// search serves the center-of-mass track, each ankle and every body part of
// the contact profile; only these numbers differ between call sites.
type TouchCriteria struct {
	VPreMin      float64 `json:"v_pre_min"`      // px/s, mean velocity before contact
	VPostMax     float64 `json:"v_post_max"`     // px/s, mean velocity after contact
	DropMin      float64 `json:"drop_min"`       // px/s, pre minus post
	DropRatioMax float64 `json:"drop_ratio_max"` // post / max(pre, 1)
	DecelFactor  float64 `json:"decel_factor"`   // × baseline acceleration std
	JerkFactor   float64 `json:"jerk_factor"`    // × baseline jerk std
	SustainS     float64 `json:"sustain_s"`
	PreS         float64 `json:"pre_s"`
	PostS        float64 `json:"post_s"`
}

// DefaultTouchCriteria returns the center-of-mass touchdown criteria.
func DefaultTouchCriteria() TouchCriteria {
	return TouchCriteria{
		VPreMin:      120,
		VPostMax:     40,
		DropMin:      80,
		DropRatioMax: 0.45,
		DecelFactor:  2.5,
		JerkFactor:   1.5,
		SustainS:     0.04,
		PreS:         0.10,
		PostS:        0.10,
	}
}

// Thresholds are the adaptive gates derived from a track's baseline.
type Thresholds struct {
	Decel float64
	Jerk  float64
}

// BaselineThresholds computes the deceleration and jerk gates from the
// population std of acceleration and jerk over the first BaselineS seconds
// after floor. When the track is too short for that window the whole track
// is used.
func BaselineThresholds(d kinematics.Derivatives, fps float64, c TouchCriteria, floor int) Thresholds {
	n := d.Len()
	kBase := kinematics.Frames(BaselineS, fps, 2)

	var stdA, stdJ float64
	if n > floor+kBase {
		stdA = kinematics.PopStd(d.A[floor : floor+kBase])
		stdJ = kinematics.PopStd(d.J[floor : floor+kBase])
	} else {
		stdA = kinematics.PopStd(d.A)
		stdJ = kinematics.PopStd(d.J)
	}
	return Thresholds{
		Decel: c.DecelFactor * (stdA + kinematics.Epsilon),
		Jerk:  c.JerkFactor * (stdJ + kinematics.Epsilon),
	}
}

// FirstTouch scans d forward from frame from and returns the first frame t
// at which all touchdown conditions hold:
//
//   - mean |a| over the sustain window ≥ decel gate
//   - mean v over the pre-window ≥ VPreMin
//   - mean v over the post-window ≤ VPostMax
//   - pre minus post ≥ DropMin
//   - post / max(pre, 1) ≤ DropRatioMax
//   - max |j| over the sustain window ≥ jerk gate
//
// The pre-window never reaches before floor, which also anchors the
// baseline. Returns false when no frame qualifies; callers choose their own
// fallback.
func FirstTouch(d kinematics.Derivatives, fps float64, c TouchCriteria, from, floor int) (int, bool) {
	n := d.Len()
	if n == 0 {
		return 0, false
	}
	sustainL := kinematics.RoundFrames(c.SustainS, fps, 1)
	preL := kinematics.RoundFrames(c.PreS, fps, 1)
	postL := kinematics.RoundFrames(c.PostS, fps, 1)
	thr := BaselineThresholds(d, fps, c, floor)

	if from < floor {
		from = floor
	}
	for t := from; t < n-sustainL; t++ {
		// mean(-a) never exceeds mean|a|, so the magnitude test subsumes it.
		if !(kinematics.MeanAbs(d.A[t:t+sustainL]) >= thr.Decel) {
			continue
		}

		lPre := max(floor, t-preL)
		rPost := min(n, t+postL)
		if t <= lPre || rPost <= t {
			continue
		}

		vPre := kinematics.Mean(d.V[lPre:t])
		vPost := kinematics.Mean(d.V[t:rPost])
		if !(vPre >= c.VPreMin) || !(vPost <= c.VPostMax) {
			continue
		}
		if !(vPre-vPost >= c.DropMin) {
			continue
		}
		if !(vPost/max(vPre, 1.0) <= c.DropRatioMax) {
			continue
		}
		if !(kinematics.MaxAbs(d.J[t:t+sustainL]) >= thr.Jerk) {
			continue
		}
		return t, true
	}
	return 0, false
}
