package contact

import (
	"fmt"
	"sync"

	"github.com/climbmate/fallcheck/internal/fall/events"
	"github.com/climbmate/fallcheck/internal/fall/kinematics"
	"github.com/climbmate/fallcheck/internal/fall/pose"
	"github.com/climbmate/fallcheck/internal/monitoring"
)

// Part names a body part of the contact profile.
type Part string

const (
	Feet   Part = "feet"
	Hip    Part = "hip"
	Back   Part = "back"
	HandL  Part = "hand_L"
	HandR  Part = "hand_R"
	ElbowL Part = "elbow_L"
	ElbowR Part = "elbow_R"
)

// Parts lists every profiled part in canonical order.
var Parts = []Part{Feet, Hip, Back, HandL, HandR, ElbowL, ElbowR}

// Reasons recorded on a degraded profile.
const ReasonNoKeypoints = "no_keypoints"

// Back sources recorded in Profile.BackSource.
const (
	BackByConvergence = "convergence"
	BackByDetector    = "detector"
	BackByHipOffset   = "hip_offset"
)

const (
	minAirtimeS = 0.20

	// back: |back_y - hip_y| ≤ convergenceAlpha × median torso span
	convergenceAlpha    = 0.14
	convergenceDelayS   = 0.10
	convergenceMaxLead  = 3
	backHipOffsetFrames = 5

	headWindowS       = 0.18
	headCollapseMinPx = 1.2
)

var (
	handCriteria = events.TouchCriteria{
		VPreMin: 80, VPostMax: 70, DropMin: 50, DropRatioMax: 0.70,
		DecelFactor: 1.8, JerkFactor: 1.2, SustainS: 0.05, PreS: 0.12, PostS: 0.12,
	}
	elbowCriteria = events.TouchCriteria{
		VPreMin: 75, VPostMax: 70, DropMin: 48, DropRatioMax: 0.70,
		DecelFactor: 1.7, JerkFactor: 1.2, SustainS: 0.05, PreS: 0.12, PostS: 0.12,
	}

	partCriteria = map[Part]events.TouchCriteria{
		Hip: {
			VPreMin: 90, VPostMax: 50, DropMin: 60, DropRatioMax: 0.60,
			DecelFactor: 2.2, JerkFactor: 1.4, SustainS: 0.05, PreS: 0.12, PostS: 0.12,
		},
		Back: {
			VPreMin: 80, VPostMax: 60, DropMin: 55, DropRatioMax: 0.65,
			DecelFactor: 2.0, JerkFactor: 1.3, SustainS: 0.06, PreS: 0.14, PostS: 0.14,
		},
		HandL:  handCriteria,
		HandR:  handCriteria,
		ElbowL: elbowCriteria,
		ElbowR: elbowCriteria,
	}
)

// Criteria returns the touchdown criteria of part. Feet has none: its
// contact is the canonical touch frame.
func Criteria(part Part) (events.TouchCriteria, bool) {
	c, ok := partCriteria[part]
	return c, ok
}

// HeadCheck is the head-safety result: whether the head-to-shoulder gap
// collapsed right after the back reached the mat.
type HeadCheck struct {
	Pass       bool    `json:"pass"`
	Reason     string  `json:"reason"`
	Frame      *int    `json:"t,omitempty"`
	CollapsePx float64 `json:"collapse_px"`
}

// Profile is the contact-time profile of one fall. It is built once by
// Extract and not modified afterwards.
type Profile struct {
	Contacts   map[Part]int `json:"contacts"`
	Head       *int         `json:"head,omitempty"`
	HeadCheck  HeadCheck    `json:"head_check"`
	BackSource string       `json:"back_source,omitempty"`
	TorsoSpan  float64      `json:"torso_span_px"`
	Reason     string       `json:"reason,omitempty"`
	FPS        float64      `json:"fps"`

	// Tracks holds the auxiliary head, shoulder, feet and hip tracks used by
	// the landing checks. Nil on a degraded profile.
	Tracks *pose.Tracks `json:"-"`
}

// Frame returns the contact frame of part.
func (p *Profile) Frame(part Part) (int, bool) {
	t, ok := p.Contacts[part]
	return t, ok
}

// Degraded reports whether the profile was built without keypoints.
func (p *Profile) Degraded() bool {
	return p.Reason != ""
}

// Extractor builds contact profiles.
type Extractor struct {
	// Parallel runs the independent per-part searches concurrently.
	Parallel bool
}

// Extract builds a profile with default options.
func Extract(frames []pose.Frame, fps float64, drop, touch int) *Profile {
	return Extractor{}.Extract(frames, fps, drop, touch)
}

// Extract runs the per-part touchdown searches over frames. drop and touch
// are the canonical event frames; touch becomes the feet contact. Without
// frames a degraded profile carrying only the feet contact is returned.
func (e Extractor) Extract(frames []pose.Frame, fps float64, drop, touch int) *Profile {
	if len(frames) == 0 {
		monitoring.Logf("contact: no keypoints, degraded profile")
		return &Profile{
			Contacts:  map[Part]int{Feet: touch},
			HeadCheck: HeadCheck{Pass: true, Reason: ReasonNoKeypoints},
			Reason:    ReasonNoKeypoints,
			FPS:       fps,
		}
	}

	tr := pose.BuildTracks(frames)
	p := &Profile{
		Contacts:  map[Part]int{Feet: touch},
		TorsoSpan: pose.MedianTorsoSpan(frames),
		FPS:       fps,
		Tracks:    tr,
	}

	independent := []struct {
		part  Part
		track []float64
	}{
		{Hip, tr.Hip},
		{HandL, tr.HandL},
		{HandR, tr.HandR},
		{ElbowL, tr.ElbowL},
		{ElbowR, tr.ElbowR},
	}
	type hit struct {
		t  int
		ok bool
	}
	hits := make([]hit, len(independent))
	search := func(i int) {
		c := partCriteria[independent[i].part]
		t, ok := detectPart(independent[i].track, fps, c, drop)
		hits[i] = hit{t, ok}
	}
	if e.Parallel {
		var wg sync.WaitGroup
		for i := range independent {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				search(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range independent {
			search(i)
		}
	}
	for i, h := range hits {
		if h.ok {
			p.Contacts[independent[i].part] = h.t
		}
	}

	if t, src, ok := p.backContact(tr, fps, drop, touch); ok {
		p.Contacts[Back] = t
		p.BackSource = src
		head := t
		p.Head = &head
	}

	back, hasBack := p.Frame(Back)
	p.HeadCheck = headSafety(tr.Head, tr.Shoulder, back, hasBack, fps)

	monitoring.Logf("contact: %v back_source=%s head_check=%s", p.Contacts, p.BackSource, p.HeadCheck.Reason)
	return p
}

// backContact tries convergence, then the generic detector, then hip+5.
func (p *Profile) backContact(tr *pose.Tracks, fps float64, drop, feet int) (int, string, bool) {
	if !kinematics.AnyFinite(tr.Back) {
		return 0, "", false
	}
	if t, ok := backConvergence(tr.Back, tr.Hip, p.TorsoSpan, fps, drop, feet); ok {
		return t, BackByConvergence, true
	}
	if t, ok := detectPart(tr.Back, fps, partCriteria[Back], drop); ok {
		return t, BackByDetector, true
	}
	if hip, ok := p.Frame(Hip); ok {
		return min(hip+backHipOffsetFrames, len(tr.Back)-1), BackByHipOffset, true
	}
	return 0, "", false
}

// detectPart runs the shared touchdown search on one body-part track,
// starting the minimum airtime after drop.
func detectPart(y []float64, fps float64, c events.TouchCriteria, drop int) (int, bool) {
	n := len(y)
	if n < 5 || !kinematics.AnyFinite(y) {
		return 0, false
	}
	d := kinematics.Derive(y, fps)
	airMinL := kinematics.RoundFrames(minAirtimeS, fps, 1)
	start := min(max(0, drop+airMinL), n-1)
	return events.FirstTouch(d, fps, c, start, 0)
}

// backConvergence returns the first frame at or after drop+0.10 s, and no
// more than three frames before the feet contact, where the back track has
// closed in on the hip track (the torso lies flat).
func backConvergence(back, hip []float64, torsoSpan, fps float64, drop, feet int) (int, bool) {
	n := min(len(back), len(hip))
	if n < 5 {
		return 0, false
	}
	thr := convergenceAlpha * torsoSpan
	start := max(0, drop+int(convergenceDelayS*fps), feet-convergenceMaxLead)
	for t := start; t < n; t++ {
		d := back[t] - hip[t]
		if d < 0 {
			d = -d
		}
		if d <= thr {
			return t, true
		}
	}
	return 0, false
}

// headSafety measures how far the shoulder-to-head gap shrinks within
// 0.18 s after the back contact.
func headSafety(head, shoulder []float64, back int, hasBack bool, fps float64) HeadCheck {
	if !hasBack {
		return HeadCheck{Pass: true, Reason: "no_back_event"}
	}
	if head == nil || shoulder == nil {
		return HeadCheck{Pass: true, Reason: "no_tracks"}
	}
	n := min(len(head), len(shoulder))
	if back >= n || back < 0 {
		return HeadCheck{Pass: true, Reason: "back_out_of_range"}
	}
	if !kinematics.IsFinite(head[back]) || !kinematics.IsFinite(shoulder[back]) {
		return HeadCheck{Pass: true, Reason: "no_head_or_shoulder_at_back"}
	}

	baseGap := shoulder[back] - head[back]
	end := min(n, back+kinematics.RoundFrames(headWindowS, fps, 1))

	var maxCollapse float64
	at := -1
	for t := back + 1; t < end; t++ {
		if !kinematics.IsFinite(head[t]) || !kinematics.IsFinite(shoulder[t]) {
			continue
		}
		if c := baseGap - (shoulder[t] - head[t]); c > maxCollapse {
			maxCollapse, at = c, t
		}
	}

	if at >= 0 && maxCollapse >= headCollapseMinPx {
		return HeadCheck{
			Pass:       false,
			Reason:     fmt.Sprintf("head_gap_collapse(%.1fpx) at %d", maxCollapse, at),
			Frame:      &at,
			CollapsePx: maxCollapse,
		}
	}
	return HeadCheck{
		Pass:       true,
		Reason:     fmt.Sprintf("ok (max_collapse=%.1fpx)", maxCollapse),
		CollapsePx: maxCollapse,
	}
}
