package landing

import (
	"fmt"
	"strings"

	"github.com/climbmate/fallcheck/internal/fall/contact"
	"github.com/climbmate/fallcheck/internal/fall/kinematics"
	"github.com/climbmate/fallcheck/internal/fall/pose"
)

// Kind is the landing classification tag.
type Kind string

const (
	NoBreakfallStanding   Kind = "no_breakfall_standing"
	WarnMissingRequired   Kind = "warn_missing_required"
	WarnOrderFeetNotFirst Kind = "warn_order_feet_not_first"
	WarnOrderHipAfterBack Kind = "warn_order_hip_after_back"
	WarnOrderGeneric      Kind = "warn_order_generic"
	WarnGapBoth           Kind = "warn_gap_both"
	WarnGapFeetHip        Kind = "warn_gap_fh"
	WarnGapHipBack        Kind = "warn_gap_hb"
	WarnHandElbowEarly    Kind = "warn_hand_elbow_early"
	WarnHandEarly         Kind = "warn_hand_early"
	WarnElbowEarly        Kind = "warn_elbow_early"
	DirSeqOK              Kind = "dirseq_ok"
)

// Landing rule constants.
const (
	MinGapFrames   = 2
	OrderTolFrames = 1

	standingWindowS  = 0.22
	standingGapRatio = 1.35
)

// Type is a landing tag with its optional detail, rendered as kind(detail).
type Type struct {
	Kind   Kind
	Detail string
}

func (t Type) String() string {
	if t.Detail == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + "(" + t.Detail + ")"
}

// MarshalText renders the tag in its kind(detail) form.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a kind(detail) tag.
func (t *Type) UnmarshalText(b []byte) error {
	s := string(b)
	if i := strings.IndexByte(s, '('); i >= 0 && strings.HasSuffix(s, ")") {
		t.Kind, t.Detail = Kind(s[:i]), s[i+1:len(s)-1]
		return nil
	}
	t.Kind, t.Detail = Kind(s), ""
	return nil
}

// OK reports whether the landing followed the breakfall sequence.
func (t Type) OK() bool { return t.Kind == DirSeqOK }

// StandingCheck is the result of the standing-landing test.
type StandingCheck struct {
	Standing    bool    `json:"standing"`
	Reason      string  `json:"reason"`
	MaxGapPx    float64 `json:"max_gap_px,omitempty"`
	ThresholdPx float64 `json:"threshold_px,omitempty"`
}

// CheckStanding reports a standing landing: within 0.22 s after the feet
// contact the feet-to-hip gap never drops below 1.35 × the median torso
// span, meaning the hips were never lowered.
func CheckStanding(p *contact.Profile) StandingCheck {
	tF, ok := p.Frame(contact.Feet)
	if !ok || p.Tracks == nil || p.FPS <= 0 {
		return StandingCheck{Reason: "insufficient_tracks"}
	}
	feet, hip, sh := p.Tracks.Feet, p.Tracks.Hip, p.Tracks.Shoulder
	n := min(len(feet), len(hip), len(sh))
	if tF >= n || tF < 0 {
		return StandingCheck{Reason: "feet_out_of_range"}
	}

	span := make([]float64, n)
	for i := range n {
		span[i] = sh[i] - hip[i]
		if span[i] < 0 {
			span[i] = -span[i]
		}
	}
	torso := kinematics.Median(span)
	if !kinematics.IsFinite(torso) || torso <= 1 {
		torso = pose.DefaultTorsoSpan
	}

	thr := standingGapRatio * torso
	end := min(n, tF+kinematics.RoundFrames(standingWindowS, p.FPS, 1))

	maxGap := -1.0
	for t := tF; t < end; t++ {
		if !kinematics.IsFinite(feet[t]) || !kinematics.IsFinite(hip[t]) {
			continue
		}
		gap := feet[t] - hip[t]
		maxGap = max(maxGap, gap)
		if gap < thr {
			return StandingCheck{
				Reason:      fmt.Sprintf("hip_lowered(gap<%.1fpx) within %.2fs", thr, standingWindowS),
				ThresholdPx: thr,
			}
		}
	}
	return StandingCheck{
		Standing:    true,
		Reason:      fmt.Sprintf("gap_always_large(max_gap=%.1fpx, thr=%.1fpx, win=%.2fs)", maxGap, thr, standingWindowS),
		MaxGapPx:    maxGap,
		ThresholdPx: thr,
	}
}

// Classify assigns the landing tag. The standing check overrides every
// other rule; after it the first failing rule names the tag.
func Classify(p *contact.Profile) Type {
	if CheckStanding(p).Standing {
		return Type{Kind: NoBreakfallStanding}
	}

	if missing := missingRequired(p); len(missing) > 0 {
		return Type{Kind: WarnMissingRequired, Detail: joinParts(missing)}
	}
	tF, _ := p.Frame(contact.Feet)
	tH, _ := p.Frame(contact.Hip)
	tB, _ := p.Frame(contact.Back)

	if !orderOK(tF, tH, tB) {
		switch {
		case tF >= tH:
			return Type{Kind: WarnOrderFeetNotFirst}
		case tH > tB+OrderTolFrames:
			return Type{Kind: WarnOrderHipAfterBack}
		default:
			return Type{Kind: WarnOrderGeneric}
		}
	}

	fhShort := tH-tF < MinGapFrames
	hbShort := tB-tH < MinGapFrames
	switch {
	case fhShort && hbShort:
		return Type{Kind: WarnGapBoth, Detail: "fh,hb"}
	case fhShort:
		return Type{Kind: WarnGapFeetHip}
	case hbShort:
		return Type{Kind: WarnGapHipBack}
	}

	hands := earlySides(p, tB, contact.HandL, contact.HandR)
	elbows := earlySides(p, tB, contact.ElbowL, contact.ElbowR)
	switch {
	case len(hands) > 0 && len(elbows) > 0:
		return Type{
			Kind:   WarnHandElbowEarly,
			Detail: "hand:" + strings.Join(hands, ",") + ";elbow:" + strings.Join(elbows, ","),
		}
	case len(hands) > 0:
		return Type{Kind: WarnHandEarly, Detail: strings.Join(hands, ",")}
	case len(elbows) > 0:
		return Type{Kind: WarnElbowEarly, Detail: strings.Join(elbows, ",")}
	}

	return Type{Kind: DirSeqOK}
}

func orderOK(tF, tH, tB int) bool {
	return tF < tH && tH <= tB+OrderTolFrames
}

func missingRequired(p *contact.Profile) []contact.Part {
	var missing []contact.Part
	for _, part := range []contact.Part{contact.Feet, contact.Hip, contact.Back} {
		if _, ok := p.Frame(part); !ok {
			missing = append(missing, part)
		}
	}
	return missing
}

// earlySides returns "L"/"R" for each side whose contact precedes back.
func earlySides(p *contact.Profile, tB int, left, right contact.Part) []string {
	var out []string
	if t, ok := p.Frame(left); ok && t < tB {
		out = append(out, "L")
	}
	if t, ok := p.Frame(right); ok && t < tB {
		out = append(out, "R")
	}
	return out
}

func joinParts(parts []contact.Part) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = string(p)
	}
	return strings.Join(s, ",")
}
