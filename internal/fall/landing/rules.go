package landing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/climbmate/fallcheck/internal/fall/contact"
)

// Gap keys of Features.GapsMS.
const (
	GapFeetHip    = "feet->hip"
	GapHipBack    = "hip->back"
	GapBackHandL  = "back->hand_L"
	GapBackHandR  = "back->hand_R"
	GapBackElbowL = "back->elbow_L"
	GapBackElbowR = "back->elbow_R"
)

// Features summarise the contact timing of a profile.
type Features struct {
	Order  []contact.Part     `json:"order"`
	GapsMS map[string]float64 `json:"gaps_ms"`
}

// ComputeFeatures returns the contact order (ascending frame, ties by part
// name) and the inter-part gaps in milliseconds.
func ComputeFeatures(p *contact.Profile) Features {
	f := Features{Order: []contact.Part{}, GapsMS: map[string]float64{}}

	type hit struct {
		t    int
		part contact.Part
	}
	var hits []hit
	for _, part := range contact.Parts {
		if t, ok := p.Frame(part); ok {
			hits = append(hits, hit{t, part})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].t != hits[j].t {
			return hits[i].t < hits[j].t
		}
		return hits[i].part < hits[j].part
	})
	for _, h := range hits {
		f.Order = append(f.Order, h.part)
	}

	msPerFrame := 1000 / max(1, p.FPS)
	gap := func(key string, from, to contact.Part) {
		a, okA := p.Frame(from)
		b, okB := p.Frame(to)
		if okA && okB {
			f.GapsMS[key] = float64(b-a) * msPerFrame
		}
	}
	gap(GapFeetHip, contact.Feet, contact.Hip)
	gap(GapHipBack, contact.Hip, contact.Back)
	gap(GapBackHandL, contact.Back, contact.HandL)
	gap(GapBackHandR, contact.Back, contact.HandR)
	gap(GapBackElbowL, contact.Back, contact.ElbowL)
	gap(GapBackElbowR, contact.Back, contact.ElbowR)
	return f
}

// LandingOrder lists the detected parts by contact frame. Parts landing on
// the same frame keep their canonical order.
func LandingOrder(p *contact.Profile) []contact.Part {
	out := make([]contact.Part, 0, len(contact.Parts))
	for _, part := range contact.Parts {
		if _, ok := p.Frame(part); ok {
			out = append(out, part)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return p.Contacts[out[i]] < p.Contacts[out[j]]
	})
	return out
}

// RequiredCheck is R-1: feet, hip and back all detected.
type RequiredCheck struct {
	Pass    bool           `json:"pass"`
	Missing []contact.Part `json:"missing"`
}

// StandingRule is R-2: the landing was not a standing landing.
type StandingRule struct {
	Pass bool `json:"pass"`
	StandingCheck
}

// OrderCheck is R-3: feet < hip ≤ back + 1 frame.
type OrderCheck struct {
	Pass  bool           `json:"pass"`
	Order []contact.Part `json:"order"`
}

// GapsCheck is R-4: at least two frames feet→hip and hip→back.
type GapsCheck struct {
	Pass   bool               `json:"pass"`
	GapsMS map[string]float64 `json:"gaps_ms"`
}

// SidesCheck is R-5 and R-6: a hand or elbow, if detected, touches no
// earlier than the back.
type SidesCheck struct {
	Pass    bool            `json:"pass"`
	Present map[string]bool `json:"present"`
}

// Overall is R-0, the aggregated verdict.
type Overall struct {
	Pass        bool     `json:"pass"`
	LandingType Type     `json:"landing_type"`
	FailReasons []string `json:"fail_reasons"`
}

// Battery is the full rule evaluation of one landing.
type Battery struct {
	Required RequiredCheck     `json:"R-1_required"`
	Standing StandingRule      `json:"R-2_standing_landing"`
	Order    OrderCheck        `json:"R-3_order"`
	Gaps     GapsCheck         `json:"R-4_gaps"`
	Hands    SidesCheck        `json:"R-5_hand"`
	Elbows   SidesCheck        `json:"R-6_elbow"`
	Head     contact.HeadCheck `json:"R-7_head_gap"`
	Overall  Overall           `json:"R-0_overall"`
}

// Item is one rule of the battery in display form.
type Item struct {
	ID     string
	Name   string
	Pass   bool
	Detail string
}

// Items lists the battery in R-1..R-7, R-0 order.
func (b Battery) Items() []Item {
	return []Item{
		{"R-1", "required(feet,hip,back)", b.Required.Pass, missingDetail(b.Required.Missing)},
		{"R-2", "standing_landing", b.Standing.Pass, b.Standing.Reason},
		{"R-3", "order(feet<hip<=back)", b.Order.Pass, "order=" + joinParts(b.Order.Order)},
		{"R-4", "gaps(min_frames)", b.Gaps.Pass, formatGaps(b.Gaps.GapsMS)},
		{"R-5", "hand(optional_after_back)", b.Hands.Pass, formatPresent(b.Hands.Present)},
		{"R-6", "elbow(optional_after_back)", b.Elbows.Pass, formatPresent(b.Elbows.Present)},
		{"R-7", "head_gap", b.Head.Pass, b.Head.Reason},
		{"R-0", "overall", b.Overall.Pass, strings.Join(b.Overall.FailReasons, "; ")},
	}
}

// EvaluateRules derives every rule independently from the profile. The
// overall verdict is the AND of R-1, R-3..R-7 and not standing; it does
// not depend on lt, which is only echoed (or replaced by the standing tag).
func EvaluateRules(lt Type, p *contact.Profile, f Features) Battery {
	tF, okF := p.Frame(contact.Feet)
	tH, okH := p.Frame(contact.Hip)
	tB, okB := p.Frame(contact.Back)

	var b Battery

	b.Required.Missing = missingRequired(p)
	if b.Required.Missing == nil {
		b.Required.Missing = []contact.Part{}
	}
	b.Required.Pass = okF && okH && okB

	standing := CheckStanding(p)
	b.Standing = StandingRule{Pass: !standing.Standing, StandingCheck: standing}

	b.Order = OrderCheck{
		Pass:  okF && okH && okB && orderOK(tF, tH, tB),
		Order: f.Order,
	}
	b.Gaps = GapsCheck{
		Pass:   okF && okH && okB && tH-tF >= MinGapFrames && tB-tH >= MinGapFrames,
		GapsMS: f.GapsMS,
	}
	b.Hands = sidesCheck(p, tB, okB, contact.HandL, contact.HandR)
	b.Elbows = sidesCheck(p, tB, okB, contact.ElbowL, contact.ElbowR)
	b.Head = p.HeadCheck

	var reasons []string
	if !b.Required.Pass {
		reasons = append(reasons, "missing_required:"+joinParts(b.Required.Missing))
	}
	if standing.Standing {
		reasons = append(reasons, "standing_landing:"+standing.Reason)
		lt = Type{Kind: NoBreakfallStanding}
	}
	if !b.Order.Pass {
		reasons = append(reasons, "order_violation:"+joinParts(b.Order.Order))
	}
	if !b.Gaps.Pass {
		reasons = append(reasons, "gap_violation:"+formatGaps(b.Gaps.GapsMS))
	}
	if !b.Hands.Pass {
		reasons = append(reasons, "hand_before_back:"+formatPresent(b.Hands.Present))
	}
	if !b.Elbows.Pass {
		reasons = append(reasons, "elbow_before_back:"+formatPresent(b.Elbows.Present))
	}
	if !b.Head.Pass {
		reasons = append(reasons, "head:"+b.Head.Reason)
	}

	pass := b.Required.Pass && !standing.Standing && b.Order.Pass && b.Gaps.Pass &&
		b.Hands.Pass && b.Elbows.Pass && b.Head.Pass
	b.Overall = Overall{Pass: pass, LandingType: lt, FailReasons: []string{}}
	if !pass {
		b.Overall.FailReasons = reasons
	}
	return b
}

func sidesCheck(p *contact.Profile, tB int, okB bool, left, right contact.Part) SidesCheck {
	tl, okL := p.Frame(left)
	tr, okR := p.Frame(right)
	return SidesCheck{
		Pass:    (!okL || (okB && tB <= tl)) && (!okR || (okB && tB <= tr)),
		Present: map[string]bool{"L": okL, "R": okR},
	}
}

func missingDetail(m []contact.Part) string {
	if len(m) == 0 {
		return ""
	}
	return "missing=" + joinParts(m)
}

func formatGaps(g map[string]float64) string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.0fms", k, g[k])
	}
	return strings.Join(parts, ",")
}

func formatPresent(m map[string]bool) string {
	return fmt.Sprintf("L=%t,R=%t", m["L"], m["R"])
}
