package landing

import (
	"strings"

	"github.com/climbmate/fallcheck/internal/fall/contact"
)

var partLabels = map[contact.Part]string{
	contact.Feet:   "feet",
	contact.Hip:    "hips",
	contact.Back:   "back",
	contact.HandL:  "left hand",
	contact.HandR:  "right hand",
	contact.ElbowL: "left elbow",
	contact.ElbowR: "right elbow",
}

// FormatOrder renders a landing order for people, e.g. "feet -> hips -> back".
func FormatOrder(order []contact.Part) string {
	if len(order) == 0 {
		return "no contacts detected"
	}
	s := make([]string, len(order))
	for i, p := range order {
		s[i] = partLabels[p]
	}
	return strings.Join(s, " -> ")
}

// Coaching turns a rule battery into feedback lines. Insufficient detection
// yields only camera advice and a standing landing only the standing
// warning; otherwise the lines either confirm the breakfall or list each
// problem found in the order, arm and head checks.
func Coaching(p *contact.Profile, b Battery) []string {
	order := LandingOrder(p)
	var lines []string
	if len(order) > 0 {
		lines = append(lines, "[Landing order] "+FormatOrder(order))
	}

	if !b.Required.Pass {
		return append(lines,
			"Body detection was not good enough to analyze the breakfall.",
			"  - Adjust camera angle and distance so the whole body stays in frame.",
			"  - Avoid overlap with other people, holds or the wall.",
			"  - Use brighter light and clothing that contrasts with the background.",
		)
	}

	if b.Standing.Standing {
		return []string{
			"Standing landing detected.",
			"  - This is a very dangerous way to land.",
			"  - Do not absorb the fall on your feet alone. Lower your hips as you land to spread the impact.",
		}
	}

	tB, _ := p.Frame(contact.Back)
	var earlyArms []string
	for _, part := range []contact.Part{contact.HandL, contact.HandR, contact.ElbowL, contact.ElbowR} {
		if t, ok := p.Frame(part); ok && t < tB {
			earlyArms = append(earlyArms, partLabels[part])
		}
	}
	armsOK := len(earlyArms) == 0

	if b.Order.Pass && armsOK && b.Head.Pass {
		return append(lines,
			"Safe breakfall pattern.",
			"  - Feet, hips and back landed in sequence with arms and head protected.",
		)
	}

	lines = append(lines, "Some parts of the landing need work:")
	if !b.Order.Pass {
		lines = append(lines,
			"- The landing order was off.",
			"  - Recommended: feet -> hips -> back, with the back after or almost together with the hips.",
			"  - Observed: "+FormatOrder(order),
		)
	}
	if !armsOK {
		lines = append(lines,
			"- Arms touched before the torso ("+strings.Join(earlyArms, ", ")+").",
			"  - Bracing with hands or elbows risks wrist, elbow and shoulder injuries.",
			"  - Absorb the impact with legs and torso first and keep the arms for protecting the head.",
		)
	}
	if !b.Head.Pass {
		lines = append(lines,
			"- The head-to-shoulder gap collapsed quickly after the back landed.",
			"  - Tuck the chin and keep the head forward to protect the back of the head and neck.",
			"  - Detail: "+b.Head.Reason,
		)
	}
	return lines
}
