package height

// Decision is the height gate outcome.
type Decision string

const (
	// LowOK: the fall is clearly low enough that landing analysis is skipped.
	LowOK Decision = "low_ok"
	// UseBreakfall: the landing technique decides whether the fall was safe.
	UseBreakfall Decision = "use_breakfall"
	// ClimbDown: the fall is clearly too high; climb lower before letting go.
	ClimbDown Decision = "climb_down"
)

// GateThresholds bound the breakfall band, in meters.
type GateThresholds struct {
	LowM  float64 `json:"low_m"`
	HighM float64 `json:"high_m"`
}

// DefaultGateThresholds returns the 0.5 m / 1.2 m band.
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{LowM: 0.5, HighM: 1.2}
}

var gateMessages = map[Decision]string{
	LowOK:        "Below 0.5 m with margin: stepping off is fine. Check the basic safety rules.",
	UseBreakfall: "Between 0.5 m and 1.2 m: breakfall technique is evaluated.",
	ClimbDown:    "Above 1.2 m with margin: climb down one more hold before letting go.",
}

// Message returns the recommendation shown for d.
func (d Decision) Message() string {
	if m, ok := gateMessages[d]; ok {
		return m
	}
	return "unknown gate decision"
}

// RunsLanding reports whether the landing analysis runs for d.
func (d Decision) RunsLanding() bool {
	return d != LowOK
}

// Gate classifies a height estimate. Both bounds are strict: a height whose
// upper bound equals LowM is not low_ok.
func (g GateThresholds) Gate(h, sigma float64) Decision {
	switch {
	case h+sigma < g.LowM:
		return LowOK
	case h-sigma > g.HighM:
		return ClimbDown
	default:
		return UseBreakfall
	}
}

// Gate classifies with DefaultGateThresholds.
func Gate(h, sigma float64) Decision {
	return DefaultGateThresholds().Gate(h, sigma)
}
