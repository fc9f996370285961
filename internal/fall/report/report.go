package report

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/climbmate/fallcheck/internal/fall/contact"
	"github.com/climbmate/fallcheck/internal/fall/events"
	"github.com/climbmate/fallcheck/internal/fall/height"
	"github.com/climbmate/fallcheck/internal/fall/landing"
	"github.com/climbmate/fallcheck/internal/timeutil"
	"github.com/climbmate/fallcheck/internal/version"
)

// Overview is the headline of a report.
type Overview struct {
	Gate        height.Decision `json:"gate"`
	Message     string          `json:"message"`
	HeightM     float64         `json:"height_m"`
	SigmaM      float64         `json:"sigma_m"`
	LandingType *landing.Type   `json:"landing_type,omitempty"`
	OverallPass *bool           `json:"overall_pass,omitempty"`
}

// Meta describes the analysed sequence and how its events were found.
type Meta struct {
	FPS     float64       `json:"fps"`
	Frames  int           `json:"frames"`
	Events  events.Events `json:"events"`
	Version string        `json:"version"`
}

// Report is the full result of one analysis. Landing sections are nil when
// the gate decided the fall was too low to evaluate.
type Report struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Overview    Overview        `json:"summary"`
	Meta        Meta            `json:"meta"`
	Height      height.Estimate `json:"height"`

	Contacts *contact.Profile  `json:"contacts,omitempty"`
	Features *landing.Features `json:"features,omitempty"`
	Rules    *landing.Battery  `json:"rules,omitempty"`
	Coaching []string          `json:"coaching,omitempty"`
}

// Landing reports whether the landing sections are present.
func (r *Report) Landing() bool { return r.Rules != nil }

// Analysis holds the stage outputs a report is composed from. Profile,
// Features and Rules are nil for a low_ok fall.
type Analysis struct {
	FPS      float64
	Frames   int
	Events   events.Events
	Height   height.Estimate
	Decision height.Decision

	Profile  *contact.Profile
	Features *landing.Features
	Rules    *landing.Battery
	Coaching []string
}

// Composer builds reports. Clock and NewID are injectable for tests.
type Composer struct {
	Clock timeutil.Clock
	NewID func() string
}

// NewComposer returns a Composer using the wall clock and random UUIDs.
func NewComposer() *Composer {
	return &Composer{Clock: timeutil.RealClock{}, NewID: uuid.NewString}
}

// Compose assembles the report for a.
func (c *Composer) Compose(a Analysis) *Report {
	r := &Report{
		ID:          c.NewID(),
		GeneratedAt: c.Clock.Now().UTC(),
		Overview: Overview{
			Gate:    a.Decision,
			Message: a.Decision.Message(),
			HeightM: round4(a.Height.HeightM),
			SigmaM:  round4(a.Height.SigmaM),
		},
		Meta: Meta{
			FPS:     a.FPS,
			Frames:  a.Frames,
			Events:  a.Events,
			Version: version.Version,
		},
		Height:   a.Height,
		Contacts: a.Profile,
		Features: a.Features,
		Rules:    a.Rules,
		Coaching: a.Coaching,
	}
	if a.Rules != nil {
		lt := a.Rules.Overall.LandingType
		pass := a.Rules.Overall.Pass
		r.Overview.LandingType = &lt
		r.Overview.OverallPass = &pass
	}
	return r
}

// Compose assembles a report with the default Composer.
func Compose(a Analysis) *Report {
	return NewComposer().Compose(a)
}

func round4(x float64) float64 {
	return math.RoundToEven(x*1e4) / 1e4
}
