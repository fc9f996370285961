package pipeline

import (
	"fmt"

	"github.com/climbmate/fallcheck/internal/config"
	"github.com/climbmate/fallcheck/internal/fall/contact"
	"github.com/climbmate/fallcheck/internal/fall/events"
	"github.com/climbmate/fallcheck/internal/fall/height"
	"github.com/climbmate/fallcheck/internal/fall/landing"
	"github.com/climbmate/fallcheck/internal/fall/pose"
	"github.com/climbmate/fallcheck/internal/fall/report"
	"github.com/climbmate/fallcheck/internal/monitoring"
)

// Sequence is one recorded fall: keypoint frames plus the optional climb
// context used by the event detector.
type Sequence struct {
	FPS    float64
	Frames []pose.Frame

	// COM overrides the center-of-mass track derived from Frames.
	COM []float64

	// HoldYMin is the y of the lowest hold on the route, when known.
	HoldYMin   *float64
	ClimbStart int
	ClimbEnd   *int

	// ScaleY is meters per pixel; zero disables the v0 correction.
	ScaleY float64
}

// Options configures Analyze. Start from DefaultOptions or FromConfig.
type Options struct {
	Events   events.Params
	Height   height.Params
	Gate     height.GateThresholds
	Parallel bool

	// Composer defaults to report.NewComposer().
	Composer *report.Composer
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		Events: events.DefaultParams(),
		Height: height.DefaultParams(),
		Gate:   height.DefaultGateThresholds(),
	}
}

// FromConfig builds options from a tuning config.
func FromConfig(cfg *config.TuningConfig) Options {
	return Options{
		Events:   cfg.EventsParams(),
		Height:   cfg.HeightParams(),
		Gate:     cfg.GateThresholds(),
		Parallel: cfg.GetParallelContacts(),
	}
}

// Result is the report plus the tracks it was computed from, kept for
// charting.
type Result struct {
	Report *report.Report
	Tracks *pose.Tracks
	COM    []float64
}

// Analyze runs every stage over seq.
func Analyze(seq Sequence, opts Options) (*Result, error) {
	n := len(seq.Frames)
	if seq.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps must be positive, got %v", events.ErrInvalidInput, seq.FPS)
	}
	if n < 3 {
		return nil, fmt.Errorf("%w: need at least 3 frames, got %d", events.ErrInvalidInput, n)
	}
	composer := opts.Composer
	if composer == nil {
		composer = report.NewComposer()
	}
	start := composer.Clock.Now()

	tracks := pose.BuildTracks(seq.Frames)
	com := tracks.COM
	if seq.COM != nil {
		if len(seq.COM) != n {
			return nil, fmt.Errorf("%w: com track has %d samples for %d frames", events.ErrInvalidInput, len(seq.COM), n)
		}
		com = seq.COM
	}
	monitoring.Logf("pipeline: %d frames @ %.2f fps", n, seq.FPS)

	ev, err := events.NewDetector(opts.Events).Detect(events.Input{
		COM:        com,
		LeftAnkle:  tracks.AnkleL,
		RightAnkle: tracks.AnkleR,
		FPS:        seq.FPS,
		HoldYMin:   seq.HoldYMin,
		ClimbStart: seq.ClimbStart,
		ClimbEnd:   seq.ClimbEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect fall events: %w", err)
	}

	est, err := opts.Height.Estimate(height.Input{
		Drop:   ev.Drop,
		Touch:  ev.Touch,
		FPS:    seq.FPS,
		COM:    com,
		ScaleY: seq.ScaleY,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate fall height: %w", err)
	}
	decision := opts.Gate.Gate(est.HeightM, est.SigmaM)
	monitoring.Logf("pipeline: height=%.3f±%.3f m gate=%s", est.HeightM, est.SigmaM, decision)

	a := report.Analysis{
		FPS:      seq.FPS,
		Frames:   n,
		Events:   ev,
		Height:   est,
		Decision: decision,
	}

	if decision.RunsLanding() {
		p := contact.Extractor{Parallel: opts.Parallel}.Extract(seq.Frames, seq.FPS, ev.Drop, ev.Touch)
		if p.Degraded() {
			monitoring.Logf("pipeline: contact profile degraded: %s", p.Reason)
		}
		lt := landing.Classify(p)
		f := landing.ComputeFeatures(p)
		b := landing.EvaluateRules(lt, p, f)
		monitoring.Logf("pipeline: landing=%s overall_pass=%t", b.Overall.LandingType, b.Overall.Pass)

		a.Profile = p
		a.Features = &f
		a.Rules = &b
		a.Coaching = landing.Coaching(p, b)
	}

	r := composer.Compose(a)
	monitoring.Debugf("pipeline: report %s composed in %v", r.ID, composer.Clock.Since(start))
	return &Result{Report: r, Tracks: tracks, COM: com}, nil
}
