package events

import (
	"errors"
	"fmt"

	"github.com/climbmate/fallcheck/internal/fall/kinematics"
	"github.com/climbmate/fallcheck/internal/monitoring"
)

var (
	// ErrInvalidInput reports a caller contract violation: non-positive fps,
	// fewer than three frames, or a search range that is too short.
	ErrInvalidInput = errors.New("events: invalid input")
	// ErrEmptyWindow reports that a required search window held no frames.
	ErrEmptyWindow = errors.New("events: empty search window")
)

// Touch sources recorded in Events.TouchSource.
const (
	SourceCOM        = "com"
	SourceLeftAnkle  = "ankle_left"
	SourceRightAnkle = "ankle_right"
)

// Params tunes the drop/touch detector. Zero values are not defaults; start
// from DefaultParams.
type Params struct {
	MinAirtimeS float64 `json:"min_airtime_s"`
	MaxRetries  int     `json:"max_retries"`

	// Drop onset.
	BaseWindowS       float64 `json:"base_window_s"`
	DropSustainS      float64 `json:"drop_sustain_s"`
	DropVelocityFloor float64 `json:"drop_velocity_floor"` // px/s
	DropSigmaK        float64 `json:"drop_sigma_k"`
	DropAccelMin      float64 `json:"drop_accel_min"` // px/s²

	// Touchdown on the center-of-mass and ankle tracks.
	Touch TouchCriteria `json:"touch"`

	// Minimum-airtime correction.
	OnsetLookbackS  float64 `json:"onset_lookback_s"`
	OnsetSpanS      float64 `json:"onset_span_s"`
	OnsetPercentile float64 `json:"onset_percentile"`
	OnsetFloor      float64 `json:"onset_floor"` // px/s
}

// DefaultParams returns the standard detector tuning.
func DefaultParams() Params {
	return Params{
		MinAirtimeS:       0.20,
		MaxRetries:        3,
		BaseWindowS:       0.40,
		DropSustainS:      0.10,
		DropVelocityFloor: 80,
		DropSigmaK:        2,
		DropAccelMin:      600,
		Touch:             DefaultTouchCriteria(),
		OnsetLookbackS:    0.6,
		OnsetSpanS:        0.3,
		OnsetPercentile:   60,
		OnsetFloor:        30,
	}
}

// Input is one fall sequence. COM is the y-down center-of-mass track; the
// ankle tracks are optional and ignored unless they match its length.
type Input struct {
	COM        []float64
	LeftAnkle  []float64
	RightAnkle []float64
	FPS        float64

	// HoldYMin is the y of the lowest valid hold. A touch with a smaller y
	// happened above that hold and is rejected.
	HoldYMin *float64
	// ClimbStart bounds every search from below. ClimbEnd stops the hold-gate
	// retries once the drop is later than it.
	ClimbStart int
	ClimbEnd   *int
}

// Events is the detector result plus the diagnostics of how it was reached.
type Events struct {
	Drop  int `json:"t_drop"`
	Touch int `json:"t_touch"`

	Retries          int    `json:"retries"`
	DropFallback     bool   `json:"drop_fallback"`
	TouchFallback    bool   `json:"touch_fallback"`
	TouchSource      string `json:"touch_source"`
	AirtimeCorrected bool   `json:"airtime_corrected"`
	// AboveHold is set when the retries ran out with the touch still above
	// the lowest hold; the last candidate is returned unmodified.
	AboveHold bool `json:"above_hold"`
}

// Airtime returns the number of frames between drop and touch.
func (e Events) Airtime() int { return e.Touch - e.Drop }

// Detector finds the drop and touch frames of a fall.
type Detector struct {
	Params Params
	// OnPass, when set, is called before every search pass with the pass
	// number (0 for the initial search) and its start frame.
	OnPass func(pass, start int)
}

// NewDetector returns a detector using p.
func NewDetector(p Params) *Detector {
	return &Detector{Params: p}
}

// Detect runs the detector with DefaultParams.
func Detect(in Input) (Events, error) {
	return NewDetector(DefaultParams()).Detect(in)
}

// search holds the per-sequence state shared by every pass.
type search struct {
	p     Params
	fps   float64
	com   kinematics.Derivatives
	left  *kinematics.Derivatives
	right *kinematics.Derivatives
	n     int
	floor int

	baseWin  int
	sustainL int
}

// Detect returns the drop and touch frames for in. The result always
// satisfies Touch >= Drop.
func (d *Detector) Detect(in Input) (Events, error) {
	n := len(in.COM)
	if in.FPS <= 0 {
		return Events{}, fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidInput, in.FPS)
	}
	if n < 3 {
		return Events{}, fmt.Errorf("%w: need at least 3 frames, got %d", ErrInvalidInput, n)
	}

	floor := min(max(0, in.ClimbStart), n-1)
	if n-floor < 3 {
		return Events{}, fmt.Errorf("%w: search range too short (start=%d, n=%d)", ErrInvalidInput, floor, n)
	}

	s := &search{
		p:        d.Params,
		fps:      in.FPS,
		com:      kinematics.Derive(in.COM, in.FPS),
		n:        n,
		floor:    floor,
		baseWin:  kinematics.Frames(d.Params.BaseWindowS, in.FPS, 3),
		sustainL: kinematics.Frames(d.Params.DropSustainS, in.FPS, 2),
	}
	if len(in.LeftAnkle) == n {
		l := kinematics.Derive(in.LeftAnkle, in.FPS)
		s.left = &l
	}
	if len(in.RightAnkle) == n {
		r := kinematics.Derive(in.RightAnkle, in.FPS)
		s.right = &r
	}

	monitoring.Debugf("events: n=%d fps=%.2f start=%d base_win=%d sustain=%d", n, in.FPS, floor, s.baseWin, s.sustainL)

	pass := 0
	if d.OnPass != nil {
		d.OnPass(pass, floor)
	}
	ev, err := s.findPair(floor)
	if err != nil {
		return Events{}, err
	}

	for in.HoldYMin != nil && ev.Retries < d.Params.MaxRetries {
		if in.ClimbEnd != nil && ev.Drop > *in.ClimbEnd {
			monitoring.Logf("events: drop %d after climb end %d, stop retrying", ev.Drop, *in.ClimbEnd)
			break
		}
		if in.COM[ev.Touch] >= *in.HoldYMin {
			break
		}
		monitoring.Logf("events: touch %d at y=%.1f above lowest hold y=%.1f, retrying", ev.Touch, in.COM[ev.Touch], *in.HoldYMin)

		retries := ev.Retries + 1
		next := min(ev.Touch+1, n-1)
		pass++
		if d.OnPass != nil {
			d.OnPass(pass, next)
		}
		ev, err = s.findPair(next)
		if err != nil {
			return Events{}, err
		}
		ev.Retries = retries
	}

	if in.HoldYMin != nil && in.COM[ev.Touch] < *in.HoldYMin {
		ev.AboveHold = true
	}

	monitoring.Logf("events: t_drop=%d t_touch=%d retries=%d source=%s", ev.Drop, ev.Touch, ev.Retries, ev.TouchSource)
	return ev, nil
}

// findPair runs one drop/touch search pass starting at start.
func (s *search) findPair(start int) (Events, error) {
	start = max(s.floor, min(start, s.n-1))
	v := s.com.V
	ev := Events{TouchSource: SourceCOM}

	drop, ok := s.dropOnset(start)
	if !ok {
		win := v[start:]
		if len(win) == 0 {
			return Events{}, fmt.Errorf("%w: drop search from %d", ErrEmptyWindow, start)
		}
		drop = start + kinematics.ArgMax(win)
		ev.DropFallback = true
		monitoring.Debugf("events: drop fallback to peak velocity at %d", drop)
	}
	ev.Drop = drop

	airMinL := kinematics.RoundFrames(s.p.MinAirtimeS, s.fps, 1)
	searchFrom := min(max(start, drop+airMinL), s.n-1)

	touch, ok := FirstTouch(s.com, s.fps, s.p.Touch, searchFrom, start)
	if !ok {
		touch = drop
		if win := s.com.A[searchFrom:]; len(win) > 0 {
			touch = searchFrom + kinematics.ArgMaxAbs(win)
		}
		ev.TouchFallback = true
		monitoring.Debugf("events: touch fallback to peak |a| at %d", touch)
	}

	if t, src, ok := s.ankleTouch(searchFrom, start); ok {
		touch = t
		ev.TouchSource = src
	}

	if touch < drop {
		touch = drop
	}
	ev.Touch = touch

	if d, ok := s.advanceDrop(drop, touch, start); ok {
		ev.Drop = d
		ev.AirtimeCorrected = true
	}
	monitoring.Debugf("events: pass from %d -> drop=%d touch=%d", start, ev.Drop, ev.Touch)
	return ev, nil
}

// dropOnset returns the first frame whose next sustain window moves down
// faster than the trailing baseline allows and also accelerates hard.
func (s *search) dropOnset(start int) (int, bool) {
	v, a := s.com.V, s.com.A
	for t := max(s.baseWin, start); t < s.n-s.sustainL; t++ {
		prev := v[max(start, t-s.baseWin):t]
		if len(prev) < 2 {
			continue
		}
		mu, sigma := kinematics.PopMeanStd(prev)
		thr := max(s.p.DropVelocityFloor, mu+s.p.DropSigmaK*(sigma+kinematics.Epsilon))
		if kinematics.Mean(v[t:t+s.sustainL]) >= thr && kinematics.Max(a[t:t+s.sustainL]) >= s.p.DropAccelMin {
			return t, true
		}
	}
	return 0, false
}

// ankleTouch runs the touchdown search on each ankle track and returns the
// earlier hit, clamped to [start, n-1]. Missing or unusable ankle tracks
// yield no refinement.
func (s *search) ankleTouch(from, start int) (int, string, bool) {
	var (
		best  int
		src   string
		found bool
	)
	if s.left != nil {
		if t, ok := FirstTouch(*s.left, s.fps, s.p.Touch, from, start); ok {
			best, src, found = t, SourceLeftAnkle, true
		}
	}
	if s.right != nil {
		if t, ok := FirstTouch(*s.right, s.fps, s.p.Touch, from, start); ok && (!found || t < best) {
			best, src, found = t, SourceRightAnkle, true
		}
	}
	if !found {
		return 0, "", false
	}
	return min(max(best, start), s.n-1), src, true
}

// advanceDrop applies the minimum-airtime correction: when drop and touch
// are too close, look back from touch for the velocity-rise onset before
// the peak and move drop there. Drop only ever moves earlier.
func (s *search) advanceDrop(drop, touch, start int) (int, bool) {
	return advanceDrop(s.com.V, s.fps, s.p, drop, touch, start)
}

func advanceDrop(v []float64, fps float64, p Params, drop, touch, start int) (int, bool) {
	minAir := kinematics.Frames(p.MinAirtimeS, fps, 2)
	if touch-drop >= minAir {
		return drop, false
	}

	lookL := max(start, touch-int(p.OnsetLookbackS*fps))
	peak := drop
	if touch > lookL {
		peak = lookL + kinematics.ArgMax(v[lookL:touch])
	}
	if peak <= lookL {
		return drop, false
	}

	lo := max(start, peak-int(p.OnsetSpanS*fps))
	gate := max(p.OnsetFloor, kinematics.Percentile(v[lo:peak], p.OnsetPercentile))
	for tt := lo; tt < peak; tt++ {
		ahead := v[tt+1 : min(tt+4, peak+1)]
		if v[tt] < gate && len(ahead) > 0 && kinematics.Mean(ahead) >= gate {
			if tt < drop {
				monitoring.Debugf("events: airtime %d too short, drop %d -> %d", touch-drop, drop, tt)
				return tt, true
			}
			break
		}
	}
	return drop, false
}
