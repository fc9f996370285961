// Package height converts a drop/touch frame pair into a fall height with
// an uncertainty, and gates the landing analysis on that height.
package height

import (
	"errors"
	"fmt"
	"math"

	"github.com/climbmate/fallcheck/internal/fall/kinematics"
)

// G is standard gravity in m/s².
const G = 9.80665

// ErrInvalidInput reports a non-positive fps or a touch that is not after
// the drop.
var ErrInvalidInput = errors.New("height: invalid input")

// Params tunes the estimator. Start from DefaultParams.
type Params struct {
	CompressionMS float64 `json:"compression_ms"` // mat compression removed from airtime
	UseV0         bool    `json:"use_v0"`
	V0WindowS     float64 `json:"v0_window_s"` // pre-touch velocity window

	FrameSigmaFrames float64 `json:"frame_sigma_frames"`
	// CompSigmaFrames is the compression-window uncertainty in frames.
	// Zero derives it as half the compression window.
	CompSigmaFrames float64 `json:"comp_sigma_frames"`
	ScaleSigmaRatio float64 `json:"scale_sigma_ratio"`
}

// DefaultParams returns the standard estimator tuning.
func DefaultParams() Params {
	return Params{
		CompressionMS:    60,
		UseV0:            true,
		V0WindowS:        0.06,
		FrameSigmaFrames: 1,
		ScaleSigmaRatio:  0.03,
	}
}

// Input is one drop/touch pair. COM and ScaleY (m/px) are only needed for
// the v0 correction; without them the estimate is free fall from rest.
type Input struct {
	Drop   int
	Touch  int
	FPS    float64
	COM    []float64
	ScaleY float64
}

// Estimate is a fall height with its one-sigma uncertainty, in meters.
type Estimate struct {
	HeightM float64 `json:"height_m"`
	SigmaM  float64 `json:"sigma_m"`

	AirtimeFrames int     `json:"airtime_frames"`
	AirtimeS      float64 `json:"airtime_s"`
	FreeFallM     float64 `json:"free_fall_m"`
	V0CorrectionM float64 `json:"v0_correction_m"`
}

// FreeFall returns ½·g·t².
func FreeFall(t float64) float64 {
	return 0.5 * G * t * t
}

// Estimate computes the fall height for in.
func (p Params) Estimate(in Input) (Estimate, error) {
	if in.FPS <= 0 {
		return Estimate{}, fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidInput, in.FPS)
	}
	if in.Touch <= in.Drop {
		return Estimate{}, fmt.Errorf("%w: t_touch(%d) <= t_drop(%d)", ErrInvalidInput, in.Touch, in.Drop)
	}

	compFrames := max(0, int(math.RoundToEven(p.CompressionMS/1000*in.FPS)))
	airFrames := max(1, (in.Touch-in.Drop)-compFrames)
	tAir := float64(airFrames) / in.FPS

	est := Estimate{
		AirtimeFrames: airFrames,
		AirtimeS:      tAir,
		FreeFallM:     FreeFall(tAir),
	}

	useV0 := p.UseV0 && in.ScaleY > 0 && len(in.COM) > 0
	if useV0 {
		est.V0CorrectionM = p.v0Correction(in, tAir)
	}
	est.HeightM = est.FreeFallM + est.V0CorrectionM

	frameSigma := p.FrameSigmaFrames / math.Max(1, in.FPS)
	compSigmaFrames := p.CompSigmaFrames
	if compSigmaFrames <= 0 {
		compSigmaFrames = float64(kinematics.RoundFrames(0.5*p.CompressionMS/1000, in.FPS, 1))
	}
	compSigma := compSigmaFrames / math.Max(1, in.FPS)

	dhAir := G * tAir * math.Hypot(frameSigma, compSigma)
	var dhV0 float64
	if useV0 && est.V0CorrectionM > 0 {
		dhV0 = p.ScaleSigmaRatio * est.V0CorrectionM
	}
	est.SigmaM = math.Hypot(dhAir, dhV0)
	return est, nil
}

// v0Correction adds the height already fallen before t_drop when the
// measured pre-touch speed exceeds what free fall from rest would reach.
func (p Params) v0Correction(in Input, tAir float64) float64 {
	n := len(in.COM)
	touch := min(in.Touch, n-1)
	win := kinematics.RoundFrames(p.V0WindowS, in.FPS, 1)
	l := max(in.Drop, touch-win)
	if touch <= l || l < 0 {
		return 0
	}
	v := kinematics.Velocity(in.COM, in.FPS, false)
	vPre := kinematics.Mean(v[l:touch]) * in.ScaleY
	v0 := vPre - G*tAir
	if !(v0 > 0) {
		return 0
	}
	return v0 * v0 / (2 * G)
}

// EstimateHeight runs the estimator with DefaultParams.
func EstimateHeight(in Input) (Estimate, error) {
	return DefaultParams().Estimate(in)
}
