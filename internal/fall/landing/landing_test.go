package landing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climbmate/fallcheck/internal/fall/contact"
	"github.com/climbmate/fallcheck/internal/fall/pose"
	"github.com/climbmate/fallcheck/internal/testutil"
)

// bodyTracks returns tracks with a 100 px torso and the given feet-to-hip
// gap, constant over n frames.
func bodyTracks(n int, feetHipGap float64) *pose.Tracks {
	return &pose.Tracks{
		Feet:     testutil.Constant(n, 300+feetHipGap),
		Hip:      testutil.Constant(n, 300),
		Shoulder: testutil.Constant(n, 200),
	}
}

func lowered() *pose.Tracks { return bodyTracks(40, 100) }
func standing() *pose.Tracks { return bodyTracks(40, 160) }

func newProfile(tr *pose.Tracks, contacts map[contact.Part]int) *contact.Profile {
	return &contact.Profile{
		Contacts:  contacts,
		HeadCheck: contact.HeadCheck{Pass: true, Reason: "ok (max_collapse=0.0px)"},
		FPS:       30,
		Tracks:    tr,
	}
}

func TestClassifyOrderViolation(t *testing.T) {
	t.Parallel()

	p := newProfile(nil, map[contact.Part]int{contact.Feet: 10, contact.Hip: 5, contact.Back: 20})
	got := Classify(p)
	assert.Equal(t, WarnOrderFeetNotFirst, got.Kind)
	assert.NotEqual(t, DirSeqOK, got.Kind)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	type contacts = map[contact.Part]int

	testCases := []struct {
		name     string
		tracks   *pose.Tracks
		contacts contacts
		want     string
	}{
		{"standing_overrides_order", standing(), contacts{contact.Feet: 10, contact.Hip: 5, contact.Back: 20}, "no_breakfall_standing"},
		{"missing_required", lowered(), contacts{contact.Feet: 10}, "warn_missing_required(hip,back)"},
		{"hip_after_back", lowered(), contacts{contact.Feet: 10, contact.Hip: 20, contact.Back: 15}, "warn_order_hip_after_back"},
		{"gap_both", lowered(), contacts{contact.Feet: 10, contact.Hip: 11, contact.Back: 12}, "warn_gap_both(fh,hb)"},
		{"gap_feet_hip", lowered(), contacts{contact.Feet: 10, contact.Hip: 11, contact.Back: 15}, "warn_gap_fh"},
		{"gap_hip_back", lowered(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 15}, "warn_gap_hb"},
		{"hip_one_after_back", lowered(), contacts{contact.Feet: 10, contact.Hip: 21, contact.Back: 20}, "warn_gap_hb"},
		{"hand_early", lowered(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.HandL: 18}, "warn_hand_early(L)"},
		{"hand_and_elbow_early", lowered(), contacts{
			contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.HandR: 19, contact.ElbowL: 15,
		}, "warn_hand_elbow_early(hand:R;elbow:L)"},
		{"elbows_early", lowered(), contacts{
			contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.ElbowL: 19, contact.ElbowR: 19,
		}, "warn_elbow_early(L,R)"},
		{"dirseq_ok", lowered(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.HandL: 22, contact.HandR: 20}, "dirseq_ok"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(newProfile(tc.tracks, tc.contacts))
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestCheckStanding(t *testing.T) {
	t.Parallel()

	feet := map[contact.Part]int{contact.Feet: 10}

	got := CheckStanding(newProfile(standing(), feet))
	assert.True(t, got.Standing)
	assert.Equal(t, "gap_always_large(max_gap=160.0px, thr=135.0px, win=0.22s)", got.Reason)

	got = CheckStanding(newProfile(lowered(), feet))
	assert.False(t, got.Standing)
	assert.Equal(t, "hip_lowered(gap<135.0px) within 0.22s", got.Reason)

	got = CheckStanding(newProfile(lowered(), map[contact.Part]int{contact.Feet: 40}))
	assert.Equal(t, StandingCheck{Reason: "feet_out_of_range"}, got)

	got = CheckStanding(newProfile(nil, feet))
	assert.Equal(t, StandingCheck{Reason: "insufficient_tracks"}, got)

	// feet close on the hips after the window closes: still standing
	late := standing()
	for i := 18; i < 40; i++ {
		late.Feet[i] = 350
	}
	got = CheckStanding(newProfile(late, feet))
	assert.True(t, got.Standing)
}

func TestCheckStandingTorsoFallback(t *testing.T) {
	t.Parallel()

	tr := &pose.Tracks{
		Feet:     testutil.Constant(20, 460),
		Hip:      testutil.Constant(20, 300),
		Shoulder: testutil.Constant(20, 300),
	}
	got := CheckStanding(newProfile(tr, map[contact.Part]int{contact.Feet: 0}))
	// 1.35 × 120 = 162 > 160
	assert.False(t, got.Standing)
	assert.InDelta(t, 162, got.ThresholdPx, 1e-9)
}

func TestComputeFeatures(t *testing.T) {
	t.Parallel()

	p := newProfile(nil, map[contact.Part]int{
		contact.Feet: 10, contact.Hip: 10, contact.HandL: 10, contact.Back: 16,
	})
	f := ComputeFeatures(p)

	assert.Equal(t, []contact.Part{contact.Feet, contact.HandL, contact.Hip, contact.Back}, f.Order)
	want := map[string]float64{GapFeetHip: 0, GapHipBack: 200, GapBackHandL: -200}
	if diff := cmp.Diff(want, f.GapsMS, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("gaps mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []contact.Part{contact.Feet, contact.Hip, contact.HandL, contact.Back}, LandingOrder(p))
}

func TestEvaluateRulesPass(t *testing.T) {
	t.Parallel()

	p := newProfile(lowered(), map[contact.Part]int{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.ElbowR: 25})
	lt := Classify(p)
	b := EvaluateRules(lt, p, ComputeFeatures(p))

	assert.True(t, b.Overall.Pass)
	assert.Empty(t, b.Overall.FailReasons)
	assert.Equal(t, DirSeqOK, b.Overall.LandingType.Kind)
	assert.Equal(t, map[string]bool{"L": false, "R": true}, b.Elbows.Present)

	items := b.Items()
	require.Len(t, items, 8)
	for _, it := range items {
		assert.True(t, it.Pass, it.ID)
	}
}

func TestEvaluateRulesFailures(t *testing.T) {
	t.Parallel()

	type contacts = map[contact.Part]int

	testCases := []struct {
		name       string
		tracks     *pose.Tracks
		contacts   contacts
		headFail   bool
		wantType   Kind
		wantReason string
	}{
		{"order", lowered(), contacts{contact.Feet: 10, contact.Hip: 5, contact.Back: 20}, false, WarnOrderFeetNotFirst, "order_violation:hip,feet,back"},
		{"missing", lowered(), contacts{contact.Feet: 10, contact.Back: 20}, false, WarnMissingRequired, "missing_required:hip"},
		{"standing", standing(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 20}, false, NoBreakfallStanding, "standing_landing:gap_always_large"},
		{"gaps", lowered(), contacts{contact.Feet: 10, contact.Hip: 11, contact.Back: 20}, false, WarnGapFeetHip, "gap_violation:feet->hip=33ms,hip->back=300ms"},
		{"hand", lowered(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.HandL: 12}, false, WarnHandEarly, "hand_before_back:L=true,R=false"},
		{"elbow", lowered(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.ElbowL: 12}, false, WarnElbowEarly, "elbow_before_back:L=true,R=false"},
		{"head", lowered(), contacts{contact.Feet: 10, contact.Hip: 14, contact.Back: 20}, true, DirSeqOK, "head:head_gap_collapse(3.0px) at 22"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProfile(tc.tracks, tc.contacts)
			if tc.headFail {
				p.HeadCheck = contact.HeadCheck{Pass: false, Reason: "head_gap_collapse(3.0px) at 22"}
			}
			b := EvaluateRules(Classify(p), p, ComputeFeatures(p))

			assert.False(t, b.Overall.Pass)
			assert.Equal(t, tc.wantType, b.Overall.LandingType.Kind)
			found := false
			for _, r := range b.Overall.FailReasons {
				if strings.HasPrefix(r, tc.wantReason) {
					found = true
				}
			}
			assert.True(t, found, "reasons %v lack %q", b.Overall.FailReasons, tc.wantReason)
		})
	}
}

func TestEvaluateRulesIndependentOfTag(t *testing.T) {
	t.Parallel()

	p := newProfile(lowered(), map[contact.Part]int{contact.Feet: 10, contact.Hip: 14, contact.Back: 20})
	b := EvaluateRules(Type{Kind: WarnGapHipBack}, p, ComputeFeatures(p))
	assert.True(t, b.Overall.Pass)
	assert.Equal(t, WarnGapHipBack, b.Overall.LandingType.Kind)
}

func TestEvaluateRulesOverallIsExactAnd(t *testing.T) {
	t.Parallel()

	frames := []int{-1, 8, 10, 11, 13, 20}
	opt := func(m map[contact.Part]int, part contact.Part, v int) {
		if v >= 0 {
			m[part] = v
		}
	}
	for _, tr := range []*pose.Tracks{lowered(), standing()} {
		for _, fh := range frames {
			for _, hip := range frames {
				for _, back := range frames {
					for _, hand := range frames {
						for _, headPass := range []bool{true, false} {
							m := map[contact.Part]int{}
							opt(m, contact.Feet, fh)
							opt(m, contact.Hip, hip)
							opt(m, contact.Back, back)
							opt(m, contact.HandR, hand)
							p := newProfile(tr, m)
							p.HeadCheck.Pass = headPass

							b := EvaluateRules(Classify(p), p, ComputeFeatures(p))
							want := b.Required.Pass && !b.Standing.Standing && b.Order.Pass &&
								b.Gaps.Pass && b.Hands.Pass && b.Elbows.Pass && b.Head.Pass
							require.Equal(t, want, b.Overall.Pass, "contacts=%v head=%v", m, headPass)
							require.Equal(t, !want, len(b.Overall.FailReasons) > 0)
						}
					}
				}
			}
		}
	}
}

func TestBatteryJSON(t *testing.T) {
	t.Parallel()

	p := newProfile(lowered(), map[contact.Part]int{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.HandL: 12})
	b := EvaluateRules(Classify(p), p, ComputeFeatures(p))

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"R-0_overall"`)
	assert.Contains(t, s, `"landing_type":"warn_hand_early(L)"`)
	assert.Contains(t, s, `"R-7_head_gap"`)

	var back Battery
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, Type{Kind: WarnHandEarly, Detail: "L"}, back.Overall.LandingType)
}

func TestCoaching(t *testing.T) {
	t.Parallel()

	run := func(tr *pose.Tracks, m map[contact.Part]int, headPass bool) []string {
		p := newProfile(tr, m)
		p.HeadCheck.Pass = headPass
		return Coaching(p, EvaluateRules(Classify(p), p, ComputeFeatures(p)))
	}

	missing := run(lowered(), map[contact.Part]int{contact.Feet: 10}, true)
	assert.Equal(t, "[Landing order] feet", missing[0])
	assert.Contains(t, missing[1], "Body detection")
	assert.Len(t, missing, 5)

	stand := run(standing(), map[contact.Part]int{contact.Feet: 10, contact.Hip: 14, contact.Back: 20}, true)
	assert.Equal(t, "Standing landing detected.", stand[0])
	assert.Len(t, stand, 3)

	ok := run(lowered(), map[contact.Part]int{contact.Feet: 10, contact.Hip: 14, contact.Back: 20}, true)
	assert.Equal(t, []string{
		"[Landing order] feet -> hips -> back",
		"Safe breakfall pattern.",
		"  - Feet, hips and back landed in sequence with arms and head protected.",
	}, ok)

	bad := run(lowered(), map[contact.Part]int{contact.Feet: 10, contact.Hip: 14, contact.Back: 20, contact.ElbowR: 12}, false)
	joined := strings.Join(bad, "\n")
	assert.Contains(t, joined, "Arms touched before the torso (right elbow)")
	assert.Contains(t, joined, "head-to-shoulder gap collapsed")
	assert.NotContains(t, joined, "landing order was off")
}

func TestTypeText(t *testing.T) {
	t.Parallel()

	var lt Type
	require.NoError(t, lt.UnmarshalText([]byte("warn_gap_both(fh,hb)")))
	assert.Equal(t, Type{Kind: WarnGapBoth, Detail: "fh,hb"}, lt)

	require.NoError(t, lt.UnmarshalText([]byte("dirseq_ok")))
	assert.Equal(t, Type{Kind: DirSeqOK}, lt)
	assert.True(t, lt.OK())
	assert.Equal(t, "no contacts detected", FormatOrder(nil))
}
