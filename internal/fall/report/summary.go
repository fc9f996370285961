package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/climbmate/fallcheck/internal/fall/landing"
	"github.com/climbmate/fallcheck/internal/fsutil"
)

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// Summary renders r as plain text, one line per check.
func Summary(r *Report) string {
	var b strings.Builder
	ev := r.Meta.Events

	fmt.Fprintf(&b, "Fall analysis %s\n", r.ID)
	fmt.Fprintf(&b, "  generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  frames:    %d @ %.2f fps\n", r.Meta.Frames, r.Meta.FPS)
	fmt.Fprintf(&b, "  drop:      %d\n", ev.Drop)
	fmt.Fprintf(&b, "  touch:     %d (source %s)\n", ev.Touch, ev.TouchSource)
	fmt.Fprintf(&b, "  airtime:   %d frames (%.3f s)\n", r.Height.AirtimeFrames, r.Height.AirtimeS)
	if ev.Retries > 0 || ev.DropFallback || ev.TouchFallback || ev.AboveHold {
		fmt.Fprintf(&b, "  search:    retries=%d drop_fallback=%t touch_fallback=%t above_hold=%t\n",
			ev.Retries, ev.DropFallback, ev.TouchFallback, ev.AboveHold)
	}
	fmt.Fprintf(&b, "  height:    %.4f ± %.4f m\n", r.Overview.HeightM, r.Overview.SigmaM)
	fmt.Fprintf(&b, "  gate:      %s: %s\n", r.Overview.Gate, r.Overview.Message)

	if !r.Landing() {
		return b.String()
	}

	fmt.Fprintf(&b, "  landing:   %s\n", r.Overview.LandingType)
	fmt.Fprintf(&b, "  order:     %s\n", landing.FormatOrder(r.Features.Order))
	b.WriteString("\nRules\n")
	for _, it := range r.Rules.Items() {
		fmt.Fprintf(&b, "  %-4s %-28s %s", it.ID, it.Name, passFail(it.Pass))
		if it.Detail != "" {
			fmt.Fprintf(&b, "  %s", it.Detail)
		}
		b.WriteByte('\n')
	}
	if len(r.Coaching) > 0 {
		b.WriteString("\nCoaching\n")
		for _, line := range r.Coaching {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

// Export writes <base>.json and <base>.txt into dir, creating it if
// needed, and returns both paths.
func Export(fs fsutil.FileSystem, dir, base string, r *Report) (jsonPath, txtPath string, err error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode report: %w", err)
	}
	jsonPath = filepath.Join(dir, base+".json")
	if err := fs.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}

	txtPath = filepath.Join(dir, base+".txt")
	if err := fs.WriteFile(txtPath, []byte(Summary(r)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", txtPath, err)
	}
	return jsonPath, txtPath, nil
}

// Decode parses a report previously encoded as JSON.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
