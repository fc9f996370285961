// Command fallcheck analyses one recorded climbing fall from a keypoint file
// and writes the report, an optional chart and an optional database row.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/climbmate/fallcheck/internal/chart"
	"github.com/climbmate/fallcheck/internal/config"
	"github.com/climbmate/fallcheck/internal/db"
	"github.com/climbmate/fallcheck/internal/fall/pipeline"
	"github.com/climbmate/fallcheck/internal/fall/report"
	"github.com/climbmate/fallcheck/internal/fsutil"
	"github.com/climbmate/fallcheck/internal/input"
	"github.com/climbmate/fallcheck/internal/monitoring"
	"github.com/climbmate/fallcheck/internal/units"
	"github.com/climbmate/fallcheck/internal/version"
)

type options struct {
	in         string
	fps        float64
	holdYMin   float64
	climbStart int
	climbEnd   int
	scaleY     float64
	configPath string
	outDir     string
	name       string
	dbPath     string
	list       int
	html       bool
	png        bool
	unit       string
	verbose    bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fset := flag.NewFlagSet("fallcheck", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&o.in, "in", "", "Keypoint file (.json or .csv)")
	fset.Float64Var(&o.fps, "fps", 0, "Frame rate; overrides the file, required for .csv")
	fset.Float64Var(&o.holdYMin, "hold-y-min", -1, "y of the lowest valid hold in pixels (negative disables the hold check)")
	fset.IntVar(&o.climbStart, "climb-start", -1, "First frame of the climb (negative keeps the file value)")
	fset.IntVar(&o.climbEnd, "climb-end", -1, "Last frame of the climb (negative keeps the file value)")
	fset.Float64Var(&o.scaleY, "scale-y", 0, "Meters per pixel for the v0 correction (0 keeps the file value)")
	fset.StringVar(&o.configPath, "config", "", "Tuning config JSON (defaults to built-in values)")
	fset.StringVar(&o.outDir, "out", "reports", "Output directory for report files")
	fset.StringVar(&o.name, "name", "", "Base name of output files (defaults to the input file name)")
	fset.StringVar(&o.dbPath, "db", "", "SQLite database to record the analysis in")
	fset.IntVar(&o.list, "list", 0, "List the N most recent analyses stored in -db and exit")
	fset.BoolVar(&o.html, "html", false, "Write an interactive HTML chart")
	fset.BoolVar(&o.png, "png", false, "Write a PNG chart")
	fset.StringVar(&o.unit, "units", units.M, "Display unit for the height ("+units.GetValidUnitsString()+")")
	fset.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fset.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if o.version || o.list > 0 {
		return o, nil
	}
	if o.in == "" {
		return nil, errors.New("-in is required")
	}
	if !units.IsValid(o.unit) {
		return nil, fmt.Errorf("invalid -units %q, want one of %s", o.unit, units.GetValidUnitsString())
	}
	if o.name == "" {
		o.name = strings.TrimSuffix(filepath.Base(o.in), filepath.Ext(o.in))
	}
	return o, nil
}

// apply overlays the command-line climb context on seq.
func (o *options) apply(seq *pipeline.Sequence) {
	if o.holdYMin >= 0 {
		v := o.holdYMin
		seq.HoldYMin = &v
	}
	if o.climbStart >= 0 {
		seq.ClimbStart = o.climbStart
	}
	if o.climbEnd >= 0 {
		v := o.climbEnd
		seq.ClimbEnd = &v
	}
	if o.scaleY > 0 {
		seq.ScaleY = o.scaleY
	}
}

func run(o *options, fs fsutil.FileSystem, stdout io.Writer) error {
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	monitoring.SetVerbose(o.verbose)

	if o.list > 0 {
		return listAnalyses(o, stdout)
	}

	cfg := config.DefaultTuningConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(o.configPath); err != nil {
			return err
		}
		monitoring.Logf("loaded tuning config from %s", o.configPath)
	}

	seq, err := input.LoadFile(fs, o.in, o.fps)
	if err != nil {
		return err
	}
	o.apply(seq)

	res, err := pipeline.Analyze(*seq, pipeline.FromConfig(cfg))
	if err != nil {
		return err
	}
	r := res.Report

	fmt.Fprint(stdout, report.Summary(r))
	if o.unit != units.M {
		fmt.Fprintf(stdout, "height (%s): %s\n", o.unit, units.FormatLength(r.Overview.HeightM, r.Overview.SigmaM, o.unit))
	}

	jsonPath, txtPath, err := report.Export(fs, o.outDir, o.name, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\nwrote %s\n", jsonPath, txtPath)

	if o.html || o.png {
		d := chart.FromResult(res)
		if o.html {
			if err := writeChart(fs, filepath.Join(o.outDir, o.name+".html"), d, chart.RenderHTML, stdout); err != nil {
				return err
			}
		}
		if o.png {
			if err := writeChart(fs, filepath.Join(o.outDir, o.name+".png"), d, chart.RenderPNG, stdout); err != nil {
				return err
			}
		}
	}

	if o.dbPath != "" {
		store, err := db.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveReport(r); err != nil {
			return err
		}
		monitoring.Logf("recorded analysis %s in %s", r.ID, o.dbPath)
	}
	return nil
}

func writeChart(fs fsutil.FileSystem, path string, d chart.Data, render func(io.Writer, chart.Data) error, stdout io.Writer) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f, d); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func listAnalyses(o *options, stdout io.Writer) error {
	if o.dbPath == "" {
		return errors.New("-list requires -db")
	}
	store, err := db.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.ListReports(o.list)
	if err != nil {
		return err
	}
	for _, a := range rows {
		lt := a.LandingType
		if lt == "" {
			lt = "-"
		}
		fmt.Fprintf(stdout, "%s  %s  %-14s %6.2f m  %s\n",
			a.ID, a.CreatedAt.Format("2006-01-02 15:04:05"), a.Gate, a.HeightM, lt)
	}
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags)

	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Printf("fallcheck: %v", err)
		os.Exit(2)
	}
	if err := run(o, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Printf("fallcheck: %v", err)
		os.Exit(1)
	}
}
