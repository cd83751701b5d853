// Command tabletop finds horizontal surfaces and the objects resting on
// them in an organized PCD file and prints a JSON report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/config"
	"github.com/banshee-data/tabletop/internal/debugviz"
	"github.com/banshee-data/tabletop/internal/fsutil"
	"github.com/banshee-data/tabletop/internal/monitoring"
	"github.com/banshee-data/tabletop/internal/perception"
	"github.com/banshee-data/tabletop/internal/store"
	"github.com/banshee-data/tabletop/internal/version"
)

type planeReport struct {
	Normal      [3]float64  `json:"normal"`
	Point       [3]float64  `json:"point"`
	InlierCount int         `json:"inlier_count"`
	Hull        []orb.Point `json:"hull"`
}

type objectReport struct {
	Centroid   [3]float64 `json:"centroid"`
	Height     float64    `json:"height"`
	PointCount int        `json:"point_count"`
}

type report struct {
	Source     string            `json:"source"`
	RunID      string            `json:"run_id,omitempty"`
	Params     perception.Params `json:"params"`
	Planes     []planeReport     `json:"planes"`
	Objects    []objectReport    `json:"objects"`
	Stats      perception.Stats  `json:"stats"`
	DebugFiles []string          `json:"debug_files,omitempty"`
}

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], fsutil.OSFileSystem{}, os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(args []string, fsys fsutil.FileSystem, stdout, stderr io.Writer) int {
	if err := runErr(args, fsys, stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "tabletop: %v\n", err)
		return 1
	}
	return 0
}

func runErr(args []string, fsys fsutil.FileSystem, stdout, stderr io.Writer) error {
	fl := flag.NewFlagSet("tabletop", flag.ContinueOnError)
	fl.SetOutput(stderr)
	input := fl.String("input", "", "Organized PCD file to process (required)")
	configPath := fl.String("config", "", "Tuning config file (.json, .yaml or .yml)")
	seed := fl.Int64("seed", perception.DefaultSeed, "RANSAC seed")
	preferLargest := fl.Bool("prefer-largest", false, "Keep only the largest connected component of each plane")
	outside := fl.Bool("objects-outside-hull", false, "Select objects outside the plane hulls instead of over them")
	dbPath := fl.String("db", "", "SQLite database to record the run in")
	debugDir := fl.String("debug-dir", "", "Directory for PNG/HTML debug renderings")
	logLevel := fl.String("log-level", "ops", "Log level: off, ops, diag or trace")
	showVersion := fl.Bool("version", false, "Print version and exit")
	if err := fl.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "tabletop %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return nil
	}
	if *input == "" {
		fmt.Fprintln(stderr, "tabletop: -input is required")
		fl.Usage()
		return errUsage
	}

	writers, err := perception.WritersForLevel(*logLevel, stderr)
	if err != nil {
		return err
	}
	perception.SetLogWriters(writers)
	monitoring.SetOutput(stderr)

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		if cfg, err = config.LoadTuningConfigFS(fsys, *configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	params := cfg.ToParams()

	// Flags given explicitly override the config file.
	fl.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			params.Seed = *seed
		case "prefer-largest":
			params.PreferLargestConnectedComponent = *preferLargest
		case "objects-outside-hull":
			params.ObjectsOutsideHull = *outside
		}
	})
	if *debugDir != "" {
		params.DebugVisualization = true
	}

	extractor, err := perception.NewExtractor(params)
	if err != nil {
		return err
	}

	grid, err := cloud.LoadPCD(fsys, *input)
	if err != nil {
		return err
	}
	monitoring.Logf("loaded %s: %dx%d, %d valid cells", *input, grid.Rows, grid.Cols, grid.ValidCount())

	res := extractor.Extract(grid)
	rep := buildReport(*input, params, res)

	if *debugDir != "" {
		files, err := debugviz.RenderAll(fsys, *debugDir, grid.Rows, grid.Cols, res)
		if err != nil {
			return fmt.Errorf("render debug output: %w", err)
		}
		rep.DebugFiles = files
	}

	if *dbPath != "" {
		id, err := saveRun(*dbPath, *input, params, res)
		if err != nil {
			return err
		}
		rep.RunID = id
		monitoring.Logf("recorded run %s in %s", id, *dbPath)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func saveRun(path, source string, params perception.Params, res *perception.Result) (string, error) {
	s, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer s.Close()
	if err := s.MigrateUp(); err != nil {
		return "", err
	}
	return s.SaveRun(context.Background(), source, params, res)
}

func buildReport(source string, params perception.Params, res *perception.Result) report {
	rep := report{
		Source:  source,
		Params:  params,
		Planes:  make([]planeReport, len(res.Planes)),
		Objects: make([]objectReport, len(res.Objects)),
		Stats:   res.Stats,
	}
	for i, seg := range res.Planes {
		n, p := seg.Plane.Normal, seg.Plane.Point
		rep.Planes[i] = planeReport{
			Normal:      [3]float64{n.X, n.Y, n.Z},
			Point:       [3]float64{p.X, p.Y, p.Z},
			InlierCount: seg.InlierCount(),
			Hull:        seg.Hull.Vertices,
		}
	}
	for i, obj := range res.Objects {
		c := obj.Centroid
		rep.Objects[i] = objectReport{
			Centroid:   [3]float64{c.X, c.Y, c.Z},
			Height:     obj.Height,
			PointCount: len(obj.Points),
		}
	}
	return rep
}
