package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	kriging "github.com/flywave/go-okgrid"
	"github.com/flywave/go-okgrid/geojson"
	"github.com/flywave/go-okgrid/internal/config"
)

const stdio = "-"

type globalOptions struct {
	configPath string

	input      string
	delimiter  string
	composite  bool
	skipHeader bool
	inputEPSG  int
	targetEPSG int
	halfCell   bool

	heightModel  string
	heightOffset float64

	model      string
	bins       int
	maxLag     float64
	cellSize   float64
	noData     float64
	nugget     float64
	fixNugget  bool
	regularize bool
	maskHull   bool
	decluster  float64
	maxCells   int
	workers    int
}

func (o *globalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")

	fs.StringVarP(&o.input, "input", "i", stdio, "sample file: delimited x,y,value text or GeoJSON (.json, .geojson)")
	fs.StringVar(&o.delimiter, "delimiter", "", "column delimiter of text input, \" \" for whitespace")
	fs.BoolVar(&o.composite, "composite", false, "text input rows are \"x,y\"<delimiter>value")
	fs.BoolVar(&o.skipHeader, "skip-header", false, "drop the first line of text input")
	fs.IntVar(&o.inputEPSG, "input-epsg", 0, "EPSG code of GeoJSON coordinates")
	fs.IntVar(&o.targetEPSG, "target-epsg", 0, "EPSG code GeoJSON samples are reprojected to")
	fs.BoolVar(&o.halfCell, "half-cell", false, "write and read Esri cell corners instead of node origins")
	fs.StringVar(&o.heightModel, "height-model", "", "vertical datum of GeoJSON Z values: hae, egm84, egm96 or egm2008")
	fs.Float64Var(&o.heightOffset, "height-offset", 0, "added to GeoJSON Z values after the datum conversion")

	fs.StringVar(&o.model, "model", "", fmt.Sprintf("variogram model %v", kriging.ModelTypes()))
	fs.IntVar(&o.bins, "bins", 0, "number of variogram lag bins")
	fs.Float64Var(&o.maxLag, "max-lag", 0, "largest lag distance of the variogram")
	fs.Float64Var(&o.cellSize, "cell-size", 0, "grid cell size")
	fs.Float64Var(&o.noData, "nodata", kriging.DefaultNoData, "NODATA value")
	fs.Float64Var(&o.nugget, "nugget", 0, "nugget hint for the fit")
	fs.BoolVar(&o.fixNugget, "fix-nugget", false, "hold the nugget at --nugget")
	fs.BoolVar(&o.regularize, "regularize", false, "retry singular systems with a ridge")
	fs.BoolVar(&o.maskHull, "mask-hull", false, "leave cells outside the samples' convex hull as NODATA")
	fs.Float64Var(&o.decluster, "decluster", 0, "merge samples closer than this before kriging")
	fs.IntVar(&o.maxCells, "max-cells", kriging.DefaultMaxCells, "largest number of grid cells")
	fs.IntVar(&o.workers, "workers", 0, "worker goroutines, 0 for one per CPU")
}

// load reads the configuration file and environment, then applies the
// flags set on the command line.
func (o *globalOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	k := &cfg.Kriging
	if flags.Changed("model") {
		t, err := kriging.ParseModelType(o.model)
		if err != nil {
			return cfg, err
		}
		k.Model = t
	}
	if flags.Changed("bins") {
		k.Bins = o.bins
	}
	if flags.Changed("max-lag") {
		k.MaxLag = o.maxLag
	}
	if flags.Changed("cell-size") {
		k.CellSize = o.cellSize
	}
	if flags.Changed("nodata") {
		k.NoData = o.noData
	}
	if flags.Changed("nugget") {
		nugget := o.nugget
		k.NuggetHint = &nugget
	}
	if flags.Changed("fix-nugget") {
		k.FixNugget = o.fixNugget
	}
	if flags.Changed("regularize") {
		k.Regularize = o.regularize
	}
	if flags.Changed("mask-hull") {
		k.MaskOutsideHull = o.maskHull
	}
	if flags.Changed("decluster") {
		k.DeclusterSize = o.decluster
	}
	if flags.Changed("max-cells") {
		k.MaxCells = o.maxCells
	}
	if flags.Changed("workers") {
		k.Workers = o.workers
	}
	if flags.Changed("delimiter") {
		cfg.Input.Delimiter = o.delimiter
	}
	if flags.Changed("composite") {
		cfg.Input.CompositeCoordinates = o.composite
	}
	if flags.Changed("skip-header") {
		cfg.Input.SkipHeader = o.skipHeader
	}
	if flags.Changed("half-cell") {
		cfg.Input.HalfCell = o.halfCell
	}
	if flags.Changed("height-model") {
		cfg.Input.HeightModel = o.heightModel
	}
	if flags.Changed("height-offset") {
		cfg.Input.HeightOffset = o.heightOffset
	}
	return cfg, cfg.Validate()
}

func isGeoJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".geojson":
		return true
	}
	return false
}

func openInput(path string) (io.ReadCloser, error) {
	if path == stdio {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func (o *globalOptions) readSamples(cfg config.Config) ([]kriging.SamplePoint, error) {
	f, err := openInput(o.input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if isGeoJSON(o.input) {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		datum, err := geojson.ParseVerticalDatum(cfg.Input.HeightModel)
		if err != nil {
			return nil, err
		}
		return geojson.Read(data, geojson.Options{
			InputEPSG:    o.inputEPSG,
			TargetEPSG:   o.targetEPSG,
			HeightModel:  datum,
			HeightOffset: cfg.Input.HeightOffset,
		})
	}

	points, skipped, err := kriging.ReadXYZ(f, cfg.XYZOptions())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.input, err)
	}
	if len(skipped) > 0 {
		klog.Warningf("skipped %d malformed rows of %s", len(skipped), o.input)
	}
	klog.V(1).InfoS("read samples", "input", o.input, "samples", len(points))
	return points, nil
}

func readGrid(path string, halfCell bool) (*kriging.InterpolatedGrid, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return kriging.Decode(f, kriging.DecodeOptions{HalfCell: halfCell})
}

// writeOutput streams to stdout for "-" and to a new file otherwise.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == stdio {
		w := bufio.NewWriter(os.Stdout)
		if err := write(w); err != nil {
			return err
		}
		return w.Flush()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
