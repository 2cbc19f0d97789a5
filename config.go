package kriging

import (
	"fmt"
	"math"
)

const (
	defaultBins     = 6
	defaultCellSize = 5
)

// Config drives a Pipeline. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	Model ModelType `json:"model" yaml:"model"`
	// Bins is the number of lag intervals of the empirical variogram.
	Bins int `json:"bins" yaml:"bins"`
	// MaxLag caps the pair distances entering the variogram. Zero means the
	// largest pairwise distance.
	MaxLag   float64 `json:"maxLag" yaml:"maxLag"`
	CellSize float64 `json:"cellSize" yaml:"cellSize"`
	NoData   float64 `json:"noData" yaml:"noData"`
	// MaxCells bounds the node count of the output grid.
	MaxCells int `json:"maxCells" yaml:"maxCells"`

	NuggetHint    *float64 `json:"nuggetHint,omitempty" yaml:"nuggetHint,omitempty"`
	FixNugget     bool     `json:"fixNugget" yaml:"fixNugget"`
	MaxIterations int      `json:"maxIterations" yaml:"maxIterations"`
	Tolerance     float64  `json:"tolerance" yaml:"tolerance"`
	// Parameters skips fitting and kriges with the given model.
	Parameters *Model `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	Regularize   bool    `json:"regularize" yaml:"regularize"`
	RidgeEpsilon float64 `json:"ridgeEpsilon" yaml:"ridgeEpsilon"`
	MaxCondition float64 `json:"maxCondition" yaml:"maxCondition"`
	ExactValues  bool    `json:"exactValues" yaml:"exactValues"`
	Workers      int     `json:"workers" yaml:"workers"`

	MaskOutsideHull bool `json:"maskOutsideHull" yaml:"maskOutsideHull"`
	// DeclusterSize merges samples sharing a square of this size before
	// anything else runs. Zero disables it.
	DeclusterSize float64 `json:"declusterSize" yaml:"declusterSize"`
	// Interpolator samples a background grid into masked cells, BILINEAR or
	// NEAREST.
	Interpolator string `json:"interpolator,omitempty" yaml:"interpolator,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Model:         Gaussian,
		Bins:          defaultBins,
		CellSize:      defaultCellSize,
		NoData:        DefaultNoData,
		MaxCells:      DefaultMaxCells,
		MaxIterations: defaultFitIterations,
		Tolerance:     defaultFitTolerance,
		RidgeEpsilon:  defaultRidgeEpsilon,
		ExactValues:   true,
	}
}

func nonNegative(name string, v float64) error {
	if v < 0 || !isFinite(v) {
		return fmt.Errorf("%w: %s %v", ErrInvalidArgument, name, v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Parameters != nil {
		if err := c.Parameters.Validate(); err != nil {
			return err
		}
	} else if !c.Model.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidModel, c.Model)
	}
	if c.Bins < 1 {
		return fmt.Errorf("%w: bins %d", ErrInvalidArgument, c.Bins)
	}
	if !(c.CellSize > 0) || math.IsInf(c.CellSize, 0) {
		return fmt.Errorf("%w: cell size %v", ErrInvalidArgument, c.CellSize)
	}
	if c.MaxCells < 1 {
		return fmt.Errorf("%w: max cells %d", ErrInvalidArgument, c.MaxCells)
	}
	if math.IsNaN(c.NoData) {
		return fmt.Errorf("%w: NODATA must be a number", ErrInvalidArgument)
	}
	if c.NuggetHint != nil {
		if err := nonNegative("nugget hint", *c.NuggetHint); err != nil {
			return err
		}
	} else if c.FixNugget {
		return fmt.Errorf("%w: fixed nugget needs a nugget hint", ErrInvalidArgument)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"max lag", c.MaxLag},
		{"tolerance", c.Tolerance},
		{"ridge epsilon", c.RidgeEpsilon},
		{"max condition", c.MaxCondition},
		{"decluster size", c.DeclusterSize},
	} {
		if err := nonNegative(f.name, f.v); err != nil {
			return err
		}
	}
	if _, err := NewInterpolator(c.Interpolator); err != nil {
		return err
	}
	if c.MaxIterations < 0 || c.Workers < 0 {
		return fmt.Errorf("%w: max iterations %d workers %d", ErrInvalidArgument, c.MaxIterations, c.Workers)
	}
	return nil
}

func (c *Config) solverOptions() SolverOptions {
	return SolverOptions{
		Regularize:         c.Regularize,
		RidgeEpsilon:       c.RidgeEpsilon,
		MaxCondition:       c.MaxCondition,
		DisableExactValues: !c.ExactValues,
		Workers:            c.Workers,
	}
}
