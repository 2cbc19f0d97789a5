package kriging

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Pipeline runs samples through variogram estimation, model fitting and
// rasterization with one Config.
type Pipeline struct {
	cfg          Config
	background   *InterpolatedGrid
	interpolator Interpolator
}

type Result struct {
	// Bins is nil when the model came from Config.Parameters.
	Bins        []VariogramBin
	Fit         *FitResult
	Model       Model
	Spec        GridSpec
	Grid        *InterpolatedGrid
	Regularized bool
}

type VariogramResult struct {
	Bins []VariogramBin `json:"bins"`
	Fit  *FitResult     `json:"fit"`
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	interpolator, err := NewInterpolator(cfg.Interpolator)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, interpolator: interpolator}, nil
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

// SetBackground supplies a grid sampled into the cells left NODATA by the
// hull mask. It fails unless MaskOutsideHull is set, since no cell would
// ever be filled.
func (p *Pipeline) SetBackground(g *InterpolatedGrid) error {
	if g != nil && !p.cfg.MaskOutsideHull {
		return fmt.Errorf("%w: background grid requires maskOutsideHull", ErrInvalidArgument)
	}
	p.background = g
	return nil
}

func (p *Pipeline) prepare(points []SamplePoint) ([]SamplePoint, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: %d samples, need at least 2", ErrInsufficientData, len(points))
	}
	if err := validateSamples(points); err != nil {
		return nil, err
	}
	if p.cfg.DeclusterSize <= 0 {
		return points, nil
	}
	out, err := Decluster(points, p.cfg.DeclusterSize)
	if err != nil {
		return nil, err
	}
	klog.V(2).InfoS("declustered samples", "in", len(points), "out", len(out), "leaf", p.cfg.DeclusterSize)
	if len(out) < 2 {
		return nil, fmt.Errorf("%w: %d samples after declustering", ErrInsufficientData, len(out))
	}
	return out, nil
}

func (p *Pipeline) variogram(ctx context.Context, points []SamplePoint) (*VariogramResult, error) {
	bins, err := EstimateVariogram(ctx, points, EstimateOptions{
		Bins:        p.cfg.Bins,
		MaxDistance: p.cfg.MaxLag,
		Workers:     p.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate variogram: %w", err)
	}
	fit, err := FitVariogram(bins, FitOptions{
		Type:           p.cfg.Model,
		NuggetHint:     p.cfg.NuggetHint,
		FixNugget:      p.cfg.FixNugget,
		SampleVariance: stat.PopVariance(values(points), nil),
		MaxIterations:  p.cfg.MaxIterations,
		Tolerance:      p.cfg.Tolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("fit %s variogram: %w", p.cfg.Model, err)
	}
	return &VariogramResult{Bins: bins, Fit: fit}, nil
}

// Variogram estimates the empirical variogram and fits the configured
// family without rasterizing.
func (p *Pipeline) Variogram(ctx context.Context, points []SamplePoint) (*VariogramResult, error) {
	points, err := p.prepare(points)
	if err != nil {
		return nil, err
	}
	return p.variogram(ctx, points)
}

// Run produces the kriged grid. It returns either a complete Result or an
// error, never a partial grid.
func (p *Pipeline) Run(ctx context.Context, points []SamplePoint) (*Result, error) {
	points, err := p.prepare(points)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if p.cfg.Parameters != nil {
		res.Model = *p.cfg.Parameters
	} else {
		vr, err := p.variogram(ctx, points)
		if err != nil {
			return nil, err
		}
		res.Bins, res.Fit, res.Model = vr.Bins, vr.Fit, vr.Fit.Model
	}

	res.Spec, err = GridSpecForLimit(points, p.cfg.CellSize, p.cfg.MaxCells)
	if err != nil {
		return nil, err
	}

	noData := p.cfg.NoData
	opts := RasterOptions{Solver: p.cfg.solverOptions(), NoData: &noData}
	if p.cfg.MaskOutsideHull {
		hull := NewConvex(points)
		if hull.Degenerate() {
			klog.V(2).InfoS("samples are collinear, hull mask skipped", "samples", len(points))
		} else {
			opts.Hull = hull
		}
	}

	res.Grid, err = Rasterize(ctx, points, res.Model, res.Spec, opts)
	if err != nil {
		return nil, err
	}
	res.Regularized = res.Grid.Regularized

	if p.background != nil {
		if opts.Hull != nil {
			filled := res.Grid.fillFrom(p.background, p.interpolator)
			klog.V(2).InfoS("filled masked cells from background", "cells", filled)
		} else {
			klog.V(2).InfoS("background unused, samples have no hull")
		}
	}

	klog.V(1).InfoS("kriging grid complete",
		"samples", len(points),
		"model", res.Model.String(),
		"cols", res.Spec.NCols,
		"rows", res.Spec.NRows,
		"valid", res.Grid.ValidCount(),
		"regularized", res.Regularized)
	return res, nil
}
