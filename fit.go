package kriging

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"k8s.io/klog/v2"
)

const (
	defaultFitIterations = 2000
	defaultFitTolerance  = 1e-10
	minFitBins           = 3
)

type FitOptions struct {
	Type ModelType
	// NuggetHint seeds the nugget. Nil starts from zero.
	NuggetHint *float64
	// FixNugget holds the nugget at NuggetHint instead of fitting it.
	FixNugget bool
	// SampleVariance is the variance of the sample values, used for the
	// starting sill. Zero falls back to the largest bin semivariance.
	SampleVariance float64
	// MaxIterations caps the Nelder-Mead iterations.
	MaxIterations int
	// Tolerance is the relative change of the weighted residual below which
	// the fit is considered converged.
	Tolerance float64
}

type FitResult struct {
	Model       Model           `json:"model"`
	Residual    float64         `json:"residual"`
	Iterations  int             `json:"iterations"`
	Evaluations int             `json:"evaluations"`
	Status      optimize.Status `json:"-"`
}

// fitParams maps the unconstrained optimizer coordinates onto the model's
// valid domain: scale·θ² for non-negative parameters, 2·sigmoid(θ) for the
// power exponent.
type fitParams struct {
	typ         ModelType
	fixedNugget *float64
	nuggetScale float64
	sillScale   float64
	rangeScale  float64
}

func (p *fitParams) model(theta []float64) Model {
	m := Model{Type: p.typ}
	i := 0
	if p.fixedNugget != nil {
		m.Nugget = *p.fixedNugget
	} else {
		m.Nugget = p.nuggetScale * pow2(theta[0])
		i = 1
	}
	if p.typ == Power {
		m.Scale = p.sillScale * pow2(theta[i])
		m.Exponent = 2 * sigmoid(theta[i+1])
	} else {
		m.Sill = p.sillScale * pow2(theta[i])
		m.Range = p.rangeScale * pow2(theta[i+1])
	}
	return m
}

func (p *fitParams) initial(nugget, sill, rng, exponent float64) []float64 {
	theta := make([]float64, 0, 3)
	if p.fixedNugget == nil {
		theta = append(theta, math.Sqrt(nugget/p.nuggetScale))
	}
	theta = append(theta, math.Sqrt(sill/p.sillScale))
	if p.typ == Power {
		theta = append(theta, logit(exponent/2))
	} else {
		theta = append(theta, math.Sqrt(rng/p.rangeScale))
	}
	return theta
}

func weightedResidual(m *Model, bins []VariogramBin) float64 {
	var sum float64
	for i := range bins {
		r := semivariograms[m.Type](bins[i].Center, m) - bins[i].MeanSemivariance
		sum += float64(bins[i].Count) * r * r
	}
	return sum
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.FunctionThreshold,
		optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

// FitVariogram fits the requested family to the empirical bins by
// minimising the pair-count weighted squared residuals.
func FitVariogram(bins []VariogramBin, opts FitOptions) (*FitResult, error) {
	if !opts.Type.valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidModel, opts.Type)
	}
	if len(bins) < minFitBins {
		return nil, fmt.Errorf("%w: %d bins, need at least %d", ErrInsufficientBins, len(bins), minFitBins)
	}
	if opts.FixNugget && opts.NuggetHint == nil {
		return nil, fmt.Errorf("%w: fixed nugget requires a nugget hint", ErrInvalidArgument)
	}
	nugget := 0.0
	if opts.NuggetHint != nil {
		nugget = *opts.NuggetHint
		if !(nugget >= 0) || math.IsInf(nugget, 0) {
			return nil, fmt.Errorf("%w: nugget hint %v", ErrInvalidArgument, nugget)
		}
	}
	iterations := opts.MaxIterations
	if iterations <= 0 {
		iterations = defaultFitIterations
	}
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = defaultFitTolerance
	}

	var maxGamma, maxCenter float64
	for i := range bins {
		maxGamma = math.Max(maxGamma, bins[i].MeanSemivariance)
		maxCenter = math.Max(maxCenter, bins[i].Center)
	}

	sill := opts.SampleVariance - nugget
	if sill <= 0 {
		sill = maxGamma - nugget
	}
	if sill <= 0 {
		sill = maxGamma
	}
	if sill <= 0 {
		sill = 1
	}
	rng := 0.5 * maxCenter
	if rng <= 0 {
		rng = 1
	}

	p := &fitParams{typ: opts.Type, nuggetScale: sill + nugget, sillScale: sill, rangeScale: rng}
	if opts.FixNugget {
		fixed := nugget
		p.fixedNugget = &fixed
	}
	if opts.Type == Power && maxCenter > 0 {
		// start from a straight line through the largest lag
		p.sillScale = sill / maxCenter
	}
	init := p.initial(nugget, p.sillScale, rng, 1)

	var weight float64
	for i := range bins {
		weight += float64(bins[i].Count)
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			m := p.model(theta)
			return weightedResidual(&m, bins) / weight
		},
	}
	settings := &optimize.Settings{
		MajorIterations: iterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   tolerance * tolerance,
			Relative:   tolerance,
			Iterations: 10 * len(init) * len(init),
		},
	}
	res, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{SimplexSize: 0.25})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitDidNotConverge, err)
	}
	if !converged(res.Status) {
		return nil, fmt.Errorf("%w: %s after %d iterations", ErrFitDidNotConverge, res.Status, res.Stats.MajorIterations)
	}

	m := p.model(res.X)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: degenerate parameters %s: %v", ErrFitDidNotConverge, m, err)
	}
	out := &FitResult{
		Model:       m,
		Residual:    weightedResidual(&m, bins),
		Iterations:  res.Stats.MajorIterations,
		Evaluations: res.Stats.FuncEvaluations,
		Status:      res.Status,
	}
	klog.V(2).InfoS("fitted variogram", "model", m.String(), "residual", out.Residual, "iterations", out.Iterations, "status", res.Status.String())
	return out, nil
}
