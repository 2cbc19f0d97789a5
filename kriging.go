package kriging

import (
	"context"
	"errors"
	"fmt"
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

const (
	defaultRidgeEpsilon = 1e-6
	defaultBatchSize    = 256
	exactTolerance      = 1e-12
)

type SolverOptions struct {
	// Regularize allows one retry with a ridge added to the semivariance
	// diagonal when the system is singular.
	Regularize bool
	// RidgeEpsilon is the ridge relative to the largest semivariance in the
	// system (absolute when every semivariance is zero).
	RidgeEpsilon float64
	// MaxCondition is the largest acceptable condition number of the
	// factorized system. Zero means mat.ConditionTolerance.
	MaxCondition float64
	// DisableExactValues routes targets that coincide with a sample through
	// the linear system instead of returning the sample value.
	DisableExactValues bool
	Workers            int
	BatchSize          int
}

// Kriging is a factorized ordinary kriging system. It is safe for
// concurrent use once constructed.
type Kriging struct {
	pos    []SamplePoint
	values []float64
	model  Model
	opts   SolverOptions

	lu          mat.LU
	cond        float64
	ridge       float64
	regularized bool
}

// NewKriging builds the (n+1)×(n+1) ordinary kriging system for the samples
// and factorizes it once.
func NewKriging(points []SamplePoint, model Model, opts SolverOptions) (*Kriging, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d samples, need at least 2", ErrInsufficientData, n)
	}
	if err := validateSamples(points); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if opts.RidgeEpsilon <= 0 {
		opts.RidgeEpsilon = defaultRidgeEpsilon
	}
	if opts.MaxCondition <= 0 {
		opts.MaxCondition = mat.ConditionTolerance
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	kri := &Kriging{pos: points, values: values(points), model: model, opts: opts}

	a := mat.NewDense(n+1, n+1, nil)
	var maxGamma float64
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			g := kri.model.gamma(distance(points[i].X, points[i].Y, points[j].X, points[j].Y))
			a.Set(i, j, g)
			a.Set(j, i, g)
			maxGamma = math.Max(maxGamma, g)
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
	}

	kri.lu.Factorize(a)
	kri.cond = kri.lu.Cond()
	if !kri.singular() {
		return kri, nil
	}
	if !opts.Regularize {
		return nil, fmt.Errorf("%w: condition number %g", ErrSingularSystem, kri.cond)
	}

	kri.ridge = opts.RidgeEpsilon
	if maxGamma > 0 {
		kri.ridge *= maxGamma
	}
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+kri.ridge)
	}
	kri.lu.Factorize(a)
	kri.cond = kri.lu.Cond()
	if kri.singular() {
		return nil, fmt.Errorf("%w: condition number %g after ridge %g", ErrSingularSystem, kri.cond, kri.ridge)
	}
	kri.regularized = true
	klog.InfoS("kriging system regularized", "samples", n, "ridge", kri.ridge, "condition", kri.cond)
	return kri, nil
}

func (kri *Kriging) singular() bool {
	if logDet, _ := kri.lu.LogDet(); math.IsInf(logDet, -1) || math.IsNaN(logDet) {
		return true
	}
	return math.IsNaN(kri.cond) || math.IsInf(kri.cond, 0) || kri.cond > kri.opts.MaxCondition
}

// Regularized reports whether the ridge retry was needed to factorize the
// system.
func (kri *Kriging) Regularized() bool {
	return kri.regularized
}

// Ridge is the diagonal term added by the regularization retry, or zero.
func (kri *Kriging) Ridge() float64 {
	return kri.ridge
}

// Condition is the condition number of the factorized system.
func (kri *Kriging) Condition() float64 {
	return kri.cond
}

func (kri *Kriging) Model() Model {
	return kri.model
}

func (kri *Kriging) coincident(x, y float64) (int, bool) {
	if kri.opts.DisableExactValues || kri.regularized {
		return 0, false
	}
	for i := range kri.pos {
		if distance(x, y, kri.pos[i].X, kri.pos[i].Y) <= exactTolerance {
			return i, true
		}
	}
	return 0, false
}

type workspace struct {
	rhs *mat.VecDense
	sol *mat.VecDense
}

func (kri *Kriging) newWorkspace() *workspace {
	n := len(kri.pos)
	return &workspace{rhs: mat.NewVecDense(n+1, nil), sol: mat.NewVecDense(n+1, nil)}
}

func (kri *Kriging) solve(x, y float64, ws *workspace) (lambda []float64, mu float64, gamma []float64, err error) {
	n := len(kri.pos)
	for i := 0; i < n; i++ {
		ws.rhs.SetVec(i, kri.model.gamma(distance(x, y, kri.pos[i].X, kri.pos[i].Y)))
	}
	ws.rhs.SetVec(n, 1)
	if err := kri.lu.SolveVecTo(ws.sol, false, ws.rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, 0, nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
		}
	}
	raw := ws.sol.RawVector().Data
	rhs := ws.rhs.RawVector().Data
	return raw[:n], raw[n], rhs[:n], nil
}

// Weights returns the kriging weights of every sample for the target and
// the Lagrange multiplier. The weights sum to one.
func (kri *Kriging) Weights(x, y float64) ([]float64, float64, error) {
	if i, ok := kri.coincident(x, y); ok {
		w := make([]float64, len(kri.pos))
		w[i] = 1
		return w, 0, nil
	}
	lambda, mu, _, err := kri.solve(x, y, kri.newWorkspace())
	if err != nil {
		return nil, 0, err
	}
	return append([]float64(nil), lambda...), mu, nil
}

// Predict estimates the value and kriging variance at (x, y).
func (kri *Kriging) Predict(x, y float64) (Estimate, error) {
	return kri.predict(x, y, kri.newWorkspace())
}

func (kri *Kriging) predict(x, y float64, ws *workspace) (Estimate, error) {
	if i, ok := kri.coincident(x, y); ok {
		return Estimate{X: x, Y: y, Value: kri.values[i]}, nil
	}
	lambda, mu, gamma, err := kri.solve(x, y, ws)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		X:        x,
		Y:        y,
		Value:    floats.Dot(lambda, kri.values),
		Variance: floats.Dot(lambda, gamma) + mu,
	}, nil
}

// PredictAll estimates every target. Targets are processed in batches on a
// worker pool sharing the factorization; ctx is checked between batches.
func (kri *Kriging) PredictAll(ctx context.Context, targets []vec2d.T) ([]Estimate, error) {
	out := make([]Estimate, len(targets))
	if len(targets) == 0 {
		return out, nil
	}
	batch := kri.opts.BatchSize
	batches := (len(targets) + batch - 1) / batch

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(kri.opts.Workers, batches))
	for b := 0; b < batches; b++ {
		start := b * batch
		end := start + batch
		if end > len(targets) {
			end = len(targets)
		}
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ws := kri.newWorkspace()
			for i := start; i < end; i++ {
				e, err := kri.predict(targets[i][0], targets[i][1], ws)
				if err != nil {
					return err
				}
				out[i] = e
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type SolveResult struct {
	Estimates   []Estimate
	Regularized bool
}

// Solve factorizes the kriging system for the samples once and evaluates it
// at every target.
func Solve(ctx context.Context, points []SamplePoint, model Model, targets []vec2d.T, opts SolverOptions) (*SolveResult, error) {
	kri, err := NewKriging(points, model, opts)
	if err != nil {
		return nil, err
	}
	est, err := kri.PredictAll(ctx, targets)
	if err != nil {
		return nil, err
	}
	return &SolveResult{Estimates: est, Regularized: kri.Regularized()}, nil
}
