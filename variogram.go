package kriging

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// VariogramBin aggregates the sample pairs whose separation falls in one lag
// interval.
type VariogramBin struct {
	Center           float64 `json:"center"`
	MeanDistance     float64 `json:"meanDistance"`
	MeanSemivariance float64 `json:"meanSemivariance"`
	Count            uint64  `json:"count"`
}

type EstimateOptions struct {
	// Bins is the number of equal-width lag intervals.
	Bins int
	// MaxDistance caps the lags considered. Zero means the largest pairwise
	// distance of the samples.
	MaxDistance float64
	// Workers bounds the goroutines used for the pair loop. Zero means
	// runtime.NumCPU().
	Workers int
}

type binPartial struct {
	count []uint64
	dist  []float64
	semi  []float64
}

func newBinPartial(n int) *binPartial {
	return &binPartial{count: make([]uint64, n), dist: make([]float64, n), semi: make([]float64, n)}
}

type lagBinner struct {
	maxDistance float64
	width       float64
	n           int
}

// index returns the bin for lag d. Bin k covers (k·w, (k+1)·w], bin 0 also
// holds d == 0, so a lag on a boundary lands in the closer bin.
func (b *lagBinner) index(d float64) (int, bool) {
	if d > b.maxDistance {
		return 0, false
	}
	if b.width == 0 {
		return 0, true
	}
	k := int(math.Ceil(d/b.width)) - 1
	if k < 0 {
		k = 0
	}
	if k >= b.n {
		k = b.n - 1
	}
	for k > 0 && d <= float64(k)*b.width {
		k--
	}
	for k < b.n-1 && d > float64(k+1)*b.width {
		k++
	}
	return k, true
}

func workerCount(workers, jobs int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > jobs {
		workers = jobs
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// pairRows splits the outer pair loop into contiguous, index-ordered chunks
// of roughly equal pair counts.
func pairRows(n, workers int) [][2]int {
	total := n * (n - 1) / 2
	per := (total + workers - 1) / workers
	chunks := make([][2]int, 0, workers)
	start, acc := 0, 0
	for i := 0; i < n; i++ {
		acc += n - 1 - i
		if acc >= per || i == n-1 {
			chunks = append(chunks, [2]int{start, i + 1})
			start, acc = i+1, 0
		}
	}
	return chunks
}

func maxPairDistance(points []SamplePoint) float64 {
	var maxD float64
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := distance(points[i].X, points[i].Y, points[j].X, points[j].Y); d > maxD {
				maxD = d
			}
		}
	}
	return maxD
}

// EstimateVariogram computes the binned empirical semivariogram of the
// samples. Empty bins are omitted, so fewer than opts.Bins bins may be
// returned.
func EstimateVariogram(ctx context.Context, points []SamplePoint, opts EstimateOptions) ([]VariogramBin, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d samples, need at least 2", ErrInsufficientData, n)
	}
	if opts.Bins <= 0 {
		return nil, fmt.Errorf("%w: bins must be > 0, got %d", ErrInvalidArgument, opts.Bins)
	}
	if opts.MaxDistance < 0 || !isFinite(opts.MaxDistance) {
		return nil, fmt.Errorf("%w: max distance %v", ErrInvalidArgument, opts.MaxDistance)
	}
	if err := validateSamples(points); err != nil {
		return nil, err
	}

	maxD := opts.MaxDistance
	if maxD == 0 {
		maxD = maxPairDistance(points)
	}
	binner := &lagBinner{maxDistance: maxD, width: maxD / float64(opts.Bins), n: opts.Bins}

	chunks := pairRows(n, workerCount(opts.Workers, n-1))
	partials := make([]*binPartial, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for w, c := range chunks {
		w, c := w, c
		g.Go(func() error {
			part := newBinPartial(opts.Bins)
			for i := c[0]; i < c[1]; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				pi := &points[i]
				for j := i + 1; j < n; j++ {
					pj := &points[j]
					d := distance(pi.X, pi.Y, pj.X, pj.Y)
					k, ok := binner.index(d)
					if !ok {
						continue
					}
					part.count[k]++
					part.dist[k] += d
					part.semi[k] += 0.5 * pow2(pi.Value-pj.Value)
				}
			}
			partials[w] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newBinPartial(opts.Bins)
	for _, part := range partials {
		for k := 0; k < opts.Bins; k++ {
			total.count[k] += part.count[k]
			total.dist[k] += part.dist[k]
			total.semi[k] += part.semi[k]
		}
	}

	bins := make([]VariogramBin, 0, opts.Bins)
	for k := 0; k < opts.Bins; k++ {
		c := total.count[k]
		if c == 0 {
			continue
		}
		bins = append(bins, VariogramBin{
			Center:           (float64(k) + 0.5) * binner.width,
			MeanDistance:     total.dist[k] / float64(c),
			MeanSemivariance: total.semi[k] / float64(c),
			Count:            c,
		})
	}
	klog.V(3).InfoS("estimated empirical variogram", "samples", n, "maxDistance", maxD, "bins", len(bins), "requested", opts.Bins)
	return bins, nil
}

// PairCount sums the pair counts over bins.
func PairCount(bins []VariogramBin) uint64 {
	var total uint64
	for i := range bins {
		total += bins[i].Count
	}
	return total
}
