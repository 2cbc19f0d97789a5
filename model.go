package kriging

import (
	"fmt"
	"math"
)

// Model is a fitted isotropic variogram. Sill is the partial sill, the
// variance above the nugget. The power family ignores Sill and Range and
// uses Scale and Exponent instead.
type Model struct {
	Type     ModelType `json:"type" yaml:"type"`
	Nugget   float64   `json:"nugget" yaml:"nugget"`
	Sill     float64   `json:"sill,omitempty" yaml:"sill,omitempty"`
	Range    float64   `json:"range,omitempty" yaml:"range,omitempty"`
	Scale    float64   `json:"scale,omitempty" yaml:"scale,omitempty"`
	Exponent float64   `json:"exponent,omitempty" yaml:"exponent,omitempty"`
}

type semivariogram func(h float64, m *Model) float64

var semivariograms = map[ModelType]semivariogram{
	Gaussian:    gaussianSemivariance,
	Exponential: exponentialSemivariance,
	Spherical:   sphericalSemivariance,
	Linear:      linearSemivariance,
	Power:       powerSemivariance,
	HoleEffect:  holeEffectSemivariance,
}

func gaussianSemivariance(h float64, m *Model) float64 {
	x := -pow2(h / (m.Range * 4 / 7))
	return m.Nugget + m.Sill*(1.0-exp(x))
}

func exponentialSemivariance(h float64, m *Model) float64 {
	x := -h / (m.Range / 3)
	return m.Nugget + m.Sill*(1.0-exp(x))
}

func sphericalSemivariance(h float64, m *Model) float64 {
	if h > m.Range {
		return m.Nugget + m.Sill
	}
	x := h / m.Range
	return m.Nugget + m.Sill*(1.5*x-0.5*pow3(x))
}

func linearSemivariance(h float64, m *Model) float64 {
	return m.Nugget + m.Sill*math.Min(h/m.Range, 1)
}

func powerSemivariance(h float64, m *Model) float64 {
	if h == 0 {
		return m.Nugget
	}
	return m.Nugget + m.Scale*math.Pow(h, m.Exponent)
}

// holeEffectSemivariance overshoots the sill around 2·Range/3 and then
// oscillates back towards it, so it is the one family that is not
// monotone in h.
func holeEffectSemivariance(h float64, m *Model) float64 {
	x := h / (m.Range / 3)
	return m.Nugget + m.Sill*(1.0-(1.0-x)*exp(-x))
}

// Semivariance evaluates the model at lag h. Semivariance(0) is the nugget.
// A model of unknown type evaluates to NaN.
func (m Model) Semivariance(h float64) float64 {
	if !m.Type.valid() {
		return math.NaN()
	}
	return semivariograms[m.Type](h, &m)
}

// gamma is the semivariance used inside the kriging system: zero at zero
// lag, so the nugget only applies between distinct locations.
func (m *Model) gamma(h float64) float64 {
	if h == 0 {
		return 0
	}
	return m.Semivariance(h)
}

// TotalSill is the plateau of bounded models, nugget included.
func (m Model) TotalSill() float64 {
	return m.Nugget + m.Sill
}

func (m Model) Validate() error {
	if !m.Type.valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidModel, m.Type)
	}
	if !(m.Nugget >= 0) || math.IsInf(m.Nugget, 0) {
		return fmt.Errorf("%w: nugget %v must be >= 0", ErrInvalidModel, m.Nugget)
	}
	if m.Type == Power {
		if !(m.Scale > 0) || math.IsInf(m.Scale, 0) {
			return fmt.Errorf("%w: power scale %v must be > 0", ErrInvalidModel, m.Scale)
		}
		if !(m.Exponent > 0 && m.Exponent < 2) {
			return fmt.Errorf("%w: power exponent %v must be in (0, 2)", ErrInvalidModel, m.Exponent)
		}
		return nil
	}
	if !(m.Sill > 0) || math.IsInf(m.Sill, 0) {
		return fmt.Errorf("%w: sill %v must be > 0", ErrInvalidModel, m.Sill)
	}
	if !(m.Range > 0) || math.IsInf(m.Range, 0) {
		return fmt.Errorf("%w: range %v must be > 0", ErrInvalidModel, m.Range)
	}
	return nil
}

func (m Model) String() string {
	if m.Type == Power {
		return fmt.Sprintf("%s(nugget=%g, scale=%g, exponent=%g)", m.Type, m.Nugget, m.Scale, m.Exponent)
	}
	return fmt.Sprintf("%s(nugget=%g, sill=%g, range=%g)", m.Type, m.Nugget, m.Sill, m.Range)
}
