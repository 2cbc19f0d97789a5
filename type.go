package kriging

import (
	"fmt"
	"strings"
)

type ModelType string

const (
	Gaussian    ModelType = "gaussian"
	Exponential ModelType = "exponential"
	Spherical   ModelType = "spherical"
	Linear      ModelType = "linear"
	Power       ModelType = "power"
	HoleEffect  ModelType = "hole-effect"
)

var modelTypes = []ModelType{Gaussian, Exponential, Spherical, Linear, Power, HoleEffect}

// ModelTypes lists every supported variogram family.
func ModelTypes() []ModelType {
	return append([]ModelType(nil), modelTypes...)
}

// ParseModelType accepts the family names case-insensitively, with "_" or
// " " in place of "-" ("hole_effect", "Hole Effect").
func ParseModelType(s string) (ModelType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.NewReplacer("_", "-", " ", "-").Replace(name)
	for _, t := range modelTypes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown variogram model %q", ErrInvalidModel, s)
}

func (t ModelType) valid() bool {
	_, ok := semivariograms[t]
	return ok
}

// Estimate is the kriging result at a single target coordinate.
type Estimate struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Value    float64 `json:"value"`
	Variance float64 `json:"variance"`
}
