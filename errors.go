package kriging

import "errors"

var (
	ErrInsufficientData      = errors.New("kriging: insufficient data")
	ErrInsufficientBins      = errors.New("kriging: insufficient variogram bins")
	ErrFitDidNotConverge     = errors.New("kriging: variogram fit did not converge")
	ErrSingularSystem        = errors.New("kriging: singular kriging system")
	ErrUnsupportedGridFormat = errors.New("kriging: unsupported grid format")
	ErrMalformedInputRow     = errors.New("kriging: malformed input row")
	ErrNonFiniteSample       = errors.New("kriging: non-finite sample")
	ErrInvalidArgument       = errors.New("kriging: invalid argument")
	ErrInvalidModel          = errors.New("kriging: invalid variogram model")
)
