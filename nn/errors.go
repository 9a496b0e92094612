package nn

import "github.com/pkg/errors"

// Error kinds returned by the package. They describe caller mistakes and are always
// returned before any numeric work starts; wrap-aware callers match them with errors.Is.
var (
	ErrInvalidTopology       = errors.New("invalid topology")
	ErrDimensionMismatch     = errors.New("dimension mismatch")
	ErrInvalidTrainingConfig = errors.New("invalid training config")
)

func dimensionMismatch(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDimensionMismatch, format, args...)
}
