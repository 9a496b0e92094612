package nn

import (
	"math"

	"github.com/pkg/errors"
)

// ActivationFunc maps a neuron's weighted sum to its activated value.
type ActivationFunc func(sum float64) float64

// DerivativeFunc is the slope of an ActivationFunc. It receives both the weighted sum
// and the activated value of the neuron; each policy uses whichever is cheaper.
type DerivativeFunc func(sum, activated float64) float64

// Activation pairs an activation function with its derivative. Inference only needs
// Func; training needs both.
type Activation struct {
	Name       string
	Func       ActivationFunc
	Derivative DerivativeFunc
}

func (a Activation) String() string {
	return a.Name
}

// Tanh is the hyperbolic tangent. Its derivative uses the activated value: 1 - a².
var Tanh = Activation{
	Name: "tanh",
	Func: math.Tanh,
	Derivative: func(_, a float64) float64 {
		return 1 - a*a
	},
}

// Sigmoid is the logistic function. Its derivative uses the activated value: a(1-a).
var Sigmoid = Activation{
	Name: "sigmoid",
	Func: logistic,
	Derivative: func(_, a float64) float64 {
		return a * (1 - a)
	},
}

// LogisticSum is the logistic function with a derivative recomputed from the weighted
// sum alone, for callers that hand in a derivative without the activated value.
var LogisticSum = Activation{
	Name: "logistic-sum",
	Func: logistic,
	Derivative: func(s, _ float64) float64 {
		l := logistic(s)
		return l * (1 - l)
	},
}

// Identity passes the weighted sum through unchanged.
var Identity = Activation{
	Name: "identity",
	Func: func(s float64) float64 { return s },
	Derivative: func(_, _ float64) float64 {
		return 1
	},
}

// ReLU is the rectifier. Its derivative uses the weighted sum.
var ReLU = Activation{
	Name: "relu",
	Func: func(s float64) float64 { return math.Max(s, 0) },
	Derivative: func(s, _ float64) float64 {
		if s > 0 {
			return 1
		}
		return 0
	},
}

// ActivatorLookup maps activation names, as used in configuration, to policies.
var ActivatorLookup = map[string]Activation{
	Tanh.Name:        Tanh,
	Sigmoid.Name:     Sigmoid,
	LogisticSum.Name: LogisticSum,
	Identity.Name:    Identity,
	ReLU.Name:        ReLU,
}

// LookupActivation returns the named activation policy.
func LookupActivation(name string) (Activation, error) {
	a, ok := ActivatorLookup[name]
	if !ok {
		return Activation{}, errors.Errorf("invalid activator: %s", name)
	}
	return a, nil
}

func logistic(s float64) float64 {
	return 1 / (1 + math.Exp(-s))
}
