package utils

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"polarnet/nn"
)

// Config holds training configuration
type Config struct {
	Architecture  []int
	Activation    string
	LearningRate  float64
	SaveFrequency int
	Samples       int
	Seed          int64
	Init          string
	Signal        string
}

// DefaultConfig is a small polar network that learns the unit circle in a few
// thousand samples.
func DefaultConfig() Config {
	return Config{
		Architecture:  []int{1, 8, 2},
		Activation:    nn.Tanh.Name,
		LearningRate:  0.05,
		SaveFrequency: 500,
		Samples:       20000,
		Seed:          1,
		Init:          "fanin",
		Signal:        nn.SignalActivated.String(),
	}
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(archStr)
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		arch[i] = n
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if err := nn.Topology(config.Architecture).Validate(); err != nil {
		return err
	}

	if _, err := nn.LookupActivation(config.Activation); err != nil {
		return err
	}

	if !(config.LearningRate > 0) || math.IsInf(config.LearningRate, 0) {
		return errors.Wrapf(nn.ErrInvalidTrainingConfig, "learning rate must be positive, got %v", config.LearningRate)
	}

	if config.SaveFrequency <= 0 {
		return errors.Wrap(nn.ErrInvalidTrainingConfig, "save frequency must be positive")
	}

	if config.Samples < 0 {
		return errors.New("samples must not be negative")
	}

	if _, err := ParseSignal(config.Signal); err != nil {
		return err
	}

	if _, err := Generator(config.Init, config.Architecture, rand.New(rand.NewSource(0))); err != nil {
		return err
	}

	return nil
}

// ParseSignal maps a signal name to nn.Signal.
func ParseSignal(name string) (nn.Signal, error) {
	switch name {
	case nn.SignalActivated.String(), "":
		return nn.SignalActivated, nil
	case nn.SignalWeightedSum.String():
		return nn.SignalWeightedSum, nil
	}
	return 0, errors.Errorf("invalid signal: %s", name)
}

// Generator returns the weight initializer named by init.
func Generator(init string, topology []int, rng nn.RNG) (nn.Generator, error) {
	switch init {
	case "fanin", "":
		return nn.FanIn(topology, rng), nil
	case "uniform":
		return nn.Uniform(rng, -1, 1), nil
	case "normal":
		return nn.Normal(rng, 0, 0.1), nil
	case "small":
		// 0.1 * rand, as the first polar experiments did
		return nn.Uniform(rng, 0, 0.1), nil
	}
	return nil, errors.Errorf("invalid initializer: %s", init)
}

// TrainArgs builds the driver arguments for config.
func (c *Config) TrainArgs(observer nn.Observer) (nn.TrainArgs, error) {
	act, err := nn.LookupActivation(c.Activation)
	if err != nil {
		return nn.TrainArgs{}, err
	}
	signal, err := ParseSignal(c.Signal)
	if err != nil {
		return nn.TrainArgs{}, err
	}
	return nn.TrainArgs{
		SaveFrequency: c.SaveFrequency,
		Activation:    act,
		LearningRate:  c.LearningRate,
		Signal:        signal,
		Observer:      observer,
	}, nil
}

// ResolveActivation picks the activation to evaluate saved weights with: the one
// recorded alongside them, unless the user named one explicitly.
func ResolveActivation(recorded, requested string, explicit bool) string {
	if recorded == "" || explicit {
		return requested
	}
	return recorded
}
