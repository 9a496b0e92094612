package nn

import (
	"context"

	"github.com/pkg/errors"
)

// Checkpoint is what the training driver reports at every saved sub-iteration.
type Checkpoint struct {
	// Index is the zero-based position of the sample in the training sequence.
	Index       int
	Input       []float64
	Desired     []float64
	Previous    Weights
	Weights     Weights
	Gradients   Gradients
	Activations ActivationRecord
	Errors      []float64
}

// Observer is notified synchronously at every checkpoint. It is a sink only: it may
// take as long as it likes, but nothing it returns or does steers training, and it
// must not modify the weights it is handed.
type Observer func(Checkpoint)

// SampleSource yields training samples in order. Next returns false once the
// sequence is exhausted.
type SampleSource interface {
	Next() (Sample, bool, error)
}

type sliceSource struct {
	samples []Sample
	pos     int
}

// SliceSource yields samples in slice order.
func SliceSource(samples []Sample) SampleSource {
	return &sliceSource{samples: samples}
}

func (s *sliceSource) Next() (Sample, bool, error) {
	if s.pos >= len(s.samples) {
		return Sample{}, false, nil
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, true, nil
}

// TrainArgs configures a training run.
type TrainArgs struct {
	// SaveFrequency is the checkpoint interval: samples 0, k, 2k, ... are saved.
	SaveFrequency int
	Activation    Activation
	LearningRate  float64
	Signal        Signal
	// Observer may be nil.
	Observer Observer
}

func (a TrainArgs) options() Options {
	return Options{
		Activation:   a.Activation,
		LearningRate: a.LearningRate,
		Signal:       a.Signal,
	}
}

func (a TrainArgs) validate() error {
	if a.SaveFrequency <= 0 {
		return errors.Wrapf(ErrInvalidTrainingConfig, "save frequency must be positive, got %d", a.SaveFrequency)
	}
	return a.options().validate()
}

// TrainAll trains on samples in order, starting from the last weights of history, and
// returns history extended by one entry.
func TrainAll(history History, samples []Sample, args TrainArgs) (History, error) {
	return TrainStream(context.Background(), history, SliceSource(samples), args)
}

// TrainStream is TrainAll over a pull-based source. ctx is checked between samples
// only. When it is cancelled, the samples trained so far are still appended as an
// entry and the extended history is returned together with ctx.Err().
//
// A sample that fails validation aborts the run without extending the history.
func TrainStream(ctx context.Context, history History, source SampleSource, args TrainArgs) (History, error) {
	if err := args.validate(); err != nil {
		return history, err
	}
	current := history.Last()
	if current == nil {
		return history, errors.Wrap(ErrInvalidTrainingConfig, "history has no weights to start from")
	}
	if err := current.Validate(); err != nil {
		return history, err
	}

	opts := args.options()
	snapshots := []Weights{}
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return history.Append(Entry{Final: current, SubIterations: snapshots}), err
		}

		sample, ok, err := source.Next()
		if err != nil {
			return history, errors.Wrapf(err, "reading sample %d", n)
		}
		if !ok {
			break
		}

		step, err := TrainOnceWith(current, sample, opts)
		if err != nil {
			return history, errors.Wrapf(err, "sample %d", n)
		}
		previous := current
		current = step.Weights

		if n%args.SaveFrequency == 0 {
			snapshots = append(snapshots, current)
			if args.Observer != nil {
				args.Observer(Checkpoint{
					Index:       n,
					Input:       sample.Input,
					Desired:     sample.Desired,
					Previous:    previous,
					Weights:     current,
					Gradients:   step.Gradients,
					Activations: step.Activations,
					Errors:      step.Errors,
				})
			}
		}
	}

	return history.Append(Entry{Final: current, SubIterations: snapshots}), nil
}
