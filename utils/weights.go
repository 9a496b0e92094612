package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"polarnet/nn"
	"polarnet/tensor"
)

// HistoryVersion is written into every file; LoadHistory rejects other versions.
const HistoryVersion = "1.0"

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// EntryData is one serialized history entry.
type EntryData struct {
	Final         []*WeightData   `json:"final"`
	SubIterations [][]*WeightData `json:"sub_iterations"`
}

// HistoryFile is the on-disk form of a training history.
type HistoryFile struct {
	Version  string      `json:"version"`
	Topology []int       `json:"topology"`
	Entries  []EntryData `json:"entries"`
}

// WeightsFile holds a single weight tensor.
type WeightsFile struct {
	Version  string        `json:"version"`
	Topology []int         `json:"topology"`
	Layers   []*WeightData `json:"layers"`
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: t.Shape,
		Data:  append([]float64{}, t.Data...), // copy
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) *tensor.Tensor {
	t := tensor.New(wd.Shape...)
	copy(t.Data, wd.Data)
	return t
}

// EncodeWeights converts every layer into weight data named layer0, layer1, ...
func EncodeWeights(w nn.Weights) []*WeightData {
	layers := make([]*WeightData, len(w))
	for k, layer := range w {
		layers[k] = TensorToWeightData(fmt.Sprintf("layer%d", k), tensor.FromDense(layer))
	}
	return layers
}

// DecodeWeights is the inverse of EncodeWeights. The result is validated.
func DecodeWeights(layers []*WeightData) (nn.Weights, error) {
	w := make(nn.Weights, len(layers))
	for k, wd := range layers {
		if wd == nil {
			return nil, errors.Errorf("layer %d missing", k)
		}
		if n := product(wd.Shape); n != len(wd.Data) {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "%s: shape %v needs %d values, have %d", wd.Name, wd.Shape, n, len(wd.Data))
		}
		d, err := WeightDataToTensor(wd).Dense()
		if err != nil {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "%s: %v", wd.Name, err)
		}
		w[k] = d
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// EncodeHistory converts a history into its file form.
func EncodeHistory(h nn.History) *HistoryFile {
	f := &HistoryFile{
		Version: HistoryVersion,
		Entries: make([]EntryData, len(h)),
	}
	if last := h.Last(); last != nil {
		f.Topology = last.Topology()
	}
	for i, e := range h {
		subs := make([][]*WeightData, len(e.SubIterations))
		for j, s := range e.SubIterations {
			subs[j] = EncodeWeights(s)
		}
		f.Entries[i] = EntryData{Final: EncodeWeights(e.Final), SubIterations: subs}
	}
	return f
}

// DecodeHistory converts a history file back, checking that every tensor has the
// declared topology.
func DecodeHistory(f *HistoryFile) (nn.History, error) {
	if f.Version != HistoryVersion {
		return nil, errors.Errorf("unsupported history version %q", f.Version)
	}
	if err := nn.Topology(f.Topology).Validate(); err != nil {
		return nil, err
	}

	decode := func(layers []*WeightData, where string) (nn.Weights, error) {
		w, err := DecodeWeights(layers)
		if err != nil {
			return nil, errors.Wrap(err, where)
		}
		if got := w.Topology(); !sameTopology(got, f.Topology) {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "%s: topology %v, file declares %v", where, got, nn.Topology(f.Topology))
		}
		return w, nil
	}

	h := make(nn.History, len(f.Entries))
	for i, e := range f.Entries {
		final, err := decode(e.Final, fmt.Sprintf("entry %d final", i))
		if err != nil {
			return nil, err
		}
		subs := make([]nn.Weights, len(e.SubIterations))
		for j, s := range e.SubIterations {
			if subs[j], err = decode(s, fmt.Sprintf("entry %d sub-iteration %d", i, j)); err != nil {
				return nil, err
			}
		}
		h[i] = nn.Entry{Final: final, SubIterations: subs}
	}
	return h, nil
}

// SaveHistory saves a training history to a JSON file
func SaveHistory(filepath string, h nn.History) error {
	data, err := json.MarshalIndent(EncodeHistory(h), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal history")
	}
	return errors.Wrap(os.WriteFile(filepath, data, 0644), "failed to write history")
}

// LoadHistory loads a training history from a JSON file
func LoadHistory(filepath string) (nn.History, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read history file")
	}
	var f HistoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal history")
	}
	return DecodeHistory(&f)
}

// SaveWeights saves a single weight tensor to a JSON file
func SaveWeights(filepath string, w nn.Weights) error {
	data, err := json.MarshalIndent(&WeightsFile{
		Version:  HistoryVersion,
		Topology: w.Topology(),
		Layers:   EncodeWeights(w),
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}
	return errors.Wrap(os.WriteFile(filepath, data, 0644), "failed to write weights")
}

// LoadWeights loads a weight tensor from a JSON file
func LoadWeights(filepath string) (nn.Weights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights file")
	}
	var f WeightsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	w, err := DecodeWeights(f.Layers)
	if err != nil {
		return nil, err
	}
	if !sameTopology(w.Topology(), f.Topology) {
		return nil, errors.Wrapf(nn.ErrDimensionMismatch, "topology %v, file declares %v", w.Topology(), nn.Topology(f.Topology))
	}
	return w, nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func sameTopology(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
