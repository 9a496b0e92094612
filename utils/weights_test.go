package utils

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"polarnet/nn"
	"polarnet/tensor"
)

func TestTensorToWeightData(t *testing.T) {
	// Create a test tensor
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	wd := TensorToWeightData("test_weight", ten)

	if wd.Name != "test_weight" {
		t.Errorf("Name = %s, want test_weight", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	for i, v := range wd.Data {
		if expected := float64(i) * 0.5; v != expected {
			t.Errorf("Data[%d] = %f, want %f", i, v, expected)
		}
	}
}

func TestWeightDataToTensor(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	ten := WeightDataToTensor(wd)

	if len(ten.Shape) != 2 || ten.Shape[0] != 3 || ten.Shape[1] != 4 {
		t.Errorf("Shape = %v, want [3, 4]", ten.Shape)
	}
	for i, v := range ten.Data {
		if v != float64(i) {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i))
		}
	}
}

func trainedHistory(t *testing.T) nn.History {
	t.Helper()
	topology := nn.Topology{1, 4, 2}
	h, err := nn.GenerateWeights(topology, nn.FanIn(topology, rand.New(rand.NewSource(5))))
	if err != nil {
		t.Fatalf("GenerateWeights failed: %v", err)
	}
	samples := []nn.Sample{
		{Input: []float64{0.1}, Desired: []float64{1, 0}},
		{Input: []float64{-0.4}, Desired: []float64{0, 1}},
		{Input: []float64{0.7}, Desired: []float64{-1, 0}},
	}
	h, err = nn.TrainAll(h, samples, nn.TrainArgs{SaveFrequency: 2, Activation: nn.Tanh, LearningRate: 0.1})
	if err != nil {
		t.Fatalf("TrainAll failed: %v", err)
	}
	return h
}

func equalWeights(t *testing.T, want, got nn.Weights, where string) {
	t.Helper()
	wr, gr := want.Rows(), got.Rows()
	if len(wr) != len(gr) {
		t.Fatalf("%s: %d layers, want %d", where, len(gr), len(wr))
	}
	for k := range wr {
		for o := range wr[k] {
			for i := range wr[k][o] {
				if wr[k][o][i] != gr[k][o][i] {
					t.Errorf("%s: [%d][%d][%d] = %v, want %v", where, k, o, i, gr[k][o][i], wr[k][o][i])
				}
			}
		}
	}
}

func TestSaveLoadHistory(t *testing.T) {
	tmpDir := t.TempDir()
	historyFile := filepath.Join(tmpDir, "history.json")

	h := trainedHistory(t)
	if err := SaveHistory(historyFile, h); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}

	loaded, err := LoadHistory(historyFile)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(loaded) != len(h) {
		t.Fatalf("entries = %d, want %d", len(loaded), len(h))
	}
	for i := range h {
		equalWeights(t, h[i].Final, loaded[i].Final, "final")
		if len(loaded[i].SubIterations) != len(h[i].SubIterations) {
			t.Fatalf("entry %d: %d sub-iterations, want %d", i, len(loaded[i].SubIterations), len(h[i].SubIterations))
		}
		for j := range h[i].SubIterations {
			equalWeights(t, h[i].SubIterations[j], loaded[i].SubIterations[j], "sub-iteration")
		}
	}
	if len(loaded[0].SubIterations) != 0 || len(loaded[1].SubIterations) != 2 {
		t.Errorf("unexpected sub-iteration counts %d, %d", len(loaded[0].SubIterations), len(loaded[1].SubIterations))
	}
}

func TestDecodeHistoryTopologyMismatch(t *testing.T) {
	f := EncodeHistory(trainedHistory(t))
	f.Topology = []int{1, 5, 2}
	if _, err := DecodeHistory(f); !errors.Is(err, nn.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}

	f = EncodeHistory(trainedHistory(t))
	f.Entries[1].Final[0].Data = f.Entries[1].Final[0].Data[:2]
	if _, err := DecodeHistory(f); !errors.Is(err, nn.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch for short data, got %v", err)
	}

	f = EncodeHistory(trainedHistory(t))
	f.Version = "0.1"
	if _, err := DecodeHistory(f); err == nil {
		t.Error("expected version error")
	}
}

func TestSaveLoadWeights(t *testing.T) {
	weightsFile := filepath.Join(t.TempDir(), "test_weights.json")

	w := trainedHistory(t).Last()
	if err := SaveWeights(weightsFile, w); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	loaded, err := LoadWeights(weightsFile)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	equalWeights(t, w, loaded, "weights")
}

func TestLoadWeightsNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/path/weights.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadWeightsInvalidJSON(t *testing.T) {
	badFile := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badFile, []byte("not valid json"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadWeights(badFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if _, err := LoadHistory(badFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
