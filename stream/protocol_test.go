package stream

import (
	"bytes"
	"io"
	"math/rand"
	"net"
	"testing"

	"polarnet/nn"
)

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	sent := Event{
		Timeline:   2,
		Index:      40,
		Activation: "tanh",
		Input:      []float64{0.25},
		Desired:    []float64{0, 1},
		Errors:     []float64{-0.5, 0.125},
		Flat:       []float64{2, 1, 2, 0.5, -0.5},
	}
	if err := writer.SendCheckpoint(sent); err != nil {
		t.Fatalf("SendCheckpoint failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	got, err := reader.ReceiveEvent()
	if err != nil {
		t.Fatalf("ReceiveEvent failed: %v", err)
	}
	if got.Timeline != 2 || got.Index != 40 || got.Activation != "tanh" {
		t.Errorf("header fields = %d/%d/%s", got.Timeline, got.Index, got.Activation)
	}
	if len(got.Errors) != 2 || got.Errors[1] != 0.125 {
		t.Errorf("Errors = %v", got.Errors)
	}

	w, err := got.Weights()
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	if w.At(0, 1, 0) != -0.5 {
		t.Errorf("weight = %f, want -0.5", w.At(0, 1, 0))
	}
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendDone(); err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	if _, err := reader.ReceiveEvent(); err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendError(io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveEvent()
	if err == nil || err.Error() != "remote error: unexpected EOF" {
		t.Errorf("Expected remote error, got %v", err)
	}
}

func TestProtocolOneWay(t *testing.T) {
	if err := NewProtocol(&bytes.Buffer{}, nil).SendDone(); err == nil {
		t.Error("expected error sending without a writer")
	}
	if _, err := NewProtocol(nil, &bytes.Buffer{}).Receive(); err == nil {
		t.Error("expected error receiving without a reader")
	}
}

func TestForwarderStreamsTraining(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	topology := nn.Topology{1, 3, 2}
	h, err := nn.GenerateWeights(topology, nn.FanIn(topology, rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]nn.Sample, 7)
	for i := range samples {
		samples[i] = nn.Sample{Input: []float64{float64(i) / 7}, Desired: []float64{1, 0}}
	}

	type result struct {
		history nn.History
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer client.Close()
		p := NewProtocol(nil, client)
		fwd := NewForwarder(p, 0, nn.Tanh.Name)
		out, err := nn.TrainAll(h, samples, nn.TrainArgs{
			SaveFrequency: 3,
			Activation:    nn.Tanh,
			LearningRate:  0.1,
			Observer:      fwd.Observer(),
		})
		if err == nil {
			err = fwd.Err()
		}
		if err == nil {
			err = p.SendDone()
		}
		done <- result{out, err}
	}()

	reader := NewProtocol(server, nil)
	var events []*Event
	for {
		e, err := reader.ReceiveEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReceiveEvent failed: %v", err)
		}
		events = append(events, e)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("training failed: %v", res.err)
	}

	wantIdx := []int{0, 3, 6}
	if len(events) != len(wantIdx) {
		t.Fatalf("got %d events, want %d", len(events), len(wantIdx))
	}
	subs := res.history[len(res.history)-1].SubIterations
	for i, e := range events {
		if e.Index != wantIdx[i] {
			t.Errorf("event %d index = %d, want %d", i, e.Index, wantIdx[i])
		}
		w, err := e.Weights()
		if err != nil {
			t.Fatal(err)
		}
		want := nn.Flatten(subs[i])
		got := nn.Flatten(w)
		for j := range want {
			if want[j] != got[j] {
				t.Fatalf("event %d weight %d = %v, want %v", i, j, got[j], want[j])
			}
		}
	}
}
