// polarnet-watch: prints what a network predicts at every checkpoint of a training
// run streamed by polarnet-train --stream
//
// Usage:
//
//	polarnet-train --stream | polarnet-watch
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"polarnet/nn"
	"polarnet/polar"
	"polarnet/stream"
	"polarnet/utils"
)

var (
	inputFile = flag.String("in", "", "Read events from a file instead of stdin")
	probes    = flag.Int("probes", 8, "Evenly spaced angles to predict at each checkpoint")
	verbose   = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	var r io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *inputFile, err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	protocol := stream.NewProtocol(r, nil)
	count := 0
	for {
		event, err := protocol.ReceiveEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		count++
		if err := show(event); err != nil {
			fmt.Fprintf(os.Stderr, "Checkpoint %d of timeline %d: %v\n", event.Index, event.Timeline, err)
		}
	}
	utils.Printf("\n%d checkpoints received\n", count)
}

func show(e *stream.Event) error {
	w, err := e.Weights()
	if err != nil {
		return err
	}
	act, err := nn.LookupActivation(e.Activation)
	if err != nil {
		return err
	}

	var sum float64
	for i := 0; i < *probes; i++ {
		theta := 2 * math.Pi * float64(i) / float64(*probes)
		x, y, err := polar.Predict(w, act.Func, 1, theta)
		if err != nil {
			return err
		}
		ex, ey := polar.ToCartesian(1, theta)
		sum += math.Hypot(x-ex, y-ey)
	}
	mean := 0.0
	if *probes > 0 {
		mean = sum / float64(*probes)
	}

	angle := math.NaN()
	if len(e.Input) > 0 {
		angle = polar.FromInput(e.Input[0])
	}
	fmt.Printf("[t%d] sample %6d | angle %.3f rad | loss %.6f | mean distance over %d probes %.4f\n",
		e.Timeline, e.Index, angle, nn.SquaredError(e.Errors), *probes, mean)
	return nil
}
