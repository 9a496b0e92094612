// polarnet-infer: predicts Cartesian points from a saved history, optionally
// evaluating the first layer on encrypted inputs
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"polarnet/core/ckkswrapper"
	"polarnet/nn"
	"polarnet/polar"
	"polarnet/store"
	"polarnet/utils"
)

var (
	historyFile = flag.String("history", "", "History JSON file written by polarnet-train")
	weightsFile = flag.String("weights", "", "Single weights JSON file")
	dbFile      = flag.String("db", "", "SQLite checkpoint log written by polarnet-train --db")
	runID       = flag.Int64("run", 0, "Run to read from the checkpoint log (0 for the last)")
	entry       = flag.Int("entry", -1, "History entry to use (-1 for the last)")
	sub         = flag.Int("sub", -1, "Sub-iteration of the entry (-1 for its final weights)")
	activation  = flag.String("activation", "tanh", "Activation the network was trained with")
	angles      = flag.String("angles", "0 0.25 0.5 0.75 1 1.25 1.5 1.75", "Angles to predict, in multiples of π")
	radius      = flag.Float64("radius", 1, "Radius to scale the outputs by")
	logN        = flag.Int("logN", ckkswrapper.DefaultLogN, "Ring dimension log2")
	encrypted   = flag.Bool("encrypted", false, "Evaluate the first layer under CKKS encryption")
	verbose     = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	utils.Println("╔══════════════════════════════════════════════════════════════╗")
	utils.Println("║                    Polarnet Inference                        ║")
	utils.Println("╚══════════════════════════════════════════════════════════════╝")

	thetas, err := parseAngles(*angles)
	if err != nil {
		fail("Invalid angles: %v", err)
	}

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	weights, recorded, err := loadWeights()
	if err != nil {
		fail("Error loading weights: %v", err)
	}
	stats.PersistenceTime = time.Since(start)

	act, err := nn.LookupActivation(activationName(recorded))
	if err != nil {
		fail("%v", err)
	}
	utils.Printf("Network: %v, %s\n", weights.Topology(), act.Name)

	convert := func(input []float64) ([]float64, error) {
		return nn.Convert(input, weights, act.Func)
	}
	if *encrypted {
		utils.Println("Initializing HE context...")
		start := time.Now()
		heCtx, err := ckkswrapper.NewHeContextWithLogN(*logN)
		if err != nil {
			fail("Error initializing HE: %v", err)
		}
		stats.InitTime = time.Since(start)
		utils.Printf("HE initialization: %.2fs\n", stats.InitTime.Seconds())

		convert = func(input []float64) ([]float64, error) {
			start := time.Now()
			out, err := heCtx.Convert(input, weights, act.Func)
			stats.EncryptionTime += time.Since(start)
			return out, err
		}
	}

	utils.Println("\nRunning inference...")
	var worst float64
	for _, turns := range thetas {
		theta := turns * math.Pi
		out, err := convert([]float64{polar.ToInput(theta)})
		if err != nil {
			fail("Error at θ=%vπ: %v", turns, err)
		}
		x, y, err := polar.InterpretOutputs(*radius, out)
		if err != nil {
			fail("Error at θ=%vπ: %v", turns, err)
		}
		ex, ey := polar.ToCartesian(*radius, theta)
		dist := math.Hypot(x-ex, y-ey)
		worst = math.Max(worst, dist)
		fmt.Printf("θ=%5.2fπ  predicted (%+.4f, %+.4f)  expected (%+.4f, %+.4f)  off by %.4f\n", turns, x, y, ex, ey, dist)
	}
	utils.Printf("\nLargest distance from the circle point: %.4f\n", worst)

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, len(thetas))
}

// loadWeights returns the weights to evaluate and, when the source records it, the
// activation they were trained with.
func loadWeights() (nn.Weights, string, error) {
	switch {
	case *weightsFile != "":
		w, err := utils.LoadWeights(*weightsFile)
		return w, "", err
	case *dbFile != "":
		return fromLog(*dbFile, *runID)
	case *historyFile != "":
		h, err := utils.LoadHistory(*historyFile)
		if err != nil {
			return nil, "", err
		}
		w, err := pick(h, *entry, *sub)
		return w, "", err
	}

	utils.Println("\nNo weights file. Running demo mode...")
	w, err := demoWeights()
	return w, "", err
}

// activationName prefers an explicit -activation over the recorded one.
func activationName(recorded string) string {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "activation" {
			explicit = true
		}
	})
	name := utils.ResolveActivation(recorded, *activation, explicit)
	if recorded != "" && name != recorded {
		utils.Printf("Run was trained with %s, evaluating with %s as requested\n", recorded, name)
	}
	return name
}

func pick(h nn.History, entry, sub int) (nn.Weights, error) {
	if entry < 0 {
		entry = len(h) - 1
	}
	if entry < 0 || entry >= len(h) {
		return nil, fmt.Errorf("entry %d out of range, history has %d", entry, len(h))
	}
	e := h[entry]
	if sub < 0 {
		return e.Final, nil
	}
	if sub >= len(e.SubIterations) {
		return nil, fmt.Errorf("sub-iteration %d out of range, entry has %d", sub, len(e.SubIterations))
	}
	return e.SubIterations[sub], nil
}

func fromLog(path string, id int64) (nn.Weights, string, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer db.Close()

	var run *store.Run
	if id == 0 {
		runs, err := db.Runs()
		if err != nil {
			return nil, "", err
		}
		if len(runs) == 0 {
			return nil, "", fmt.Errorf("%s has no runs", path)
		}
		run = &runs[len(runs)-1]
	} else if run, err = db.Run(id); err != nil {
		return nil, "", err
	}

	final, err := db.Final(run.ID)
	if err == nil {
		utils.Printf("Run %d, final weights after %d samples\n", run.ID, final.Samples)
		w, err := final.Weights()
		return w, run.Activation, err
	}
	if !errors.Is(err, store.ErrUnfinished) {
		return nil, "", err
	}

	rec, err := db.Latest(run.ID)
	if err != nil {
		return nil, "", err
	}
	utils.Printf("Run %d did not finish, using its checkpoint at sample %d (loss %.6f)\n", run.ID, rec.Index, rec.Loss)
	w, err := rec.Weights()
	return w, run.Activation, err
}

// demoWeights trains a default network briefly so the demo has something to show.
func demoWeights() (nn.Weights, error) {
	cfg := utils.DefaultConfig()
	cfg.Activation = *activation
	rng := rand.New(rand.NewSource(cfg.Seed))

	gen, err := utils.Generator(cfg.Init, cfg.Architecture, rng)
	if err != nil {
		return nil, err
	}
	h, err := nn.GenerateWeights(cfg.Architecture, gen)
	if err != nil {
		return nil, err
	}
	args, err := cfg.TrainArgs(nil)
	if err != nil {
		return nil, err
	}
	h, err = nn.TrainAll(h, polar.Samples(rng, cfg.Samples), args)
	if err != nil {
		return nil, err
	}
	return h.Last(), nil
}

func parseAngles(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
