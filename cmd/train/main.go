// polarnet-train: trains networks that map an angle to its point on the unit circle
//
// Usage:
//
//	polarnet-train --arch="1 8 2" --samples=20000 --lr=0.05 --save-every=500 --output=history.json
//	polarnet-train --stream | polarnet-watch
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"polarnet/nn"
	"polarnet/polar"
	"polarnet/store"
	"polarnet/stream"
	"polarnet/utils"
)

var (
	arch         = flag.String("arch", "1 8 2", "Layer sizes, input first")
	activation   = flag.String("activation", "tanh", "Activation: tanh, sigmoid, logistic-sum, identity, relu")
	learningRate = flag.Float64("lr", 0.05, "Learning rate")
	saveEvery    = flag.Int("save-every", 500, "Checkpoint every N samples")
	samples      = flag.Int("samples", 20000, "Number of synthetic samples per timeline")
	seed         = flag.Int64("seed", 1, "Random seed; timeline i uses seed+i")
	initName     = flag.String("init", "fanin", "Weight initializer: fanin, uniform, normal, small")
	signalName   = flag.String("signal", "activated", "Upstream signal: activated, weighted-sum")
	timelines    = flag.Int("timelines", 1, "Independent training timelines to run concurrently")
	dataFile     = flag.String("data", "", "Train on angles read from a file (radians or radians,x,y per line)")
	resumeFile   = flag.String("resume", "", "Continue from a saved history (JSON)")
	outputFile   = flag.String("output", "", "Output history file (JSON)")
	streamOut    = flag.Bool("stream", false, "Write checkpoint events to stdout for polarnet-watch")
	dbFile       = flag.String("db", "", "Log every checkpoint to a SQLite database")
	verbose      = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	if *streamOut {
		utils.Output = os.Stderr
	}

	cfg, err := configFromFlags()
	if err != nil {
		fail("Invalid configuration: %v", err)
	}

	utils.Println("╔══════════════════════════════════════════════════════════════╗")
	utils.Println("║                    Polarnet Trainer                          ║")
	utils.Println("╚══════════════════════════════════════════════════════════════╝")
	utils.Printf("\nConfiguration:\n")
	utils.Printf("  Architecture:  %v\n", nn.Topology(cfg.Architecture))
	utils.Printf("  Activation:    %s\n", cfg.Activation)
	utils.Printf("  Learning Rate: %.4f\n", cfg.LearningRate)
	utils.Printf("  Save every:    %d\n", cfg.SaveFrequency)
	utils.Printf("  Samples:       %d\n", cfg.Samples)
	utils.Printf("  Signal:        %s\n", cfg.Signal)
	utils.Printf("  Timelines:     %d\n", *timelines)
	utils.Println()

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	var base nn.History
	if *resumeFile != "" {
		if base, err = utils.LoadHistory(*resumeFile); err != nil {
			fail("Error loading %s: %v", *resumeFile, err)
		}
		utils.Printf("Resuming from %s (%d entries)\n", *resumeFile, len(base))
	}
	stats.PersistenceTime += time.Since(start)

	var proto *stream.Protocol
	if *streamOut {
		proto = stream.NewProtocol(nil, os.Stdout)
	}

	var db *store.Log
	if *dbFile != "" {
		if db, err = store.Open(*dbFile); err != nil {
			fail("Error opening %s: %v", *dbFile, err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := atomic.NewInt64(0)
	observerTime := atomic.NewDuration(0)
	var trainingSpan utils.Span
	done := make(chan struct{})
	total := int64(cfg.Samples) * int64(*timelines)
	go reportProgress(progress, total, done)

	histories := make([]nn.History, *timelines)
	errs := make([]error, *timelines)
	var wg sync.WaitGroup
	for i := 0; i < *timelines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t := &timeline{
				id:           i,
				cfg:          cfg,
				proto:        proto,
				db:           db,
				progress:     progress,
				observerTime: observerTime,
			}
			start := time.Now()
			histories[i], errs[i] = t.run(ctx, base)
			trainingSpan.Observe(start, time.Now())
		}(i)
	}
	wg.Wait()
	close(done)

	stats.TrainingTime = trainingSpan.Duration()
	stats.ObserverTime = observerTime.Load()

	if proto != nil {
		if err := proto.SendDone(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing stream: %v\n", err)
		}
	}

	failed := false
	for i, err := range errs {
		if err == nil {
			continue
		}
		if err == context.Canceled {
			utils.Printf("Timeline %d interrupted, keeping the samples trained so far\n", i)
			continue
		}
		fmt.Fprintf(os.Stderr, "Timeline %d failed: %v\n", i, err)
		failed = true
	}

	for i, h := range histories {
		if len(h) == 0 {
			continue
		}
		report(i, cfg, h)
		if *outputFile != "" {
			path := outputPath(*outputFile, i, *timelines)
			start := time.Now()
			if err := utils.SaveHistory(path, h); err != nil {
				fmt.Fprintf(os.Stderr, "Error saving %s: %v\n", path, err)
				failed = true
				continue
			}
			stats.PersistenceTime += time.Since(start)
			utils.Printf("Saved timeline %d to %s\n", i, path)
		}
	}

	stats.TotalTime = time.Since(totalStart)
	utils.Printf("\nTraining complete! Total time: %.2fs\n", stats.TotalTime.Seconds())
	utils.PrintTimingStats(stats, int(progress.Load()))

	if failed {
		os.Exit(1)
	}
}

func configFromFlags() (utils.Config, error) {
	topology, err := utils.ParseArchitecture(*arch)
	if err != nil {
		return utils.Config{}, err
	}
	cfg := utils.Config{
		Architecture:  topology,
		Activation:    *activation,
		LearningRate:  *learningRate,
		SaveFrequency: *saveEvery,
		Samples:       *samples,
		Seed:          *seed,
		Init:          *initName,
		Signal:        *signalName,
	}
	if err := utils.ValidateConfig(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Architecture[0] != polar.Inputs || cfg.Architecture[len(cfg.Architecture)-1] != polar.Outputs {
		return cfg, fmt.Errorf("polar networks need %d input and %d outputs, got %v", polar.Inputs, polar.Outputs, nn.Topology(cfg.Architecture))
	}
	if *timelines < 1 {
		return cfg, fmt.Errorf("timelines must be positive")
	}
	return cfg, nil
}

type timeline struct {
	id           int
	cfg          utils.Config
	proto        *stream.Protocol
	db           *store.Log
	progress     *atomic.Int64
	observerTime *atomic.Duration
}

func (t *timeline) run(ctx context.Context, base nn.History) (nn.History, error) {
	rng := rand.New(rand.NewSource(t.cfg.Seed + int64(t.id)))

	history := base
	if history == nil {
		gen, err := utils.Generator(t.cfg.Init, t.cfg.Architecture, rng)
		if err != nil {
			return nil, err
		}
		if history, err = nn.GenerateWeights(t.cfg.Architecture, gen); err != nil {
			return nil, err
		}
	}

	var fwd *stream.Forwarder
	var forward nn.Observer
	if t.proto != nil {
		fwd = stream.NewForwarder(t.proto, t.id, t.cfg.Activation)
		forward = fwd.Observer()
	}
	var rec *store.Recorder
	var record nn.Observer
	var runID int64
	if t.db != nil {
		plain, err := t.cfg.TrainArgs(nil)
		if err != nil {
			return history, err
		}
		if runID, err = t.db.StartRun(t.id, t.cfg.Architecture, plain); err != nil {
			return history, err
		}
		rec = store.NewRecorder(t.db, runID)
		record = rec.Observer()
		utils.Printf("[t%d] logging to run %d\n", t.id, runID)
	}

	args, err := t.cfg.TrainArgs(func(c nn.Checkpoint) {
		start := time.Now()
		defer func() { t.observerTime.Add(time.Since(start)) }()

		utils.Printf("[t%d] sample %6d | input %+.4f | loss %.6f\n", t.id, c.Index, c.Input[0], nn.SquaredError(c.Errors))
		if forward != nil {
			forward(c)
		}
		if record != nil {
			record(c)
		}
	})
	if err != nil {
		return history, err
	}

	samples := polar.Source(rng, t.cfg.Samples)
	if *dataFile != "" {
		f, err := os.Open(*dataFile)
		if err != nil {
			return history, err
		}
		defer f.Close()
		samples = polar.LineSource(f)
	}

	src := &countingSource{SampleSource: samples, count: t.progress}
	history, err = nn.TrainStream(ctx, history, src, args)
	if err == nil && fwd != nil {
		err = fwd.Err()
	}
	if err == nil && rec != nil {
		err = rec.Err()
	}
	if rec != nil && (err == nil || err == context.Canceled) {
		if ferr := t.db.Finish(runID, src.n, history.Last()); ferr != nil && err == nil {
			err = ferr
		}
	}
	return history, err
}

// countingSource counts the samples of one timeline (n) and of all of them (count).
type countingSource struct {
	nn.SampleSource
	count *atomic.Int64
	n     int
}

func (c *countingSource) Next() (nn.Sample, bool, error) {
	s, ok, err := c.SampleSource.Next()
	if ok {
		c.count.Inc()
		c.n++
	}
	return s, ok, err
}

func reportProgress(progress *atomic.Int64, total int64, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			utils.Printf("Progress: %d/%d samples\n", progress.Load(), total)
		}
	}
}

// report evaluates the final weights on a fixed set of probe angles.
func report(id int, cfg utils.Config, h nn.History) {
	act, err := nn.LookupActivation(cfg.Activation)
	if err != nil {
		return
	}
	w := h.Last()

	held := polar.Samples(rand.New(rand.NewSource(cfg.Seed+1000)), 200)
	loss, err := nn.MeanLoss(w, held, act.Func)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Timeline %d: %v\n", id, err)
		return
	}
	utils.Printf("\nTimeline %d: %d entries, held-out loss %.6f\n", id, len(h), loss)
	for _, turns := range []float64{0, 0.25, 0.5, 1, 1.5, 1.75} {
		theta := turns * math.Pi
		x, y, err := polar.Predict(w, act.Func, 1, theta)
		if err != nil {
			continue
		}
		ex, ey := polar.ToCartesian(1, theta)
		utils.Printf("  θ=%.2fπ  predicted (%+.3f, %+.3f)  expected (%+.3f, %+.3f)\n", turns, x, y, ex, ey)
	}
}

func outputPath(path string, id, total int) string {
	if total == 1 {
		return path
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		return fmt.Sprintf("%s.t%d%s", path[:i], id, path[i:])
	}
	return fmt.Sprintf("%s.t%d", path, id)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
