package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Verbose controls whether progress and timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where progress and timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// Printf writes to Output when Verbose is set.
func Printf(format string, args ...interface{}) {
	if Verbose {
		fmt.Fprintf(Output, format, args...)
	}
}

// Println writes to Output when Verbose is set.
func Println(args ...interface{}) {
	if Verbose {
		fmt.Fprintln(Output, args...)
	}
}

// TimingStats holds timing information for different operations
type TimingStats struct {
	TotalTime       time.Duration
	InitTime        time.Duration
	TrainingTime    time.Duration
	ObserverTime    time.Duration
	PersistenceTime time.Duration
	EncryptionTime  time.Duration
	DecryptionTime  time.Duration
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, steps int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	if steps > 0 {
		fmt.Fprintf(Output, "Average time per sample: %v\n", stats.TrainingTime/time.Duration(steps))
	}
	fmt.Fprintf(Output, "Samples completed: %d\n", steps)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	row := func(name string, d time.Duration) {
		fmt.Fprintf(Output, "  %s: %v (%.1f%%)\n", name, d, percent(d, stats.TotalTime))
	}
	row("Initialization", stats.InitTime)
	row("Training", stats.TrainingTime)
	row("Observer", stats.ObserverTime)
	row("Persistence", stats.PersistenceTime)
	if stats.EncryptionTime > 0 || stats.DecryptionTime > 0 {
		row("Encryption", stats.EncryptionTime)
		row("Decryption", stats.DecryptionTime)
	}
}

func percent(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}

// Span is the wall time from the earliest start to the latest end of intervals
// reported by concurrent workers. Unlike summing their durations it never exceeds
// the elapsed time.
type Span struct {
	mu          sync.Mutex
	first, last time.Time
}

// Observe records one interval.
func (s *Span) Observe(start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.first.IsZero() || start.Before(s.first) {
		s.first = start
	}
	if end.After(s.last) {
		s.last = end
	}
}

// Duration returns the span, zero if nothing was observed.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.first.IsZero() {
		return 0
	}
	return s.last.Sub(s.first)
}
