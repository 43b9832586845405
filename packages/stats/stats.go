package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Collector aggregates test case outcomes and latencies across one or more
// files. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	total      int64
	passed     int64
	mismatches int64
	reqErrors  int64
	skipped    int64

	// latencies in microseconds, 1us to 60s, 3 significant digits
	histogram *hdrhistogram.Histogram
}

func NewCollector() *Collector {
	return &Collector{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
	}
}

// Record adds one test case outcome.
func (c *Collector) Record(res runner.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	switch {
	case res.Passed:
		c.passed++
	case res.IsStatusMismatch():
		c.mismatches++
	default:
		c.reqErrors++
	}

	_ = c.histogram.RecordValue(clampUs(res.Duration))
}

// RecordRun adds every result of a file run.
func (c *Collector) RecordRun(run *runner.RunResult) {
	for _, res := range run.Results {
		c.Record(res)
	}
	c.mu.Lock()
	c.skipped += int64(run.Skipped)
	c.mu.Unlock()
}

func clampUs(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// Summary is a point-in-time view of a Collector.
type Summary struct {
	Total            int64
	Passed           int64
	Failed           int64
	StatusMismatches int64
	RequestErrors    int64
	Skipped          int64
	PassRate         float64

	Min    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Max    time.Duration
	StdDev time.Duration
}

func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Total:            c.total,
		Passed:           c.passed,
		Failed:           c.mismatches + c.reqErrors,
		StatusMismatches: c.mismatches,
		RequestErrors:    c.reqErrors,
		Skipped:          c.skipped,
	}
	if c.total == 0 {
		return s
	}

	s.PassRate = float64(c.passed) / float64(c.total)
	s.Min = usToDuration(float64(c.histogram.Min()))
	s.Mean = usToDuration(c.histogram.Mean())
	s.P50 = usToDuration(float64(c.histogram.ValueAtQuantile(50)))
	s.P95 = usToDuration(float64(c.histogram.ValueAtQuantile(95)))
	s.P99 = usToDuration(float64(c.histogram.ValueAtQuantile(99)))
	s.Max = usToDuration(float64(c.histogram.Max()))
	s.StdDev = usToDuration(c.histogram.StdDev())
	return s
}

func usToDuration(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}

// Reset clears all recorded values, used between watch mode iterations.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total, c.passed, c.mismatches, c.reqErrors, c.skipped = 0, 0, 0, 0, 0
	c.histogram.Reset()
}
