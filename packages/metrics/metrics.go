// Package metrics exports the outcome of a run to Prometheus, DataDog or a
// JSON file.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
	"github.com/abdul-hamid-achik/apicase/packages/stats"
)

// Failure kinds of a case.
const (
	KindStatusMismatch = "status_mismatch"
	KindRequestFailed  = "request_failed"
)

// CaseMetrics is one executed test case.
type CaseMetrics struct {
	Name       string  `json:"name"`
	File       string  `json:"file"`
	Method     string  `json:"method"`
	URL        string  `json:"url"`
	Expected   int     `json:"expected_status"`
	Received   int     `json:"received_status,omitempty"`
	DurationMs float64 `json:"duration_ms"`
	Passed     bool    `json:"passed"`
	Kind       string  `json:"kind,omitempty"`
}

// AggregateMetrics summarizes every case of a run.
type AggregateMetrics struct {
	TotalCases       int64   `json:"total_cases"`
	Passed           int64   `json:"passed"`
	Failed           int64   `json:"failed"`
	StatusMismatches int64   `json:"status_mismatches"`
	RequestErrors    int64   `json:"request_errors"`
	Skipped          int64   `json:"skipped"`
	PassRate         float64 `json:"pass_rate"`

	MinDurationMs  float64 `json:"min_duration_ms"`
	MeanDurationMs float64 `json:"mean_duration_ms"`
	P50DurationMs  float64 `json:"p50_duration_ms"`
	P95DurationMs  float64 `json:"p95_duration_ms"`
	P99DurationMs  float64 `json:"p99_duration_ms"`
	MaxDurationMs  float64 `json:"max_duration_ms"`

	StatusCodes map[int]int64             `json:"status_codes"`
	ByFile      map[string]*FileAggregate `json:"by_file"`
}

// FileAggregate summarizes the cases of one file.
type FileAggregate struct {
	File       string  `json:"file"`
	Total      int64   `json:"total"`
	Passed     int64   `json:"passed"`
	Failed     int64   `json:"failed"`
	Skipped    int64   `json:"skipped"`
	DurationMs float64 `json:"duration_ms"`
}

// Snapshot is what exporters receive at the end of a run.
type Snapshot struct {
	Aggregate *AggregateMetrics
	Cases     []*CaseMetrics
	Timestamp time.Time
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	Export(s *Snapshot) error

	// Close releases the exporter, e.g. stops its HTTP endpoint
	Close() error
}

// Collector gathers per-case metrics of a run and hands them to exporters.
// It is safe for concurrent use.
type Collector struct {
	mu          sync.Mutex
	cases       []*CaseMetrics
	files       map[string]*FileAggregate
	statusCodes map[int]int64
	exporters   []Exporter
}

func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{
		files:       make(map[string]*FileAggregate),
		statusCodes: make(map[int]int64),
		exporters:   exporters,
	}
}

// RecordRun adds every case of a file run.
func (c *Collector) RecordRun(run *runner.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fa, ok := c.files[run.File]
	if !ok {
		fa = &FileAggregate{File: run.File}
		c.files[run.File] = fa
	}
	fa.Total += int64(len(run.Results))
	fa.Passed += int64(run.Passed)
	fa.Failed += int64(run.Failed)
	fa.Skipped += int64(run.Skipped)
	fa.DurationMs += milliseconds(run.Duration)

	for _, r := range run.Results {
		m := &CaseMetrics{
			Name:       r.Name,
			File:       run.File,
			Method:     r.Method,
			URL:        r.URL,
			Expected:   int(r.Expected),
			Received:   r.Received,
			DurationMs: milliseconds(r.Duration),
			Passed:     r.Passed,
		}
		switch {
		case r.Passed:
		case r.IsStatusMismatch():
			m.Kind = KindStatusMismatch
		default:
			m.Kind = KindRequestFailed
		}
		if r.Received > 0 {
			c.statusCodes[r.Received]++
		}
		c.cases = append(c.cases, m)
	}
}

// Snapshot combines the recorded cases with the latency summary of the run.
func (c *Collector) Snapshot(summary stats.Summary) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg := &AggregateMetrics{
		TotalCases:       summary.Total,
		Passed:           summary.Passed,
		Failed:           summary.Failed,
		StatusMismatches: summary.StatusMismatches,
		RequestErrors:    summary.RequestErrors,
		Skipped:          summary.Skipped,
		PassRate:         summary.PassRate,
		MinDurationMs:    milliseconds(summary.Min),
		MeanDurationMs:   milliseconds(summary.Mean),
		P50DurationMs:    milliseconds(summary.P50),
		P95DurationMs:    milliseconds(summary.P95),
		P99DurationMs:    milliseconds(summary.P99),
		MaxDurationMs:    milliseconds(summary.Max),
		StatusCodes:      make(map[int]int64, len(c.statusCodes)),
		ByFile:           make(map[string]*FileAggregate, len(c.files)),
	}
	for code, n := range c.statusCodes {
		agg.StatusCodes[code] = n
	}
	for name, fa := range c.files {
		copied := *fa
		agg.ByFile[name] = &copied
	}

	return &Snapshot{
		Aggregate: agg,
		Cases:     append([]*CaseMetrics(nil), c.cases...),
		Timestamp: time.Now(),
	}
}

// Flush exports a snapshot to every exporter. All exporters are tried.
func (c *Collector) Flush(summary stats.Summary) error {
	snap := c.Snapshot(summary)
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Export(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset forgets the recorded cases; exporters are kept.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cases = nil
	c.files = make(map[string]*FileAggregate)
	c.statusCodes = make(map[int]int64)
}

// Close closes all exporters
func (c *Collector) Close() error {
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
