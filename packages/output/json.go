package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
	"github.com/abdul-hamid-achik/apicase/packages/stats"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Errors   []string    `json:"errors,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total            int          `json:"total"`
	Passed           int          `json:"passed"`
	Failed           int          `json:"failed"`
	Skipped          int          `json:"skipped"`
	StatusMismatches int          `json:"statusMismatches"`
	RequestErrors    int          `json:"requestErrors"`
	Latency          *JSONLatency `json:"latency,omitempty"`
}

// JSONLatency holds latency percentiles in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name     string  `json:"name"`
	File     string  `json:"file"`
	Block    int     `json:"block"`
	Method   string  `json:"method"`
	URL      string  `json:"url"`
	Expected uint16  `json:"expectedStatus"`
	Received int     `json:"receivedStatus,omitempty"`
	Passed   bool    `json:"passed"`
	Kind     string  `json:"kind,omitempty"`
	Remarks  string  `json:"remarks,omitempty"`
	Duration float64 `json:"duration"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer    io.Writer
	results   []JSONTest
	errors    []string
	skipped   int
	collector *stats.Collector
	shared    bool
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:    os.Stdout,
		results:   make([]JSONTest, 0),
		collector: stats.NewCollector(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithCollector makes the summary read from c, which the caller fills.
func JSONWithCollector(c *stats.Collector) JSONOption {
	return func(f *JSONFormatter) {
		f.collector = c
		f.shared = true
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	if !f.shared {
		f.collector.RecordRun(result)
	}
	f.skipped += result.Skipped

	for _, r := range result.Results {
		f.results = append(f.results, JSONTest{
			Name:     r.Name,
			File:     result.File,
			Block:    r.Block,
			Method:   r.Method,
			URL:      r.URL,
			Expected: r.Expected,
			Received: r.Received,
			Passed:   r.Passed,
			Kind:     failureKind(r),
			Remarks:  remarks(r),
			Duration: milliseconds(r.Duration),
		})
	}
}

// FormatError records file level errors such as parse failures.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	s := f.collector.Summary()

	summary := JSONSummary{
		Total:            len(f.results),
		Passed:           int(s.Passed),
		Failed:           int(s.Failed),
		Skipped:          f.skipped,
		StatusMismatches: int(s.StatusMismatches),
		RequestErrors:    int(s.RequestErrors),
	}
	if s.Total > 0 {
		summary.Latency = &JSONLatency{
			Min:  milliseconds(s.Min),
			Mean: milliseconds(s.Mean),
			P50:  milliseconds(s.P50),
			P95:  milliseconds(s.P95),
			P99:  milliseconds(s.P99),
			Max:  milliseconds(s.Max),
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Tests:    f.results,
		Errors:   f.errors,
		Duration: milliseconds(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
