package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const prometheusShutdownTimeout = 2 * time.Second

// PrometheusExporter renders the last snapshot in the Prometheus text format,
// either to a writer on every export or over HTTP at /metrics.
type PrometheusExporter struct {
	mu     sync.RWMutex
	snap   *Snapshot
	writer io.Writer
	addr   string
	server *http.Server
	ln     net.Listener
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter writes the metrics to w on every export.
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusHTTP serves the metrics on addr, e.g. ":9090".
func WithPrometheusHTTP(addr string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.addr = addr
	}
}

// NewPrometheusExporter creates the exporter and, when configured, starts
// listening right away so scrape errors surface before the first run.
func NewPrometheusExporter(opts ...PrometheusOption) (*PrometheusExporter, error) {
	p := &PrometheusExporter{}
	for _, opt := range opts {
		opt(p)
	}

	if p.addr != "" {
		ln, err := net.Listen("tcp", p.addr)
		if err != nil {
			return nil, fmt.Errorf("prometheus endpoint: %w", err)
		}
		p.ln = ln

		mux := http.NewServeMux()
		mux.Handle("/metrics", p)
		p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			_ = p.server.Serve(ln)
		}()
	}

	return p, nil
}

// Addr is the address the HTTP endpoint listens on, empty when not serving.
func (p *PrometheusExporter) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

func (p *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	p.writeMetrics(w)
}

func (p *PrometheusExporter) Export(s *Snapshot) error {
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()

	if p.writer != nil {
		p.mu.RLock()
		defer p.mu.RUnlock()
		p.writeMetrics(p.writer)
	}
	return nil
}

func (p *PrometheusExporter) writeMetrics(w io.Writer) {
	if p.snap == nil {
		return
	}
	a := p.snap.Aggregate

	fmt.Fprintf(w, "# HELP apicase_cases_total Test cases executed in the last run\n")
	fmt.Fprintf(w, "# TYPE apicase_cases_total gauge\n")
	fmt.Fprintf(w, "apicase_cases_total %d\n", a.TotalCases)
	fmt.Fprintf(w, "# HELP apicase_cases_passed Test cases that passed in the last run\n")
	fmt.Fprintf(w, "# TYPE apicase_cases_passed gauge\n")
	fmt.Fprintf(w, "apicase_cases_passed %d\n", a.Passed)
	fmt.Fprintf(w, "# HELP apicase_cases_failed Test cases that failed in the last run, by reason\n")
	fmt.Fprintf(w, "# TYPE apicase_cases_failed gauge\n")
	fmt.Fprintf(w, "apicase_cases_failed{reason=%q} %d\n", KindStatusMismatch, a.StatusMismatches)
	fmt.Fprintf(w, "apicase_cases_failed{reason=%q} %d\n", KindRequestFailed, a.RequestErrors)
	fmt.Fprintf(w, "# HELP apicase_cases_skipped Test cases left out by the name filter\n")
	fmt.Fprintf(w, "# TYPE apicase_cases_skipped gauge\n")
	fmt.Fprintf(w, "apicase_cases_skipped %d\n", a.Skipped)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP apicase_case_duration_ms Test case duration in milliseconds\n")
	fmt.Fprintf(w, "# TYPE apicase_case_duration_ms gauge\n")
	if a.TotalCases > 0 {
		fmt.Fprintf(w, "apicase_case_duration_ms{quantile=\"min\"} %.3f\n", a.MinDurationMs)
		fmt.Fprintf(w, "apicase_case_duration_ms{quantile=\"mean\"} %.3f\n", a.MeanDurationMs)
		fmt.Fprintf(w, "apicase_case_duration_ms{quantile=\"0.5\"} %.3f\n", a.P50DurationMs)
		fmt.Fprintf(w, "apicase_case_duration_ms{quantile=\"0.95\"} %.3f\n", a.P95DurationMs)
		fmt.Fprintf(w, "apicase_case_duration_ms{quantile=\"0.99\"} %.3f\n", a.P99DurationMs)
		fmt.Fprintf(w, "apicase_case_duration_ms{quantile=\"max\"} %.3f\n", a.MaxDurationMs)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP apicase_responses_by_status Responses by HTTP status code\n")
	fmt.Fprintf(w, "# TYPE apicase_responses_by_status gauge\n")
	codes := make([]int, 0, len(a.StatusCodes))
	for code := range a.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "apicase_responses_by_status{status=\"%d\"} %d\n", code, a.StatusCodes[code])
	}

	if len(a.ByFile) > 0 {
		fmt.Fprintln(w)
		names := make([]string, 0, len(a.ByFile))
		for name := range a.ByFile {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "# HELP apicase_file_cases_failed Failed test cases per file\n")
		fmt.Fprintf(w, "# TYPE apicase_file_cases_failed gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "apicase_file_cases_failed{file=\"%s\"} %d\n", sanitizeLabel(name), a.ByFile[name].Failed)
		}
		fmt.Fprintf(w, "# HELP apicase_file_duration_ms Wall time per file in milliseconds\n")
		fmt.Fprintf(w, "# TYPE apicase_file_duration_ms gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "apicase_file_duration_ms{file=\"%s\"} %.3f\n", sanitizeLabel(name), a.ByFile[name].DurationMs)
		}
	}
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Close shuts down the HTTP endpoint, if any.
func (p *PrometheusExporter) Close() error {
	if p.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), prometheusShutdownTimeout)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
