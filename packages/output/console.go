package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
	"github.com/abdul-hamid-achik/apicase/packages/stats"
)

type ConsoleFormatter struct {
	writer    io.Writer
	verbose   bool
	noColor   bool
	collector *stats.Collector
	// shared collectors are filled by the caller
	shared bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer:    os.Stdout,
		collector: stats.NewCollector(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithCollector makes the summary read from c. The caller records every
// result into c and may reset it between watch iterations.
func WithCollector(c *stats.Collector) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.collector = c
		f.shared = true
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if !f.shared {
		f.collector.RecordRun(result)
	}

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+result.File))

	for _, r := range result.Results {
		if r.Passed {
			fmt.Fprintln(f.writer, green(r.String()))
		} else {
			fmt.Fprintln(f.writer, red(r.String()))
		}

		if f.verbose {
			status := "-"
			if r.Received > 0 {
				status = fmt.Sprintf("%d", r.Received)
			}
			fmt.Fprintf(f.writer, "    %s %s -> %s (expected %d) %s\n",
				r.Method, r.URL, status, r.Expected, cyan(fmt.Sprintf("%dms", r.Duration.Milliseconds())))
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("apicase"), version)
}

// Flush prints the summary across every file formatted so far.
func (f *ConsoleFormatter) Flush(totalDuration time.Duration) error {
	s := f.collector.Summary()
	if s.Total == 0 && s.Skipped == 0 {
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Summary"))
	fmt.Fprintf(f.writer, "  Cases:    %d passed, %d failed, %d skipped (%.1f%% pass rate)\n",
		s.Passed, s.Failed, s.Skipped, s.PassRate*100)
	if s.Failed > 0 {
		fmt.Fprintf(f.writer, "  Failures: %d status mismatch, %d request error\n",
			s.StatusMismatches, s.RequestErrors)
	}
	if s.Total > 0 {
		fmt.Fprintf(f.writer, "  Latency:  min %s, p50 %s, p95 %s, p99 %s, max %s\n",
			formatDuration(s.Min), formatDuration(s.P50), formatDuration(s.P95),
			formatDuration(s.P99), formatDuration(s.Max))
	}
	fmt.Fprintf(f.writer, "  Time:     %dms\n\n", totalDuration.Milliseconds())
	return nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
