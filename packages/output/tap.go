package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
	errors    []string
}

type tapResult struct {
	number  int
	name    string
	passed  bool
	kind    string
	remarks string
	method  string
	url     string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		f.results = append(f.results, tapResult{
			number:  f.testCount,
			name:    r.Name,
			passed:  r.Passed,
			kind:    failureKind(r),
			remarks: remarks(r),
			method:  r.Method,
			url:     r.URL,
		})
	}
}

// FormatError is reported as a TAP diagnostic line.
func (f *TAPFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, e := range f.errors {
		for _, line := range strings.Split(e, "\n") {
			fmt.Fprintf(f.writer, "# %s\n", line)
		}
	}

	for _, r := range f.results {
		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		severity := "fail"
		if r.kind == KindRequestFailed {
			severity = "error"
		}
		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		fmt.Fprintf(f.writer, "  ---\n")
		fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.remarks))
		fmt.Fprintf(f.writer, "  severity: %s\n", severity)
		fmt.Fprintf(f.writer, "  request: %s\n", escapeYAML(r.method+" "+r.url))
		fmt.Fprintf(f.writer, "  ...\n")
	}

	fmt.Fprintf(f.writer, "# time %dms\n", totalDuration.Milliseconds())
	return nil
}

func escapeYAML(s string) string {
	// wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
