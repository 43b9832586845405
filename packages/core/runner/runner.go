package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apicase/packages/core/env"
	"github.com/abdul-hamid-achik/apicase/packages/core/parser"
	"github.com/abdul-hamid-achik/apicase/packages/http"
	"github.com/abdul-hamid-achik/apicase/packages/telemetry"
)

// ErrNoMethod is the cause reported for a case without a method line.
var ErrNoMethod = errors.New("no method specified")

// Sender performs one request. *http.Client implements it.
type Sender interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Runner struct {
	client       Sender
	resolver     *env.Resolver
	instrumenter telemetry.Instrumenter
	config       *Config
	warnFunc     env.WarnFunc
}

type Config struct {
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	Insecure       bool
	Proxy          string
	Headers        map[string]string
	Variables      map[string]string
	NameFilter     string
}

type Option func(*Runner)

// WithSender replaces the HTTP client built from Config.
func WithSender(s Sender) Option {
	return func(r *Runner) {
		r.client = s
	}
}

func WithInstrumenter(inst telemetry.Instrumenter) Option {
	return func(r *Runner) {
		if inst != nil {
			r.instrumenter = inst
		}
	}
}

// WithWarnFunc receives non-fatal problems such as unresolved variables.
func WithWarnFunc(fn env.WarnFunc) Option {
	return func(r *Runner) {
		r.warnFunc = fn
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true}
	}

	r := &Runner{
		resolver:     env.NewResolver(),
		instrumenter: telemetry.Noop(),
		config:       cfg,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		clientOpts := []http.ClientOption{
			http.WithFollowRedirects(cfg.FollowRedirect),
			http.WithValidateSSL(!cfg.Insecure),
			http.WithDefaultHeaders(cfg.Headers),
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxRedirects > 0 {
			clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
		}
		if cfg.Proxy != "" {
			clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
		}
		r.client = http.NewClient(clientOpts...)
	}

	r.resolver.SetVariables(cfg.Variables)
	r.resolver.SetWarnFunc(r.warn)
	return r
}

func (r *Runner) warn(format string, args ...any) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

type RunResult struct {
	File     string
	Results  []Result
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	// StatusMismatches and RequestErrors split Failed by cause.
	StatusMismatches int
	RequestErrors    int
}

// RunFile parses path and runs every case that passes the name filter.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunParsed(ctx, file), nil
}

// RunParsed runs the cases of an already parsed file.
func (r *Runner) RunParsed(ctx context.Context, file *parser.File) *RunResult {
	start := time.Now()
	result := &RunResult{File: file.Path}

	var selected []*parser.TestCase
	for _, tc := range file.Cases {
		if !r.shouldRun(tc) {
			result.Skipped++
			continue
		}
		selected = append(selected, tc)
	}

	result.Results = r.run(ctx, file.Path, selected)
	for _, res := range result.Results {
		switch {
		case res.Passed:
			result.Passed++
		case res.IsStatusMismatch():
			result.Failed++
			result.StatusMismatches++
		default:
			result.Failed++
			result.RequestErrors++
		}
	}

	result.Duration = time.Since(start)
	return result
}

// Run sends every case concurrently, one goroutine per case, and returns the
// results in input order. A failing case never affects its siblings.
func (r *Runner) Run(ctx context.Context, cases []*parser.TestCase) []Result {
	return r.run(ctx, "", cases)
}

func (r *Runner) run(ctx context.Context, path string, cases []*parser.TestCase) []Result {
	results := make([]Result, len(cases))
	var wg sync.WaitGroup

	for i, tc := range cases {
		wg.Add(1)
		go func(idx int, tc *parser.TestCase) {
			defer wg.Done()
			results[idx] = r.execute(ctx, path, tc)
		}(i, tc)
	}

	wg.Wait()
	return results
}

func (r *Runner) execute(ctx context.Context, path string, tc *parser.TestCase) Result {
	ctx, span := r.instrumenter.Start(ctx, telemetry.RequestStart{
		Name:     tc.Name,
		File:     path,
		Block:    tc.Block,
		Method:   string(tc.Method),
		URL:      tc.URL,
		Expected: int(tc.StatusCode),
	})

	start := time.Now()
	res, err := r.send(ctx, tc)
	res.Block = tc.Block
	res.Method = tc.Method.String()
	res.URL = tc.URL
	res.Expected = tc.StatusCode
	res.Duration = time.Since(start)

	span.End(telemetry.RequestResult{
		Err:        err,
		StatusCode: res.Received,
		Passed:     res.Passed,
		Duration:   res.Duration,
	})
	return res
}

func (r *Runner) send(ctx context.Context, tc *parser.TestCase) (Result, error) {
	if !tc.Method.IsSet() {
		return Fail(tc.Name, RequestFailed{Cause: ErrNoMethod.Error()}), ErrNoMethod
	}
	if tc.Payload.Len() > 0 {
		r.warn("payload of test case %q is not sent", tc.Name)
	}

	req := http.BuildRequestFromTestCase(tc, r.resolver.Resolve)
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return Fail(tc.Name, RequestFailed{Cause: err.Error()}), err
	}

	if resp.StatusCode == int(tc.StatusCode) {
		res := Success(tc.Name)
		res.Received = resp.StatusCode
		return res, nil
	}

	res := Fail(tc.Name, StatusMismatch{
		Expected: tc.StatusCode,
		Received: uint16(resp.StatusCode),
	})
	res.Received = resp.StatusCode
	return res, nil
}

func (r *Runner) shouldRun(tc *parser.TestCase) bool {
	return Selected(tc, r.config.NameFilter)
}

// Selected reports whether tc runs under the name filter. With a filter set,
// unnamed cases never run.
func Selected(tc *parser.TestCase, filter string) bool {
	if filter == "" {
		return true
	}
	return tc.Name != "" && MatchesName(tc.Name, filter)
}

// MatchesName reports whether name matches a filter pattern. The pattern
// supports a leading and/or trailing '*' wildcard.
func MatchesName(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}
