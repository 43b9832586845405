package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/abdul-hamid-achik/apicase/packages/core/parser"
	apihttp "github.com/abdul-hamid-achik/apicase/packages/http"
	"github.com/abdul-hamid-achik/apicase/packages/telemetry"
)

type senderFunc func(ctx context.Context, req *apihttp.Request) (*apihttp.Response, error)

func (f senderFunc) Do(ctx context.Context, req *apihttp.Request) (*apihttp.Response, error) {
	return f(ctx, req)
}

func statusSender(code int) Sender {
	return senderFunc(func(context.Context, *apihttp.Request) (*apihttp.Response, error) {
		return &apihttp.Response{StatusCode: code}, nil
	})
}

func pingCase(t *testing.T) *parser.TestCase {
	t.Helper()
	file, err := parser.Parse("testcase: ping\nurl: https://example.com\nstatuscode: 200\nmethod: GET\n", "")
	require.NoError(t, err)
	require.Len(t, file.Cases, 1)
	return file.Cases[0]
}

func TestRunner_PingScenario(t *testing.T) {
	tc := pingCase(t)

	t.Run("status matches", func(t *testing.T) {
		r := NewRunner(nil, WithSender(statusSender(200)))
		results := r.Run(context.Background(), []*parser.TestCase{tc})

		require.Len(t, results, 1)
		assert.True(t, results[0].Passed)
		assert.Equal(t, "ping", results[0].Name)
		assert.Nil(t, results[0].Remarks)
		assert.Equal(t, `✅ Successfully passed test: "ping"`, results[0].String())
	})

	t.Run("status mismatch", func(t *testing.T) {
		r := NewRunner(nil, WithSender(statusSender(404)))
		results := r.Run(context.Background(), []*parser.TestCase{tc})

		require.Len(t, results, 1)
		assert.False(t, results[0].Passed)
		assert.Equal(t, StatusMismatch{Expected: 200, Received: 404}, results[0].Remarks)
		assert.True(t, results[0].IsStatusMismatch())
		assert.Equal(t, 404, results[0].Received)
		assert.Equal(t, `❌ Failed test: "ping", remarks: expected status code: 200, got: 404`, results[0].String())
	})

	t.Run("timeout", func(t *testing.T) {
		r := NewRunner(nil, WithSender(senderFunc(func(context.Context, *apihttp.Request) (*apihttp.Response, error) {
			return nil, apihttp.ErrTimeout
		})))
		results := r.Run(context.Background(), []*parser.TestCase{tc})

		require.Len(t, results, 1)
		assert.False(t, results[0].Passed)
		assert.Equal(t, RequestFailed{Cause: "timeout"}, results[0].Remarks)
		assert.True(t, results[0].IsRequestFailed())
		assert.Equal(t, `❌ Failed test: "ping", remarks: failed due to error: timeout`, results[0].String())
	})
}

func TestRunner_BuildsRequestFromCase(t *testing.T) {
	var got *apihttp.Request
	sender := senderFunc(func(_ context.Context, req *apihttp.Request) (*apihttp.Response, error) {
		got = req
		return &apihttp.Response{StatusCode: 201}, nil
	})

	tc := &parser.TestCase{
		Name:       "create",
		Method:     parser.MethodPost,
		URL:        "{{base}}/users",
		StatusCode: 201,
		Headers:    parser.Headers{"Accept": "application/json"},
		Payload:    parser.Payload{"name": "John"},
	}

	var warnings []string
	r := NewRunner(&Config{Variables: map[string]string{"base": "https://api.example.com"}},
		WithSender(sender),
		WithWarnFunc(func(format string, args ...any) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		}),
	)
	results := r.Run(context.Background(), []*parser.TestCase{tc})

	require.True(t, results[0].Passed)
	require.NotNil(t, got)
	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, "https://api.example.com/users", got.URL)
	assert.Equal(t, map[string]string{"Accept": "application/json"}, got.Headers)
	assert.Equal(t, []string{`payload of test case "create" is not sent`}, warnings)
}

func TestRunner_UnsetMethodNotSent(t *testing.T) {
	var calls int32
	sender := senderFunc(func(context.Context, *apihttp.Request) (*apihttp.Response, error) {
		atomic.AddInt32(&calls, 1)
		return &apihttp.Response{StatusCode: 200}, nil
	})

	tc := &parser.TestCase{Name: "no method", URL: "https://example.com", StatusCode: 200}
	results := NewRunner(nil, WithSender(sender)).Run(context.Background(), []*parser.TestCase{tc})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.False(t, results[0].Passed)
	assert.Equal(t, RequestFailed{Cause: "no method specified"}, results[0].Remarks)
	assert.Equal(t, "<unset>", results[0].Method)
}

func TestRunner_PreservesOrder(t *testing.T) {
	const n = 50
	rng := rand.New(rand.NewSource(1))
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(20)) * time.Millisecond
	}

	sender := senderFunc(func(_ context.Context, req *apihttp.Request) (*apihttp.Response, error) {
		idx, err := strconv.Atoi(strings.TrimPrefix(req.URL, "https://example.com/"))
		if err != nil {
			return nil, err
		}
		time.Sleep(delays[idx])
		return &apihttp.Response{StatusCode: 200 + idx%2}, nil
	})

	cases := make([]*parser.TestCase, n)
	for i := range cases {
		cases[i] = &parser.TestCase{
			Name:       fmt.Sprintf("case-%d", i),
			Method:     parser.MethodGet,
			URL:        fmt.Sprintf("https://example.com/%d", i),
			StatusCode: 200,
		}
	}

	results := NewRunner(nil, WithSender(sender)).Run(context.Background(), cases)

	require.Len(t, results, n)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("case-%d", i), res.Name)
		assert.Equal(t, i%2 == 0, res.Passed, res.Name)
	}
}

func TestRunner_RunsConcurrently(t *testing.T) {
	const n = 10
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	release := make(chan struct{})
	sender := senderFunc(func(context.Context, *apihttp.Request) (*apihttp.Response, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		if active == n {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		return &apihttp.Response{StatusCode: 200}, nil
	})

	cases := make([]*parser.TestCase, n)
	for i := range cases {
		cases[i] = &parser.TestCase{Name: strconv.Itoa(i), Method: parser.MethodGet, URL: "https://example.com", StatusCode: 200}
	}

	results := NewRunner(nil, WithSender(sender)).Run(context.Background(), cases)
	assert.Len(t, results, n)
	assert.Equal(t, n, maxSeen)
}

func TestRunner_FailureDoesNotAffectSiblings(t *testing.T) {
	sender := senderFunc(func(_ context.Context, req *apihttp.Request) (*apihttp.Response, error) {
		if strings.HasSuffix(req.URL, "/bad") {
			return nil, errors.New("connection refused")
		}
		return &apihttp.Response{StatusCode: 200}, nil
	})

	cases := []*parser.TestCase{
		{Name: "a", Method: parser.MethodGet, URL: "https://example.com/a", StatusCode: 200},
		{Name: "bad", Method: parser.MethodGet, URL: "https://example.com/bad", StatusCode: 200},
		{Name: "c", Method: parser.MethodGet, URL: "https://example.com/c", StatusCode: 200},
	}

	results := NewRunner(nil, WithSender(sender)).Run(context.Background(), cases)
	assert.True(t, results[0].Passed)
	assert.Equal(t, RequestFailed{Cause: "connection refused"}, results[1].Remarks)
	assert.True(t, results[2].Passed)
}

func TestRunner_EmptyInput(t *testing.T) {
	results := NewRunner(nil, WithSender(statusSender(200))).Run(context.Background(), nil)
	assert.Empty(t, results)
}

func TestRunner_RunFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/users":
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.Equal(t, "apicase-test", r.Header.Get("User-Agent"))
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	content := `# smoke tests
testcase: health
method: GET
url: ` + server.URL + `/health
statuscode: 200
---
testcase: create user
method: POST
url: ` + server.URL + `/users
statuscode: 201
headers:
  Accept: application/json
---
testcase: missing
method: GET
url: ` + server.URL + `/missing
statuscode: 200
---
testcase: unreachable
method: GET
url: http://127.0.0.1:1/
statuscode: 200
`
	path := filepath.Join(t.TempDir(), "smoke.apicase")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewRunner(&Config{
		Timeout:        5 * time.Second,
		FollowRedirect: true,
		Headers:        map[string]string{"User-Agent": "apicase-test"},
	})
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, result.File)
	require.Len(t, result.Results, 4)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.StatusMismatches)
	assert.Equal(t, 1, result.RequestErrors)
	assert.Equal(t, "health", result.Results[0].Name)
	assert.True(t, result.Results[1].Passed)
	assert.Equal(t, StatusMismatch{Expected: 200, Received: 404}, result.Results[2].Remarks)
	assert.True(t, result.Results[3].IsRequestFailed())
}

func TestRunner_RunFile_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.apicase")
	require.NoError(t, os.WriteFile(path, []byte("testcase: a\nfoo: bar\n"), 0644))

	_, err := NewRunner(nil).RunFile(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrInvalidSection)

	var pe *parser.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "foo", pe.Value)
}

func TestRunner_NameFilter(t *testing.T) {
	file := &parser.File{Path: "x.apicase", Cases: []*parser.TestCase{
		{Name: "users list", Method: parser.MethodGet, URL: "https://example.com", StatusCode: 200},
		{Name: "users create", Method: parser.MethodGet, URL: "https://example.com", StatusCode: 200},
		{Name: "health", Method: parser.MethodGet, URL: "https://example.com", StatusCode: 200},
		{Method: parser.MethodGet, URL: "https://example.com", StatusCode: 200},
	}}

	r := NewRunner(&Config{NameFilter: "users*"}, WithSender(statusSender(200)))
	result := r.RunParsed(context.Background(), file)

	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "users list", result.Results[0].Name)
	assert.Equal(t, "users create", result.Results[1].Name)
}

func TestRunner_ContextCanceled(t *testing.T) {
	sender := senderFunc(func(ctx context.Context, _ *apihttp.Request) (*apihttp.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewRunner(nil, WithSender(sender)).Run(ctx, []*parser.TestCase{pingCase(t)})
	assert.Equal(t, RequestFailed{Cause: "context canceled"}, results[0].Remarks)
}

func TestRunner_Telemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := telemetry.New(telemetry.Config{ServiceName: "runner-test"}, telemetry.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })

	r := NewRunner(nil, WithSender(statusSender(200)), WithInstrumenter(inst))
	r.RunParsed(context.Background(), &parser.File{Path: "ping.apicase", Cases: []*parser.TestCase{pingCase(t)}})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ping", spans[0].Name())
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"users list", "", true},
		{"users list", "*", true},
		{"users list", "users list", true},
		{"users list", "users", false},
		{"users list", "users*", true},
		{"users list", "*list", true},
		{"users list", "*rs l*", true},
		{"users list", "*nope*", false},
		{"a", "abc*", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesName(tt.name, tt.pattern), "%q ~ %q", tt.name, tt.pattern)
	}
}

func TestSelected(t *testing.T) {
	named := &parser.TestCase{Name: "users list"}
	unnamed := &parser.TestCase{}

	assert.True(t, Selected(named, ""))
	assert.True(t, Selected(unnamed, ""))
	assert.True(t, Selected(named, "*"))
	assert.False(t, Selected(unnamed, "*"))
	assert.False(t, Selected(named, "health"))
}

func TestResult_Constructors(t *testing.T) {
	ok := Success("a")
	assert.True(t, ok.Passed)
	assert.Nil(t, ok.Remarks)

	failed := Fail("b", RequestFailed{Cause: "x"})
	assert.False(t, failed.Passed)
	assert.Equal(t, "failed due to error: x", failed.Remarks.String())
	assert.Equal(t, "expected status code: 201, got: 500", StatusMismatch{Expected: 201, Received: 500}.String())
}
