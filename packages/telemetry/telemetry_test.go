package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorded(t *testing.T) (Instrumenter, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(Config{ServiceName: "apicase-test", Version: "test"}, WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = inst.Shutdown(context.Background())
	})
	return inst, recorder
}

func TestInstrumenter_PassedCase(t *testing.T) {
	inst, recorder := newRecorded(t)

	ctx, span := inst.Start(context.Background(), RequestStart{
		Name:     "ping",
		File:     "ping.apicase",
		Block:    1,
		Method:   "GET",
		URL:      "https://example.com/health",
		Expected: 200,
	})
	require.NotNil(t, ctx)
	span.End(RequestResult{StatusCode: 200, Passed: true, Duration: 42 * time.Millisecond})

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	ro := spans[0]
	assert.Equal(t, "ping", ro.Name())
	assert.Equal(t, codes.Ok, ro.Status().Code)
	assertAttribute(t, ro, "http.method", "GET")
	assertAttribute(t, ro, "http.host", "example.com")
	assertAttribute(t, ro, "apicase.case.name", "ping")
	assertAttribute(t, ro, "apicase.case.block", int64(1))
	assertAttribute(t, ro, "apicase.case.expected_status", int64(200))
	assertAttribute(t, ro, "apicase.case.duration_ms", int64(42))
	assertAttribute(t, ro, "apicase.case.passed", true)
}

func TestInstrumenter_FailedCase(t *testing.T) {
	inst, recorder := newRecorded(t)

	_, span := inst.Start(context.Background(), RequestStart{Method: "POST", URL: "https://api.example.com/x"})
	span.End(RequestResult{StatusCode: 404})

	_, span = inst.Start(context.Background(), RequestStart{Name: "boom", Method: "GET", URL: "https://api.example.com/y"})
	span.End(RequestResult{Err: errors.New("timeout")})

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "POST api.example.com", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "HTTP 404", spans[0].Status().Description)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "timeout", spans[1].Status().Description)
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestNew_DisabledIsNoop(t *testing.T) {
	inst, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, Noop(), inst)

	ctx := context.Background()
	got, span := inst.Start(ctx, RequestStart{Name: "x"})
	assert.Equal(t, ctx, got)
	span.End(RequestResult{})
	assert.NoError(t, inst.Shutdown(ctx))
}

func TestSpanNameFor(t *testing.T) {
	assert.Equal(t, "named", spanNameFor(RequestStart{Name: " named "}))
	assert.Equal(t, "GET example.com", spanNameFor(RequestStart{Method: "GET", URL: "http://example.com/a"}))
	assert.Equal(t, "GET", spanNameFor(RequestStart{Method: "GET"}))
	assert.Equal(t, "apicase.case", spanNameFor(RequestStart{}))
}

func assertAttribute(t *testing.T, span sdktrace.ReadOnlySpan, key string, want interface{}) {
	t.Helper()
	for _, attr := range span.Attributes() {
		if string(attr.Key) != key {
			continue
		}
		switch v := want.(type) {
		case string:
			assert.Equal(t, v, attr.Value.AsString(), key)
		case bool:
			assert.Equal(t, v, attr.Value.AsBool(), key)
		case int64:
			assert.Equal(t, v, attr.Value.AsInt64(), key)
		}
		return
	}
	t.Fatalf("attribute %s not found", key)
}
