package telemetry

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerName  = "github.com/abdul-hamid-achik/apicase/packages/telemetry"
	httpHostKey = attribute.Key("http.host")
)

type Instrumenter interface {
	Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan)
	Shutdown(ctx context.Context) error
}

// RequestStart describes the test case about to be sent.
type RequestStart struct {
	Name     string
	File     string
	Block    int
	Method   string
	URL      string
	Expected int
}

type RequestResult struct {
	Err        error
	StatusCode int
	Passed     bool
	Duration   time.Duration
}

type RequestSpan interface {
	End(result RequestResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

// New returns an exporting instrumenter when cfg has an endpoint or an
// exporter or span processor is given, and Noop otherwise.
func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan) {
	ctx, span := m.tracer.Start(
		ctx,
		spanNameFor(info),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(buildSpanAttributes(info)...),
	)
	return ctx, &requestSpan{span: span}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type requestSpan struct {
	span trace.Span
}

func (rs *requestSpan) End(result RequestResult) {
	if rs == nil || rs.span == nil {
		return
	}

	if result.StatusCode > 0 {
		rs.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}
	rs.span.SetAttributes(
		attribute.Bool("apicase.case.passed", result.Passed),
		attribute.Int64("apicase.case.duration_ms", result.Duration.Milliseconds()),
	)

	switch {
	case result.Err != nil:
		rs.span.RecordError(result.Err)
		rs.span.SetStatus(codes.Error, result.Err.Error())
	case !result.Passed:
		rs.span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", result.StatusCode))
	default:
		rs.span.SetStatus(codes.Ok, "OK")
	}
	rs.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ RequestStart) (context.Context, RequestSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) End(RequestResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	name := cfg.ServiceName
	if strings.TrimSpace(name) == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

func buildSpanAttributes(info RequestStart) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	if info.Method != "" {
		attrs = append(attrs, semconv.HTTPMethodKey.String(info.Method))
	}
	if u, err := neturl.Parse(info.URL); err == nil && info.URL != "" {
		if u.Scheme != "" {
			attrs = append(attrs, semconv.HTTPSchemeKey.String(u.Scheme))
		}
		if u.Host != "" {
			attrs = append(attrs, httpHostKey.String(u.Host))
		}
		attrs = append(attrs, semconv.HTTPURLKey.String(u.String()))
	}

	if name := strings.TrimSpace(info.Name); name != "" {
		attrs = append(attrs, attribute.String("apicase.case.name", name))
	}
	if info.File != "" {
		attrs = append(attrs, attribute.String("apicase.case.file", info.File))
	}
	if info.Block > 0 {
		attrs = append(attrs, attribute.Int("apicase.case.block", info.Block))
	}
	if info.Expected > 0 {
		attrs = append(attrs, attribute.Int("apicase.case.expected_status", info.Expected))
	}
	return attrs
}

func spanNameFor(info RequestStart) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return name
	}
	if info.Method != "" {
		if u, err := neturl.Parse(info.URL); err == nil && u.Host != "" {
			return fmt.Sprintf("%s %s", info.Method, u.Host)
		}
		return info.Method
	}
	return "apicase.case"
}
