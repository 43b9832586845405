package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoDataDogAPIKey is returned by Export when no API key was configured.
var ErrNoDataDogAPIKey = errors.New("DataDog API key not configured")

// DataDogExporter posts one series payload per run to the DataDog API.
type DataDogExporter struct {
	apiKey   string
	site     string // e.g., "datadoghq.com", "datadoghq.eu"
	endpoint string
	tags     []string
	prefix   string
	client   *http.Client
}

// DataDogOption is a functional option for DataDogExporter
type DataDogOption func(*DataDogExporter)

func WithDataDogAPIKey(apiKey string) DataDogOption {
	return func(d *DataDogExporter) {
		d.apiKey = apiKey
	}
}

// WithDataDogSite sets the DataDog site (e.g., "datadoghq.com", "datadoghq.eu")
func WithDataDogSite(site string) DataDogOption {
	return func(d *DataDogExporter) {
		d.site = site
	}
}

// WithDataDogEndpoint overrides the series URL derived from the site.
func WithDataDogEndpoint(url string) DataDogOption {
	return func(d *DataDogExporter) {
		d.endpoint = url
	}
}

// WithDataDogTags sets additional tags for all metrics
func WithDataDogTags(tags []string) DataDogOption {
	return func(d *DataDogExporter) {
		d.tags = tags
	}
}

func WithDataDogPrefix(prefix string) DataDogOption {
	return func(d *DataDogExporter) {
		d.prefix = prefix
	}
}

func NewDataDogExporter(opts ...DataDogOption) *DataDogExporter {
	d := &DataDogExporter{
		site:   "datadoghq.com",
		prefix: "apicase",
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.endpoint == "" {
		d.endpoint = fmt.Sprintf("https://api.%s/api/v1/series", d.site)
	}
	return d
}

// datadogMetric represents a metric in DataDog format
type datadogMetric struct {
	Metric string   `json:"metric"`
	Type   string   `json:"type"`
	Points [][]any  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

type datadogPayload struct {
	Series []datadogMetric `json:"series"`
}

func (d *DataDogExporter) Export(s *Snapshot) error {
	if d.apiKey == "" {
		return ErrNoDataDogAPIKey
	}
	return d.send(d.series(s))
}

func (d *DataDogExporter) series(s *Snapshot) []datadogMetric {
	now := float64(s.Timestamp.Unix())
	a := s.Aggregate

	point := func(name, kind string, value float64, tags ...string) datadogMetric {
		return datadogMetric{
			Metric: d.prefix + "." + name,
			Type:   kind,
			Points: [][]any{{now, value}},
			Tags:   append(tags, d.tags...),
		}
	}

	series := []datadogMetric{
		point("cases.total", "count", float64(a.TotalCases)),
		point("cases.passed", "count", float64(a.Passed)),
		point("cases.failed", "count", float64(a.StatusMismatches), "reason:"+KindStatusMismatch),
		point("cases.failed", "count", float64(a.RequestErrors), "reason:"+KindRequestFailed),
		point("cases.skipped", "count", float64(a.Skipped)),
		point("cases.pass_rate", "gauge", a.PassRate),
	}

	if a.TotalCases > 0 {
		series = append(series,
			point("duration.min", "gauge", a.MinDurationMs),
			point("duration.avg", "gauge", a.MeanDurationMs),
			point("duration.p50", "gauge", a.P50DurationMs),
			point("duration.p95", "gauge", a.P95DurationMs),
			point("duration.p99", "gauge", a.P99DurationMs),
			point("duration.max", "gauge", a.MaxDurationMs),
		)
	}

	for code, n := range a.StatusCodes {
		series = append(series, point("responses.by_status", "count", float64(n), fmt.Sprintf("status:%d", code)))
	}

	for _, c := range s.Cases {
		result := "result:passed"
		if !c.Passed {
			result = "result:failed"
		}
		series = append(series, point("case.duration", "gauge", c.DurationMs,
			"case:"+c.Name, "file:"+c.File, "method:"+c.Method, result))
	}

	return series
}

func (d *DataDogExporter) send(series []datadogMetric) error {
	jsonData, err := json.Marshal(datadogPayload{Series: series})
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DataDog API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (d *DataDogExporter) Close() error {
	return nil
}
