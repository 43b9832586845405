package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSONExporter writes each snapshot as one JSON document.
type JSONExporter struct {
	writer   io.Writer
	filePath string
	pretty   bool
	version  string
}

// JSONOption is a functional option for JSONExporter
type JSONOption func(*JSONExporter)

func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

// WithJSONFile replaces the file's content on every export.
func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) {
		j.filePath = path
	}
}

func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

// WithJSONVersion records the apicase version in the metadata.
func WithJSONVersion(v string) JSONOption {
	return func(j *JSONExporter) {
		j.version = v
	}
}

func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{pretty: true}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// JSONMetricsOutput is the complete JSON output structure
type JSONMetricsOutput struct {
	Metadata JSONMetadata      `json:"metadata"`
	Summary  *AggregateMetrics `json:"summary"`
	Cases    []*CaseMetrics    `json:"cases"`
}

type JSONMetadata struct {
	GeneratedAt string `json:"generated_at"`
	Version     string `json:"version,omitempty"`
}

func (j *JSONExporter) Export(s *Snapshot) error {
	out := JSONMetricsOutput{
		Metadata: JSONMetadata{
			GeneratedAt: s.Timestamp.Format(time.RFC3339),
			Version:     j.version,
		},
		Summary: s.Aggregate,
		Cases:   s.Cases,
	}
	if out.Cases == nil {
		out.Cases = []*CaseMetrics{}
	}

	var (
		data []byte
		err  error
	)
	if j.pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	data = append(data, '\n')

	if j.filePath != "" {
		if err := os.WriteFile(j.filePath, data, 0644); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}
	if j.writer != nil {
		if _, err := j.writer.Write(data); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (j *JSONExporter) Close() error {
	return nil
}
