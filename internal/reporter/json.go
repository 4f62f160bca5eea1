package reporter

import (
	"context"
	"encoding/json"
	"io"
)

// JSONReporter generates JSON probe reports
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// GenerateProbe produces a JSON report
func (r *JSONReporter) GenerateProbe(ctx context.Context, result *ProbeResult) error {
	var output []byte
	var err error

	if r.pretty {
		output, err = json.MarshalIndent(result, "", "  ")
	} else {
		output, err = json.Marshal(result)
	}
	if err != nil {
		return err
	}

	if _, err := r.writer.Write(output); err != nil {
		return err
	}

	_, err = r.writer.Write([]byte("\n"))
	return err
}
