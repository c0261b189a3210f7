package reporter

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ppiankov/kafkalens/internal/analyzer"
	"github.com/ppiankov/kafkalens/internal/guard"
)

// JSONReporter generates JSON reports
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

// DeletionOutput is the JSON form of a delete request outcome.
type DeletionOutput struct {
	Kind  guard.Kind  `json:"kind"`
	Name  string      `json:"name"`
	State guard.State `json:"state"`
	Error string      `json:"error,omitempty"`
}

// FailureOutput is the JSON form of a command-level error.
type FailureOutput struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

func (r *JSONReporter) write(v any) error {
	var output []byte
	var err error

	if r.pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	if _, err = r.writer.Write(output); err != nil {
		return err
	}
	_, err = r.writer.Write([]byte("\n"))
	return err
}

func (r *JSONReporter) Begin(context.Context, string) error { return nil }

func (r *JSONReporter) Health(_ context.Context, report analyzer.HealthReport) error {
	return r.write(report)
}

func (r *JSONReporter) Lag(_ context.Context, report analyzer.LagReport) error {
	return r.write(report)
}

func (r *JSONReporter) Stale(_ context.Context, report analyzer.StaleReport) error {
	return r.write(report)
}

func (r *JSONReporter) Unused(_ context.Context, report analyzer.UnusedReport) error {
	return r.write(report)
}

func (r *JSONReporter) Deletion(_ context.Context, d *guard.Deletion) error {
	out := DeletionOutput{Kind: d.Kind, Name: d.Name, State: d.State}
	if d.Err != nil {
		out.Error = d.Err.Error()
	}
	return r.write(out)
}

func (r *JSONReporter) Connection(_ context.Context, report analyzer.ConnectionReport) error {
	return r.write(report)
}

func (r *JSONReporter) Failure(_ context.Context, action string, err error) error {
	return r.write(FailureOutput{Action: action, Error: err.Error()})
}
