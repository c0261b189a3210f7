package reporter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/kafkalens/internal/analyzer"
	"github.com/ppiankov/kafkalens/internal/guard"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Reporter renders command results.
type Reporter interface {
	// Begin announces a long-running step. JSON output ignores it.
	Begin(ctx context.Context, step string) error
	Health(ctx context.Context, report analyzer.HealthReport) error
	Lag(ctx context.Context, report analyzer.LagReport) error
	Stale(ctx context.Context, report analyzer.StaleReport) error
	Unused(ctx context.Context, report analyzer.UnusedReport) error
	Deletion(ctx context.Context, d *guard.Deletion) error
	Connection(ctx context.Context, report analyzer.ConnectionReport) error
	// Failure renders a command-level error that does not abort the process.
	Failure(ctx context.Context, action string, err error) error
}

// New returns the reporter for format.
func New(format string, w io.Writer, color bool) (Reporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return NewTextReporter(w, color), nil
	case FormatJSON:
		return NewJSONReporter(w, true), nil
	default:
		return nil, fmt.Errorf("invalid output format %q (expected json or text)", format)
	}
}

// formatCount renders n with thousands separators, e.g. 1,250.
func formatCount(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}
