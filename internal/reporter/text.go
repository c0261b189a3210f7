package reporter

import (
	"context"
	"fmt"
	"io"

	"github.com/ppiankov/kafkalens/internal/analyzer"
	"github.com/ppiankov/kafkalens/internal/guard"
)

// TextReporter generates human-readable, optionally colored reports
type TextReporter struct {
	writer io.Writer
	styles *Styles
}

// NewTextReporter creates a new text reporter
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	return &TextReporter{
		writer: w,
		styles: NewStyles(w, color),
	}
}

// printer returns a printf that stops at the first write error, and a func
// reporting that error.
func (r *TextReporter) printer() (func(format string, args ...any), func() error) {
	var writeErr error
	writef := func(format string, args ...any) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(r.writer, format, args...)
	}
	return writef, func() error { return writeErr }
}

func (r *TextReporter) Begin(_ context.Context, step string) error {
	_, err := fmt.Fprintf(r.writer, "%s\n", r.styles.Info(step+"..."))
	return err
}

func (r *TextReporter) warnings(writef func(string, ...any), warnings []analyzer.Warning) {
	for _, w := range warnings {
		writef("%s\n", r.styles.Warn("Warning: "+w.String()))
	}
}

// Health renders the broker and replication summary.
func (r *TextReporter) Health(_ context.Context, report analyzer.HealthReport) error {
	s := r.styles
	writef, done := r.printer()

	writef("\n%s\n", s.Heading("Cluster Health Report:"))
	if report.ClusterID != "" {
		writef("  - Cluster ID: %s\n", report.ClusterID)
	}
	brokers := report.BrokerRatio() + " Online"
	if report.OnlineBrokers != report.TotalBrokers {
		brokers = s.Bad(brokers)
	}
	writef("  - Brokers Found: %s\n", brokers)
	writef("  - Controller ID: %d\n", report.ControllerID)

	if report.UnderReplicatedCount == 0 {
		writef("  - Under-replicated Partitions: %d %s\n", report.UnderReplicatedCount, s.OK("(OK)"))
	} else {
		writef("  - Under-replicated Partitions: %d %s\n", report.UnderReplicatedCount, s.Bad("(WARNING)"))
		for _, p := range report.UnderReplicated {
			writef("      %s[%d]: ISR %d/%d\n", p.Topic, p.Partition, p.ISR, p.Replicas)
		}
	}

	if report.Healthy() {
		writef("\n%s\n", s.OK("Cluster is healthy!"))
	} else {
		writef("\n%s\n", s.Warn("Cluster has issues that need attention."))
	}
	return done()
}

// Lag renders per-group lag with high-lag groups highlighted.
func (r *TextReporter) Lag(_ context.Context, report analyzer.LagReport) error {
	s := r.styles
	writef, done := r.printer()

	r.warnings(writef, report.Warnings)

	if len(report.Groups) == 0 {
		writef("%s\n", s.Warn("No consumer groups found or accessible."))
		return done()
	}

	writef("\n%s\n", s.Heading("Consumer Group Lag Report:"))
	for _, g := range report.Groups {
		msgs := formatCount(g.TotalLag) + " messages"
		if g.HighLag {
			writef("  - %s: %s (HIGH LAG)\n", g.GroupID, s.Bad(msgs))
		} else {
			writef("  - %s: %s\n", g.GroupID, s.OK(msgs))
		}
	}

	if n := report.HighLagCount(); n > 0 {
		writef("\n%s\n", s.Bad(fmt.Sprintf("%d consumer group(s) have high lag!", n)))
	} else {
		writef("\n%s\n", s.OK("All consumer groups are within normal lag thresholds."))
	}
	return done()
}

// Stale renders the stale consumer groups and why each is stale.
func (r *TextReporter) Stale(_ context.Context, report analyzer.StaleReport) error {
	s := r.styles
	writef, done := r.printer()

	r.warnings(writef, report.Warnings)

	if len(report.Groups) == 0 {
		writef("\n%s\n", s.OK("No stale consumer groups found."))
		return done()
	}

	writef("\n%s\n", s.Warn(fmt.Sprintf("Found %d stale consumer groups:", len(report.Groups))))
	for _, g := range report.Groups {
		writef("  - %s: %s\n", g.GroupID, g.Reason)
	}
	return done()
}

// Unused renders the topics whose newest record is past the threshold.
func (r *TextReporter) Unused(_ context.Context, report analyzer.UnusedReport) error {
	s := r.styles
	writef, done := r.printer()

	r.warnings(writef, report.Warnings)

	if len(report.Topics) == 0 {
		writef("\n%s\n", s.OK("No unused topics found."))
		return done()
	}

	writef("\n%s\n", s.Warn(fmt.Sprintf("Found %d unused topics:", len(report.Topics))))
	for _, t := range report.Topics {
		writef("  - %s: %s\n", t.Topic, t.Reason)
	}
	return done()
}

// Deletion renders the outcome of a delete request.
func (r *TextReporter) Deletion(_ context.Context, d *guard.Deletion) error {
	s := r.styles
	writef, done := r.printer()

	switch d.State {
	case guard.StateExecuted:
		writef("%s\n", s.OK(fmt.Sprintf("Successfully deleted %s '%s'.", d.Kind, d.Name)))
	case guard.StateFailed:
		writef("%s\n", s.Bad(fmt.Sprintf("Error deleting %s: %v", d.Kind, d.Err)))
	default:
		writef("Operation cancelled.\n")
	}
	return done()
}

// Connection renders a connection test, with a troubleshooting hint when it
// failed.
func (r *TextReporter) Connection(_ context.Context, report analyzer.ConnectionReport) error {
	s := r.styles
	writef, done := r.printer()

	status := func(ok bool) string {
		if ok {
			return s.OK("connected")
		}
		return s.Bad("failed")
	}

	writef("\n%s\n", s.Heading("Connection Test:"))
	writef("  - Admin client: %s\n", status(report.AdminConnected))
	if report.AdminConnected {
		if report.ClusterID != "" {
			writef("  - Cluster ID: %s\n", report.ClusterID)
		}
		writef("  - Brokers: %d\n", report.Brokers)
		writef("  - Consumer client: %s\n", status(report.ConsumerConnected))
	}

	if report.OK() {
		writef("\n%s\n", s.OK("Connection successful!"))
		return done()
	}
	writef("\n%s\n", s.Bad("Connection failed: "+report.Error))
	if report.Hint != "" {
		writef("%s\n", s.Warn("Hint: "+report.Hint))
	}
	return done()
}

// Failure renders err as a single red line.
func (r *TextReporter) Failure(_ context.Context, action string, err error) error {
	_, werr := fmt.Fprintf(r.writer, "%s\n", r.styles.Bad(fmt.Sprintf("Error during %s: %v", action, err)))
	return werr
}
