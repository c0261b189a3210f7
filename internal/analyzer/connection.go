package analyzer

import (
	"context"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// DefaultConnectionHint is shown when a failure has no more specific hint.
const DefaultConnectionHint = "check bootstrap_servers, security_protocol and that the brokers are reachable from this host"

// Prober is a cluster whose connections can be verified.
type Prober interface {
	DescribeCluster(ctx context.Context) (kafka.ClusterSnapshot, error)
	PingConsumer(ctx context.Context) error
}

// ConnectionReport is the result of a connection test.
type ConnectionReport struct {
	AdminConnected    bool   `json:"admin_connected"`
	ConsumerConnected bool   `json:"consumer_connected"`
	ClusterID         string `json:"cluster_id,omitempty"`
	Brokers           int    `json:"brokers"`
	ControllerID      int32  `json:"controller_id"`
	Error             string `json:"error,omitempty"`
	Hint              string `json:"hint,omitempty"`
}

// OK reports whether both connections were verified.
func (r ConnectionReport) OK() bool {
	return r.AdminConnected && r.ConsumerConnected && r.Error == ""
}

func (r ConnectionReport) failed(err error) ConnectionReport {
	r.Error = err.Error()
	r.Hint = kafka.Hint(err)
	if r.Hint == "" {
		r.Hint = DefaultConnectionHint
	}
	return r
}

// ConnectionFailed reports a connection test that could not reach the
// cluster at all.
func ConnectionFailed(err error) ConnectionReport {
	return ConnectionReport{}.failed(err)
}

// CheckConnection reads the broker list over the admin connection, then
// opens the consumer connection. Failures end up in the report; only
// cancellation is returned.
func CheckConnection(ctx context.Context, p Prober) (ConnectionReport, error) {
	report := ConnectionReport{AdminConnected: true}

	snap, err := p.DescribeCluster(ctx)
	if err != nil {
		if stopped(ctx) {
			return report, ctx.Err()
		}
		return report.failed(err), nil
	}
	report.ClusterID = snap.ClusterID
	report.Brokers = snap.OnlineBrokers
	report.ControllerID = snap.ControllerID

	if err := p.PingConsumer(ctx); err != nil {
		if stopped(ctx) {
			return report, ctx.Err()
		}
		return report.failed(err), nil
	}
	report.ConsumerConnected = true

	return report, nil
}
