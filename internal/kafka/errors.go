package kafka

import (
	"context"
	"errors"
	"net"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrConnect is wrapped by every failure to establish a cluster connection.
var ErrConnect = errors.New("failed to connect to Kafka cluster")

// isAuthError returns true for errors that indicate SASL authentication or
// authorization failures.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var ke *kerr.Error
	if errors.As(err, &ke) {
		switch ke {
		case kerr.SaslAuthenticationFailed,
			kerr.UnsupportedSaslMechanism,
			kerr.IllegalSaslState,
			kerr.TopicAuthorizationFailed,
			kerr.ClusterAuthorizationFailed,
			kerr.GroupAuthorizationFailed,
			kerr.TransactionalIDAuthorizationFailed:
			return true
		}
	}

	// A broker closing the connection before the first response is how a
	// TLS or SASL mismatch usually shows up.
	var eof *kgo.ErrFirstReadEOF
	return errors.As(err, &eof)
}

// isTransient returns true for broker errors that tend to clear up on their
// own: timeouts, broker restarts, temporary leader unavailability.
func isTransient(err error) bool {
	if err == nil || isAuthError(err) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ke *kerr.Error
	if errors.As(err, &ke) {
		return ke.Retriable
	}

	if errors.Is(err, net.ErrClosed) {
		return true
	}

	var ne *net.OpError
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return false
}

// Hint returns a one-line suggestion for err, or "" when there is nothing
// useful to add.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case isAuthError(err):
		return "check security_protocol, sasl_mechanism and credentials in the config file"
	case errors.Is(err, context.DeadlineExceeded):
		return "the cluster did not answer in time; check bootstrap_servers and network access, or raise timeout"
	case isTransient(err):
		return "the cluster reported a transient error; running the command again may succeed"
	default:
		return ""
	}
}
