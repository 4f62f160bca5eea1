package kafka

import (
	"context"
	"errors"
	"net"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// isAuthError returns true for errors that indicate SASL authentication or
// authorization failures. These are permanent; retrying will not help.
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

	var eof *kgo.ErrFirstReadEOF
	return errors.As(err, &eof)
}

// IsRetryable reports whether a provisioning failure is transient, so that a
// caller may start a new attempt. Construction and resolution failures never
// are. The provisioner itself does not retry.
func IsRetryable(err error) bool {
	if err == nil || isAuthError(err) {
		return false
	}

	var (
		constructErr *ConstructionError
		resolveErr   *ResolutionError
	)
	if errors.As(err, &constructErr) || errors.As(err, &resolveErr) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// A handshake that hit its own deadline may succeed on a later attempt
	var connectErr *ConnectError
	if errors.As(err, &connectErr) && errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Kafka protocol errors with retriable flag
	var ke *kerr.Error
	if errors.As(err, &ke) {
		return ke.Retriable
	}

	// Network-level: connection closed, EOF after established connection
	if errors.Is(err, net.ErrClosed) {
		return true
	}

	// Dial timeouts are retryable; connection-refused is not
	var ne *net.OpError
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return false
}
