package kafka

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBootstrapServers is returned when a role config names no brokers.
	ErrNoBootstrapServers = errors.New("bootstrap.servers is required")
	// ErrUnknownProperty is returned for properties the builders do not know.
	ErrUnknownProperty = errors.New("no such configuration property")
	// ErrNilResolver is returned when an async descriptor has no resolver.
	ErrNilResolver = errors.New("connection descriptor resolver is nil")
)

// ConstructionError reports a role config rejected at build time.
type ConstructionError struct {
	Role Role
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct kafka %s: %v", e.Role, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// ConnectError reports a failed or timed out consumer/producer handshake.
type ConnectError struct {
	Role Role
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect kafka %s: %v", e.Role, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ResolutionError reports a failed descriptor resolver. No role is built
// when resolution fails.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve kafka connection descriptor: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// errorKind maps an error onto a short label for metrics and logs.
func errorKind(err error) string {
	var (
		constructErr *ConstructionError
		connectErr   *ConnectError
		resolveErr   *ResolutionError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &constructErr):
		return "construction_error"
	case errors.As(err, &connectErr):
		return "connect_error"
	case errors.As(err, &resolveErr):
		return "resolution_error"
	default:
		return "error"
	}
}
