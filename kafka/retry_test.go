package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestIsAuthError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "generic", err: errors.New("something"), want: false},
		{name: "sasl-auth-failed", err: kerr.SaslAuthenticationFailed, want: true},
		{name: "unsupported-sasl-mechanism", err: kerr.UnsupportedSaslMechanism, want: true},
		{name: "cluster-auth-failed", err: kerr.ClusterAuthorizationFailed, want: true},
		{name: "group-auth-failed", err: kerr.GroupAuthorizationFailed, want: true},
		{name: "wrapped-sasl-auth", err: fmt.Errorf("connect: %w", kerr.SaslAuthenticationFailed), want: true},
		{name: "first-read-eof", err: &kgo.ErrFirstReadEOF{}, want: true},
		{name: "broker-not-available", err: kerr.BrokerNotAvailable, want: false},
		{name: "io-eof", err: io.EOF, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isAuthError(tc.err); got != tc.want {
				t.Fatalf("isAuthError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	connRefused := &net.OpError{
		Op:   "dial",
		Net:  "tcp",
		Addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9092},
		Err:  &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED},
	}
	dialTimeout := &net.OpError{
		Op:   "dial",
		Net:  "tcp",
		Addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9092},
		Err:  &timeoutError{},
	}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "generic", err: errors.New("unknown"), want: false},
		{name: "auth", err: &ConnectError{Role: RoleProducer, Err: kerr.SaslAuthenticationFailed}, want: false},
		{name: "construction", err: &ConstructionError{Role: RoleAdmin, Err: ErrNoBootstrapServers}, want: false},
		{name: "resolution", err: &ResolutionError{Err: kerr.BrokerNotAvailable}, want: false},
		{name: "canceled", err: &ConnectError{Role: RoleConsumer, Err: context.Canceled}, want: false},
		{name: "bare-deadline", err: context.DeadlineExceeded, want: false},
		{name: "handshake-deadline", err: &ConnectError{Role: RoleConsumer, Err: context.DeadlineExceeded}, want: true},
		{name: "broker-not-available", err: &ConnectError{Role: RoleProducer, Err: kerr.BrokerNotAvailable}, want: true},
		{name: "non-retriable-kerr", err: kerr.InvalidTopicException, want: false},
		{name: "net-closed", err: net.ErrClosed, want: true},
		{name: "connection-refused", err: &ConnectError{Role: RoleProducer, Err: connRefused}, want: false},
		{name: "dial-timeout", err: &ConnectError{Role: RoleProducer, Err: dialTimeout}, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

// timeoutError satisfies net.Error with Timeout() returning true.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: nil, want: "ok"},
		{err: fmt.Errorf("wrapped: %w", &ConstructionError{Role: RoleAdmin, Err: ErrUnknownProperty}), want: "construction_error"},
		{err: &ConnectError{Role: RoleConsumer, Err: io.EOF}, want: "connect_error"},
		{err: &ResolutionError{Err: ErrNilResolver}, want: "resolution_error"},
		{err: errors.New("other"), want: "error"},
	}

	for _, tc := range cases {
		if got := errorKind(tc.err); got != tc.want {
			t.Fatalf("errorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
