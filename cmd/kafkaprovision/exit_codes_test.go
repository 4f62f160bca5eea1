package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/ppiankov/kafkaprovision/internal/config"
	"github.com/ppiankov/kafkaprovision/kafka"
)

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != ExitSuccess {
		t.Errorf("classifyError(nil) = %d, want %d", got, ExitSuccess)
	}
}

func TestClassifyError_Taxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"construction", &kafka.ConstructionError{Role: kafka.RoleAdmin, Err: kafka.ErrNoBootstrapServers}, ExitInvalidArg},
		{"connect", &kafka.ConnectError{Role: kafka.RoleProducer, Err: errors.New("refused")}, ExitNetwork},
		{"wrapped connect", fmt.Errorf("provision: 2 attempts exhausted: %w", &kafka.ConnectError{Role: kafka.RoleConsumer, Err: context.DeadlineExceeded}), ExitNetwork},
		{"resolution", &kafka.ResolutionError{Err: errors.New("parse config: bad yaml")}, ExitInvalidArg},
		{"resolution not found", &kafka.ResolutionError{Err: config.ErrNotFound}, ExitNotFound},
		{"deadline", context.DeadlineExceeded, ExitNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != tc.want {
				t.Errorf("classifyError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyError_NotFound(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"os.ErrNotExist", os.ErrNotExist},
		{"wrapped os.ErrNotExist", fmt.Errorf("open: %w", os.ErrNotExist)},
		{"no config", config.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != ExitNotFound {
				t.Errorf("classifyError(%q) = %d, want %d", tc.err, got, ExitNotFound)
			}
		})
	}
}

func TestClassifyError_Network(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"dial", errors.New("dial tcp: connection refused")},
		{"connection refused", errors.New("connection refused")},
		{"i/o timeout", errors.New("i/o timeout")},
		{"network unreachable", errors.New("network is unreachable")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != ExitNetwork {
				t.Errorf("classifyError(%q) = %d, want %d", tc.err, got, ExitNetwork)
			}
		})
	}
}

func TestClassifyError_InvalidArg(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"invalid", errors.New("invalid output format")},
		{"must be", errors.New("timeout must be greater than zero")},
		{"must not", errors.New("retries must not be negative")},
		{"unknown flag", errors.New("unknown flag: --nope")},
		{"combined", errors.New("--async reads the config file and cannot be combined with --bootstrap-server")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != ExitInvalidArg {
				t.Errorf("classifyError(%q) = %d, want %d", tc.err, got, ExitInvalidArg)
			}
		})
	}
}

func TestClassifyError_Internal(t *testing.T) {
	err := errors.New("something went wrong")
	if got := classifyError(err); got != ExitInternal {
		t.Errorf("classifyError(%q) = %d, want %d", err, got, ExitInternal)
	}
}
