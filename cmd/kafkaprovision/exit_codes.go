package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/ppiankov/kafkaprovision/internal/config"
	"github.com/ppiankov/kafkaprovision/kafka"
)

// Process exit codes.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNetwork    = 3
	ExitNotFound   = 4
)

// classifyError maps a command error onto an exit code.
func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, config.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return ExitNotFound
	}

	var (
		constructErr *kafka.ConstructionError
		connectErr   *kafka.ConnectError
		resolveErr   *kafka.ResolutionError
	)
	switch {
	case errors.As(err, &constructErr):
		return ExitInvalidArg
	case errors.As(err, &connectErr):
		return ExitNetwork
	case errors.As(err, &resolveErr):
		return ExitInvalidArg
	case errors.Is(err, context.DeadlineExceeded):
		return ExitNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "dial"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "network is unreachable"):
		return ExitNetwork
	case strings.Contains(msg, "required"),
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "must be"),
		strings.Contains(msg, "must not"),
		strings.Contains(msg, "expected"),
		strings.Contains(msg, "unknown flag"),
		strings.Contains(msg, "cannot be combined"):
		return ExitInvalidArg
	}

	return ExitInternal
}
