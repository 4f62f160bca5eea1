package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/kafkaprovision/kafka"
)

// ProbeStatus is the overall outcome of a probe.
type ProbeStatus string

const (
	ProbeStatusOK     ProbeStatus = "OK"
	ProbeStatusFailed ProbeStatus = "FAILED"
)

// RoleResult describes one requested role after provisioning.
type RoleResult struct {
	Role      kafka.Role `json:"role"`
	Built     bool       `json:"built"`
	Connected bool       `json:"connected"`
	Cluster   string     `json:"cluster,omitempty"`
	Brokers   int        `json:"brokers,omitempty"`
}

// ProbeSummary contains high-level probe details.
type ProbeSummary struct {
	ConfigPath string        `json:"config_path,omitempty"`
	Async      bool          `json:"async"`
	Status     ProbeStatus   `json:"status"`
	Requested  []kafka.Role  `json:"requested"`
	Duration   time.Duration `json:"duration_ns"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	FailedRole kafka.Role    `json:"failed_role,omitempty"`
}

// ProbeResult is the full output model for the probe command.
type ProbeResult struct {
	Summary *ProbeSummary          `json:"summary"`
	Roles   []*RoleResult          `json:"roles"`
	Cluster *kafka.ClusterMetadata `json:"cluster,omitempty"`
}

// ProbeReporter generates probe command output.
type ProbeReporter interface {
	GenerateProbe(ctx context.Context, result *ProbeResult) error
}

// NewProbeResult summarises a provisioning attempt. bundle is nil when err
// is set.
func NewProbeResult(requested []kafka.Role, bundle *kafka.Bundle, err error, elapsed time.Duration) *ProbeResult {
	result := &ProbeResult{
		Summary: &ProbeSummary{
			Status:    ProbeStatusOK,
			Requested: requested,
			Duration:  elapsed,
		},
		Roles: make([]*RoleResult, 0, len(requested)),
	}

	if err != nil {
		result.Summary.Status = ProbeStatusFailed
		result.Summary.Error = err.Error()
		result.Summary.ErrorKind, result.Summary.FailedRole = classify(err)
	}

	for _, role := range requested {
		rr := &RoleResult{Role: role, Built: bundle.Has(role)}
		switch role {
		case kafka.RoleConsumer:
			if c, ok := bundle.Consumer(); ok {
				rr.Connected = c.Connected()
				rr.Cluster = c.Metadata().Cluster
				rr.Brokers = len(c.Metadata().Brokers)
			}
		case kafka.RoleProducer:
			if p, ok := bundle.Producer(); ok {
				rr.Connected = p.Connected()
				rr.Cluster = p.Metadata().Cluster
				rr.Brokers = len(p.Metadata().Brokers)
			}
		}
		result.Roles = append(result.Roles, rr)
	}

	return result
}

func classify(err error) (string, kafka.Role) {
	var (
		constructErr *kafka.ConstructionError
		connectErr   *kafka.ConnectError
		resolveErr   *kafka.ResolutionError
	)
	switch {
	case errors.As(err, &constructErr):
		return "construction", constructErr.Role
	case errors.As(err, &connectErr):
		return "connect", connectErr.Role
	case errors.As(err, &resolveErr):
		return "resolution", ""
	default:
		return "other", ""
	}
}
