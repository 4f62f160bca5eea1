package reporter

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ppiankov/kafkaprovision/kafka"
)

// TextReporter generates human-readable probe reports
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{writer: w}
}

// GenerateProbe produces a human-readable probe report
func (r *TextReporter) GenerateProbe(ctx context.Context, result *ProbeResult) error {
	var writeErr error
	writef := func(format string, args ...any) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(r.writer, format, args...)
	}

	summary := result.Summary
	writef("Kafka Connection Probe\n")
	writef("======================\n\n")

	if summary.ConfigPath != "" {
		writef("Config:    %s\n", summary.ConfigPath)
	}
	mode := "sync"
	if summary.Async {
		mode = "async"
	}
	writef("Mode:      %s\n", mode)
	writef("Status:    %s\n", summary.Status)
	writef("Duration:  %s\n", summary.Duration.Round(time.Millisecond))
	if summary.Error != "" {
		writef("Error:     %s (%s)\n", summary.Error, summary.ErrorKind)
	}
	writef("\n")

	writef("Roles: %d requested\n", len(result.Roles))
	for _, role := range result.Roles {
		writef("  [%s] %s", roleState(role), role.Role)
		if role.Role == summary.FailedRole {
			writef(" (failed)")
		}
		if role.Cluster != "" {
			writef(" cluster=%s", role.Cluster)
		}
		if role.Brokers > 0 {
			writef(" brokers=%d", role.Brokers)
		}
		writef("\n")
	}
	writef("\n")

	if result.Cluster != nil {
		r.writeCluster(writef, result.Cluster)
	}

	return writeErr
}

func roleState(role *RoleResult) string {
	switch {
	case !role.Built:
		return "NOT BUILT"
	case role.Role == kafka.RoleAdmin:
		return "READY"
	case role.Connected:
		return "CONNECTED"
	default:
		return "IDLE"
	}
}

func (r *TextReporter) writeCluster(writef func(string, ...any), metadata *kafka.ClusterMetadata) {
	writef("Kafka Cluster Overview\n")
	writef("======================\n\n")

	if metadata.ClusterID != "" {
		writef("Cluster ID: %s (controller %d)\n", metadata.ClusterID, metadata.Controller)
	}

	writef("Brokers: %d\n", len(metadata.Brokers))
	for _, broker := range metadata.Brokers {
		writef("  - Broker %d: %s:%d", broker.ID, broker.Host, broker.Port)
		if broker.Rack != "" {
			writef(" (rack: %s)", broker.Rack)
		}
		writef("\n")
	}
	writef("\n")

	internalTopics := 0
	for _, topic := range metadata.Topics {
		if topic.Internal {
			internalTopics++
		}
	}
	writef("Topics: %d total (%d user, %d internal)\n",
		len(metadata.Topics), len(metadata.Topics)-internalTopics, internalTopics)

	topicNames := make([]string, 0, len(metadata.Topics))
	for name, topic := range metadata.Topics {
		if !topic.Internal {
			topicNames = append(topicNames, name)
		}
	}
	sort.Strings(topicNames)

	for _, name := range topicNames {
		topic := metadata.Topics[name]
		writef("  - %s: %d partitions, replication factor %d\n", topic.Name, topic.Partitions, topic.ReplicationFactor)
	}
	writef("\n")

	writef("Consumer Groups: %d\n", len(metadata.ConsumerGroups))

	groupNames := make([]string, 0, len(metadata.ConsumerGroups))
	for name := range metadata.ConsumerGroups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, name := range groupNames {
		group := metadata.ConsumerGroups[name]
		state := group.State
		if state == "" {
			state = "unknown"
		}
		writef("  - %s: %s, %d members\n", group.GroupID, state, group.Members)
	}
}
