package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
)

// Describe fetches brokers, topics and consumer groups from the cluster.
// Consumer group details are best effort: a failed describe leaves the
// groups listed without state.
func (a *AdminClient) Describe(ctx context.Context) (*ClusterMetadata, error) {
	meta, err := a.admin.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cluster metadata: %w", err)
	}

	cluster := &ClusterMetadata{
		ClusterID:      meta.Cluster,
		Controller:     meta.Controller,
		Topics:         make(map[string]*TopicInfo, len(meta.Topics)),
		ConsumerGroups: make(map[string]*ConsumerGroupInfo),
		Brokers:        brokersFromMetadata(meta.Brokers),
		FetchedAt:      time.Now(),
	}

	for name, details := range meta.Topics {
		if details.Err != nil {
			continue
		}

		// Replication factor is read from the first partition
		replicationFactor := 0
		if len(details.Partitions) > 0 {
			replicationFactor = len(details.Partitions[0].Replicas)
		}

		cluster.Topics[name] = &TopicInfo{
			Name:              name,
			Partitions:        len(details.Partitions),
			ReplicationFactor: replicationFactor,
			Internal:          details.IsInternal || strings.HasPrefix(name, "__"),
		}
	}

	groups, err := a.admin.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumer groups: %w", err)
	}

	groupIDs := make([]string, 0, len(groups))
	for groupID := range groups {
		groupIDs = append(groupIDs, groupID)
	}
	sort.Strings(groupIDs)
	for _, groupID := range groupIDs {
		cluster.ConsumerGroups[groupID] = &ConsumerGroupInfo{
			GroupID:     groupID,
			Coordinator: -1,
		}
	}

	if len(groupIDs) == 0 {
		return cluster, nil
	}

	described, err := a.admin.DescribeGroups(ctx, groupIDs...)
	if err != nil {
		// Non-fatal: keep the listed groups
		slog.Warn("failed to describe consumer groups", "error", err, "consumer_group_count", len(groupIDs))
		return cluster, nil
	}

	for _, group := range described.Sorted() {
		info, ok := cluster.ConsumerGroups[group.Group]
		if !ok {
			continue
		}
		info.State = group.State
		info.Members = len(group.Members)
		if group.Coordinator.NodeID != -1 {
			info.Coordinator = group.Coordinator.NodeID
		}
	}

	return cluster, nil
}

func brokersFromMetadata(brokers kadm.BrokerDetails) []BrokerInfo {
	out := make([]BrokerInfo, 0, len(brokers))
	for _, broker := range brokers {
		rack := ""
		if broker.Rack != nil {
			rack = *broker.Rack
		}
		out = append(out, BrokerInfo{
			ID:   broker.NodeID,
			Host: broker.Host,
			Port: broker.Port,
			Rack: rack,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
