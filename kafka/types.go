package kafka

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Role identifies one connection purpose towards the cluster.
type Role string

const (
	RoleAdmin    Role = "admin-client"
	RoleConsumer Role = "consumer"
	RoleProducer Role = "producer"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleConsumer, RoleProducer}

// Properties holds librdkafka-style configuration properties such as
// "bootstrap.servers" or "group.id". Keys are matched case-insensitively and
// "_" is accepted in place of ".".
type Properties map[string]string

// normalized returns a copy with canonical keys. When two spellings of the
// same key are present the dotted spelling wins.
func (p Properties) normalized() Properties {
	out := make(Properties, len(p))
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		canonical := normalizeKey(key)
		if _, exists := out[canonical]; exists && canonical != key {
			continue
		}
		out[canonical] = strings.TrimSpace(p[key])
	}
	return out
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, "_", ".")
}

// MetadataConfig controls the metadata request issued by the connect
// handshake. With no topics and AllTopics unset the handshake only checks
// that a broker answers.
type MetadataConfig struct {
	Topics    []string
	AllTopics bool
	Timeout   time.Duration
}

// AdminConfig configures the admin client role. The admin client has no
// connect step: requests connect on demand.
type AdminConfig struct {
	Conf Properties
}

// ConsumerConfig configures the consumer role.
type ConsumerConfig struct {
	Conf      Properties
	TopicConf Properties
	// Topics are subscribed once the consumer connects. More can be added
	// with Consumer.Subscribe.
	Topics       []string
	AutoConnect  *bool // nil means true
	MetadataConf *MetadataConfig
}

// ShouldAutoConnect reports whether the handshake runs right after construction.
func (c ConsumerConfig) ShouldAutoConnect() bool {
	return c.AutoConnect == nil || *c.AutoConnect
}

// ProducerConfig configures the producer role.
type ProducerConfig struct {
	Conf         Properties
	TopicConf    Properties
	AutoConnect  *bool // nil means true
	MetadataConf *MetadataConfig
}

// ShouldAutoConnect reports whether the handshake runs right after construction.
func (c ProducerConfig) ShouldAutoConnect() bool {
	return c.AutoConnect == nil || *c.AutoConnect
}

// ConnectionDescriptor names the roles to provision. A nil role config means
// the role is not requested.
type ConnectionDescriptor struct {
	Admin    *AdminConfig
	Consumer *ConsumerConfig
	Producer *ProducerConfig
	// Global controls how widely a host framework exposes the handles.
	// nil means true.
	Global *bool
}

// IsGlobal resolves the Global default.
func (d ConnectionDescriptor) IsGlobal() bool {
	return d.Global == nil || *d.Global
}

// Requested reports whether the descriptor asks for role.
func (d ConnectionDescriptor) Requested(role Role) bool {
	switch role {
	case RoleAdmin:
		return d.Admin != nil
	case RoleConsumer:
		return d.Consumer != nil
	case RoleProducer:
		return d.Producer != nil
	default:
		return false
	}
}

// RequestedRoles lists the requested roles in stable order.
func (d ConnectionDescriptor) RequestedRoles() []Role {
	roles := make([]Role, 0, len(Roles))
	for _, role := range Roles {
		if d.Requested(role) {
			roles = append(roles, role)
		}
	}
	return roles
}

// Resolver produces a ConnectionDescriptor once the inputs it depends on are
// available, for example after secrets have been fetched.
type Resolver func(ctx context.Context) (ConnectionDescriptor, error)

// AsyncConnectionDescriptor is the deferred form of a ConnectionDescriptor.
type AsyncConnectionDescriptor struct {
	Resolve Resolver
	// Global is used when the resolved descriptor leaves Global unset.
	Global *bool
}

// ClusterMetadata is a snapshot of the cluster as seen by the admin client.
type ClusterMetadata struct {
	ClusterID      string
	Controller     int32
	Topics         map[string]*TopicInfo
	ConsumerGroups map[string]*ConsumerGroupInfo
	Brokers        []BrokerInfo
	FetchedAt      time.Time
}

// TopicInfo contains metadata about a Kafka topic
type TopicInfo struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	Internal          bool // System topics like __consumer_offsets
}

// ConsumerGroupInfo contains metadata about a Kafka consumer group
type ConsumerGroupInfo struct {
	GroupID     string
	State       string // Stable, Empty, Dead, etc.
	Members     int
	Coordinator int32 // Broker ID
}

// BrokerInfo contains metadata about a Kafka broker
type BrokerInfo struct {
	ID   int32
	Host string
	Port int32
	Rack string
}
