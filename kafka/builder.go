package kafka

import (
	"context"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kslog"
)

// BuildOption configures how role builders construct franz-go clients.
type BuildOption func(*buildConfig)

type buildConfig struct {
	logger *slog.Logger
	hooks  []kgo.Hook
}

// WithClientLogger routes franz-go client logs to logger.
func WithClientLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

// WithHooks installs franz-go hooks on every client built.
func WithHooks(hooks ...kgo.Hook) BuildOption {
	return func(c *buildConfig) {
		for _, hook := range hooks {
			if hook != nil {
				c.hooks = append(c.hooks, hook)
			}
		}
	}
}

func (c *buildConfig) clientOpts(role Role) []kgo.Opt {
	var opts []kgo.Opt
	if c.logger != nil {
		opts = append(opts, kgo.WithLogger(kslog.New(c.logger.With("role", string(role)))))
	}
	if len(c.hooks) > 0 {
		opts = append(opts, kgo.WithHooks(c.hooks...))
	}
	return opts
}

// handshake connects a freshly built client. Package tests replace it when
// no broker is available.
var handshake = metadataHandshake

// metadataHandshake pings the cluster, or requests metadata for the
// configured topics when meta names any.
func metadataHandshake(ctx context.Context, client *kgo.Client, meta *MetadataConfig) (kadm.Metadata, error) {
	if meta != nil && meta.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, meta.Timeout)
		defer cancel()
	}

	if meta == nil || (!meta.AllTopics && len(meta.Topics) == 0) {
		return kadm.Metadata{}, client.Ping(ctx)
	}

	var topics []string
	if !meta.AllTopics {
		topics = meta.Topics
	}
	return kadm.NewClient(client).Metadata(ctx, topics...)
}

// newClient constructs the franz-go client for role. It does not dial.
func newClient(role Role, conf, topicConf Properties, options []BuildOption) (*kgo.Client, *clientOptions, error) {
	var bc buildConfig
	for _, opt := range options {
		opt(&bc)
	}

	translated, err := translate(role, conf, topicConf)
	if err != nil {
		return nil, nil, &ConstructionError{Role: role, Err: err}
	}

	opts, err := translated.build()
	if err != nil {
		return nil, nil, &ConstructionError{Role: role, Err: err}
	}
	opts = append(opts, bc.clientOpts(role)...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, &ConstructionError{Role: role, Err: err}
	}
	return client, translated, nil
}

// BuildAdminClient constructs the admin client. Construction validates the
// configuration without a network round-trip.
func BuildAdminClient(cfg AdminConfig, opts ...BuildOption) (*AdminClient, error) {
	client, translated, err := newClient(RoleAdmin, cfg.Conf, nil, opts)
	if err != nil {
		return nil, err
	}

	admin := kadm.NewClient(client)
	if translated.requestTimeout > 0 {
		admin.SetTimeoutMillis(int32(translated.requestTimeout.Milliseconds()))
	}
	return &AdminClient{admin: admin}, nil
}

// BuildConsumer constructs the consumer and, unless auto-connect is
// disabled, blocks until the handshake completes. A consumer whose handshake
// fails is closed and not returned. Topics are subscribed only after the
// handshake; franz-go starts fetching metadata as soon as a client has
// topics.
func BuildConsumer(ctx context.Context, cfg ConsumerConfig, opts ...BuildOption) (*Consumer, error) {
	client, _, err := newClient(RoleConsumer, cfg.Conf, cfg.TopicConf, opts)
	if err != nil {
		return nil, err
	}

	consumer := &Consumer{session: session{role: RoleConsumer, client: client}}
	consumer.Subscribe(cfg.Topics...)
	if cfg.ShouldAutoConnect() {
		if err := consumer.Connect(ctx, cfg.MetadataConf); err != nil {
			consumer.Close()
			return nil, err
		}
	}
	return consumer, nil
}

// BuildProducer constructs the producer. It follows BuildConsumer for
// auto-connect and failure handling.
func BuildProducer(ctx context.Context, cfg ProducerConfig, opts ...BuildOption) (*Producer, error) {
	client, _, err := newClient(RoleProducer, cfg.Conf, cfg.TopicConf, opts)
	if err != nil {
		return nil, err
	}

	producer := &Producer{session: session{role: RoleProducer, client: client}}
	if cfg.ShouldAutoConnect() {
		if err := producer.Connect(ctx, cfg.MetadataConf); err != nil {
			producer.Close()
			return nil, err
		}
	}
	return producer, nil
}

func compactTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			out = append(out, topic)
		}
	}
	return out
}
