package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/ppiankov/kafkaprovision/internal/config"
	"github.com/ppiankov/kafkaprovision/internal/logging"
	"github.com/ppiankov/kafkaprovision/internal/reporter"
	"github.com/ppiankov/kafkaprovision/kafka"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const defaultProbeTimeout = 30 * time.Second

func main() {
	logging.Init(false)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		_, _ = fmt.Fprintf(os.Stderr, "Tip: Use 'kafkaprovision --help' for usage information.\n")
		os.Exit(classifyError(err))
	}
}

type probeOptions struct {
	configPath      string
	async           bool
	bootstrapServer string
	admin           bool
	consumer        bool
	producer        bool
	groupID         string
	topics          []string
	noConnect       bool
	output          string
	timeout         time.Duration
	retries         int
	metrics         bool
}

func newRootCmd() *cobra.Command {
	var (
		verbose   bool
		logFormat string
	)

	cmd := &cobra.Command{
		Use:           "kafkaprovision",
		Short:         "kafkaprovision provisions Kafka admin, consumer and producer connections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			switch strings.ToLower(logFormat) {
			case "text":
				logging.Configure(logging.Options{Level: level})
			case "json":
				logging.Configure(logging.Options{Level: level, JSON: true})
			default:
				return fmt.Errorf("invalid log format %q (expected text or json)", logFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")

	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "version: %s\n", Version); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "commit:  %s\n", GitCommit); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "date:    %s\n", BuildDate); err != nil {
				return err
			}
			return nil
		},
	}
}

func newProbeCmd() *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Provision the requested Kafka connections and report on them",
		Long: `Provision the requested Kafka connections and report on them.

Roles come from --bootstrap-server and the role flags, or from a
.kafkaprovision.yaml file (discovered in the working directory, then the
home directory, or given with --config). With --async the file is read
only when provisioning starts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a kafkaprovision config file")
	flags.BoolVar(&opts.async, "async", false, "Resolve the config file lazily, at provisioning time")
	flags.StringVar(&opts.bootstrapServer, "bootstrap-server", "", "Kafka bootstrap server(s) (host:port, comma-separated); overrides the config file")
	flags.BoolVar(&opts.admin, "admin", false, "Provision the admin client role")
	flags.BoolVar(&opts.consumer, "consumer", false, "Provision the consumer role")
	flags.BoolVar(&opts.producer, "producer", false, "Provision the producer role")
	flags.StringVar(&opts.groupID, "group-id", "", "Consumer group id")
	flags.StringSliceVar(&opts.topics, "topics", nil, "Topics the consumer subscribes to (repeatable)")
	flags.BoolVar(&opts.noConnect, "no-connect", false, "Build consumer and producer without the connect handshake")
	flags.StringVar(&opts.output, "output", "text", "Output format (json|text)")
	flags.DurationVar(&opts.timeout, "timeout", defaultProbeTimeout, "Overall probe timeout (for example: 10s, 1m)")
	flags.IntVar(&opts.retries, "retries", 0, "Retry transient provisioning failures this many times")
	flags.BoolVar(&opts.metrics, "metrics", false, "Print provisioning metrics to stderr in Prometheus text format")

	return cmd
}

func validateProbeOptions(opts probeOptions) (string, error) {
	output := strings.ToLower(strings.TrimSpace(opts.output))
	if output == "" {
		output = "text"
	}
	if output != "json" && output != "text" {
		return "", fmt.Errorf("invalid output format %q (expected json or text)", opts.output)
	}
	if opts.timeout <= 0 {
		return "", errors.New("timeout must be greater than zero")
	}
	if opts.retries < 0 {
		return "", errors.New("retries must not be negative")
	}
	if opts.async && strings.TrimSpace(opts.bootstrapServer) != "" {
		return "", errors.New("--async reads the config file and cannot be combined with --bootstrap-server")
	}
	return output, nil
}

// selectedRoles returns the roles named by flags, or nil when none is set.
func selectedRoles(opts probeOptions) []kafka.Role {
	var roles []kafka.Role
	if opts.admin {
		roles = append(roles, kafka.RoleAdmin)
	}
	if opts.consumer {
		roles = append(roles, kafka.RoleConsumer)
	}
	if opts.producer {
		roles = append(roles, kafka.RoleProducer)
	}
	return roles
}

// flagDescriptor builds a descriptor from --bootstrap-server. Without role
// flags every role is requested.
func flagDescriptor(opts probeOptions) kafka.ConnectionDescriptor {
	roles := selectedRoles(opts)
	if len(roles) == 0 {
		roles = kafka.Roles
	}

	conf := func() kafka.Properties {
		return kafka.Properties{"bootstrap.servers": strings.TrimSpace(opts.bootstrapServer)}
	}

	var desc kafka.ConnectionDescriptor
	for _, role := range roles {
		switch role {
		case kafka.RoleAdmin:
			desc.Admin = &kafka.AdminConfig{Conf: conf()}
		case kafka.RoleConsumer:
			desc.Consumer = &kafka.ConsumerConfig{Conf: conf()}
		case kafka.RoleProducer:
			desc.Producer = &kafka.ProducerConfig{Conf: conf()}
		}
	}
	return applyOverrides(desc, opts)
}

// applyOverrides narrows desc to the selected roles and applies the
// consumer and connect flags.
func applyOverrides(desc kafka.ConnectionDescriptor, opts probeOptions) kafka.ConnectionDescriptor {
	if roles := selectedRoles(opts); len(roles) > 0 {
		keep := func(role kafka.Role) bool {
			for _, r := range roles {
				if r == role {
					return true
				}
			}
			return false
		}
		if !keep(kafka.RoleAdmin) {
			desc.Admin = nil
		}
		if !keep(kafka.RoleConsumer) {
			desc.Consumer = nil
		}
		if !keep(kafka.RoleProducer) {
			desc.Producer = nil
		}
	}

	if desc.Consumer != nil {
		consumer := *desc.Consumer
		if opts.groupID != "" {
			consumer.Conf = withProperty(consumer.Conf, "group.id", opts.groupID)
		}
		if len(opts.topics) > 0 {
			consumer.Topics = append([]string(nil), opts.topics...)
		}
		if opts.noConnect {
			consumer.AutoConnect = boolPtr(false)
		}
		desc.Consumer = &consumer
	}
	if desc.Producer != nil && opts.noConnect {
		producer := *desc.Producer
		producer.AutoConnect = boolPtr(false)
		desc.Producer = &producer
	}
	return desc
}

func withProperty(props kafka.Properties, key, value string) kafka.Properties {
	out := make(kafka.Properties, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out[key] = value
	return out
}

func boolPtr(b bool) *bool { return &b }

func runProbe(cmd *cobra.Command, opts probeOptions) error {
	start := time.Now()

	output, err := validateProbeOptions(opts)
	if err != nil {
		return err
	}

	var registry *prometheus.Registry
	provisionerOpts := []kafka.Option{
		kafka.WithLogger(slog.Default()),
		kafka.WithBuildOptions(kafka.WithClientLogger(slog.Default())),
	}
	if opts.metrics {
		registry = prometheus.NewRegistry()
		metrics, err := kafka.NewMetrics(registry)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		provisionerOpts = append(provisionerOpts, kafka.WithMetrics(metrics))
	}
	provisioner := kafka.NewProvisioner(provisionerOpts...)

	ctx, cancel := context.WithTimeout(cmdContext(cmd), opts.timeout)
	defer cancel()

	var (
		bundle     *kafka.Bundle
		requested  []kafka.Role
		configPath = opts.configPath
	)
	provision := func() error {
		var err error
		bundle, requested, err = provisionOnce(ctx, provisioner, opts, &configPath)
		return err
	}
	provisionErr := withRetry(ctx, "provision kafka connections", opts.retries, provision)
	if bundle != nil {
		defer bundle.Close()
	}

	result := reporter.NewProbeResult(requested, bundle, provisionErr, time.Since(start))
	result.Summary.ConfigPath = configPath
	result.Summary.Async = opts.async

	if admin, ok := bundle.AdminClient(); ok {
		cluster, err := admin.Describe(ctx)
		if err != nil {
			slog.Warn("failed to describe cluster", "error", err)
		} else {
			result.Cluster = cluster
		}
	}

	var probeReporter reporter.ProbeReporter
	switch output {
	case "json":
		probeReporter = reporter.NewJSONReporter(cmd.OutOrStdout(), false)
	default:
		probeReporter = reporter.NewTextReporter(cmd.OutOrStdout())
	}
	if err := probeReporter.GenerateProbe(ctx, result); err != nil {
		return err
	}

	if registry != nil {
		if err := writeMetrics(cmd.ErrOrStderr(), registry); err != nil {
			return err
		}
	}

	if provisionErr != nil {
		return provisionErr
	}

	slog.Info("probe completed", "roles", requested, "duration", time.Since(start))
	return nil
}

// provisionOnce runs one provisioning attempt and reports the roles it
// requested.
func provisionOnce(ctx context.Context, p *kafka.Provisioner, opts probeOptions, configPath *string) (*kafka.Bundle, []kafka.Role, error) {
	if strings.TrimSpace(opts.bootstrapServer) != "" {
		desc := flagDescriptor(opts)
		bundle, err := p.Provision(ctx, desc)
		return bundle, desc.RequestedRoles(), err
	}

	if opts.async {
		var requested []kafka.Role
		resolve := config.Resolver(*configPath)
		bundle, err := p.ProvisionAsync(ctx, kafka.AsyncConnectionDescriptor{
			Resolve: func(ctx context.Context) (kafka.ConnectionDescriptor, error) {
				desc, err := resolve(ctx)
				if err != nil {
					return desc, err
				}
				desc = applyOverrides(desc, opts)
				requested = desc.RequestedRoles()
				return desc, nil
			},
		})
		return bundle, requested, err
	}

	desc, found, err := config.LoadDescriptor(*configPath)
	if err != nil {
		return nil, nil, err
	}
	if found != "" {
		slog.Debug("loaded descriptor from config", "path", found)
		*configPath = found
	}
	desc = applyOverrides(desc, opts)
	bundle, err := p.Provision(ctx, desc)
	return bundle, desc.RequestedRoles(), err
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
