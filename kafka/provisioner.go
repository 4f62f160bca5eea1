package kafka

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger used for provisioning events. Client logs are
// routed separately with WithClientLogger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records provisioning outcomes and broker connections.
func WithMetrics(m *Metrics) Option {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

// WithBuildOptions passes options through to every role builder.
func WithBuildOptions(opts ...BuildOption) Option {
	return func(p *Provisioner) {
		p.buildOpts = append(p.buildOpts, opts...)
	}
}

// Provisioner builds the requested roles of a descriptor and publishes them
// as a Bundle. It holds no per-attempt state and may be reused.
type Provisioner struct {
	logger    *slog.Logger
	metrics   *Metrics
	buildOpts []BuildOption

	buildAdmin    func(AdminConfig, ...BuildOption) (*AdminClient, error)
	buildConsumer func(context.Context, ConsumerConfig, ...BuildOption) (*Consumer, error)
	buildProducer func(context.Context, ProducerConfig, ...BuildOption) (*Producer, error)
}

// NewProvisioner creates a Provisioner using the franz-go role builders.
func NewProvisioner(opts ...Option) *Provisioner {
	p := &Provisioner{
		buildAdmin:    BuildAdminClient,
		buildConsumer: BuildConsumer,
		buildProducer: BuildProducer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision builds every requested role concurrently. The bundle is returned
// only once all of them succeeded. On the first failure the remaining
// handshakes are cancelled, every handle already built is closed and that
// failure is returned.
func (p *Provisioner) Provision(ctx context.Context, desc ConnectionDescriptor) (*Bundle, error) {
	start := time.Now()
	roles := desc.RequestedRoles()
	p.log().Debug("provisioning kafka connections", "roles", roles)

	bundle, err := p.build(ctx, desc)
	p.metrics.observeProvision(err, time.Since(start))
	if err != nil {
		p.log().Debug("kafka provisioning failed", "roles", roles, "error", err)
		return nil, err
	}

	p.log().Debug("kafka connections published", "roles", roles, "duration", time.Since(start))
	return bundle, nil
}

// ProvisionAsync resolves the descriptor first and then provisions it.
// A resolver failure is returned as a *ResolutionError before any role is
// built.
func (p *Provisioner) ProvisionAsync(ctx context.Context, async AsyncConnectionDescriptor) (*Bundle, error) {
	start := time.Now()

	desc, err := p.Resolve(ctx, async)
	if err != nil {
		p.metrics.observeProvision(err, time.Since(start))
		return nil, err
	}

	return p.Provision(ctx, desc)
}

// Resolve runs the resolver stage of ProvisionAsync on its own.
func (p *Provisioner) Resolve(ctx context.Context, async AsyncConnectionDescriptor) (ConnectionDescriptor, error) {
	if async.Resolve == nil {
		return ConnectionDescriptor{}, &ResolutionError{Err: ErrNilResolver}
	}

	p.log().Debug("resolving kafka connection descriptor")
	desc, err := async.Resolve(ctx)
	if err != nil {
		return ConnectionDescriptor{}, &ResolutionError{Err: err}
	}

	if desc.Global == nil {
		desc.Global = async.Global
	}
	return desc, nil
}

func (p *Provisioner) build(ctx context.Context, desc ConnectionDescriptor) (*Bundle, error) {
	g, gctx := errgroup.WithContext(ctx)

	// Each goroutine writes a distinct field; Wait orders the writes before
	// the bundle is read.
	var bundle Bundle

	if desc.Admin != nil {
		cfg := *desc.Admin
		g.Go(func() error {
			admin, err := p.buildAdmin(cfg, p.roleOpts(RoleAdmin)...)
			p.observeRole(RoleAdmin, err)
			if err != nil {
				return err
			}
			bundle.admin = admin
			return nil
		})
	}

	if desc.Consumer != nil {
		cfg := *desc.Consumer
		g.Go(func() error {
			consumer, err := p.buildConsumer(gctx, cfg, p.roleOpts(RoleConsumer)...)
			p.observeRole(RoleConsumer, err)
			if err != nil {
				return err
			}
			bundle.consumer = consumer
			return nil
		})
	}

	if desc.Producer != nil {
		cfg := *desc.Producer
		g.Go(func() error {
			producer, err := p.buildProducer(gctx, cfg, p.roleOpts(RoleProducer)...)
			p.observeRole(RoleProducer, err)
			if err != nil {
				return err
			}
			bundle.producer = producer
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		bundle.Close()
		return nil, err
	}
	return &bundle, nil
}

func (p *Provisioner) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

func (p *Provisioner) roleOpts(role Role) []BuildOption {
	opts := make([]BuildOption, 0, len(p.buildOpts)+1)
	opts = append(opts, p.buildOpts...)
	if hook := p.metrics.brokerHook(role); hook != nil {
		opts = append(opts, WithHooks(hook))
	}
	return opts
}

func (p *Provisioner) observeRole(role Role, err error) {
	p.metrics.observeRole(role, err)
	if err != nil {
		return
	}
	p.log().Debug("kafka role built", "role", role)
}

var defaultProvisioner = NewProvisioner()

// Provision builds desc with a default Provisioner.
func Provision(ctx context.Context, desc ConnectionDescriptor) (*Bundle, error) {
	return defaultProvisioner.Provision(ctx, desc)
}

// ProvisionAsync resolves and builds async with a default Provisioner.
func ProvisionAsync(ctx context.Context, async AsyncConnectionDescriptor) (*Bundle, error) {
	return defaultProvisioner.ProvisionAsync(ctx, async)
}
