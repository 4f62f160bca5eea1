package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

type propertyLevel uint8

const (
	levelClient propertyLevel = 1 << iota
	levelTopic
)

func (l propertyLevel) String() string {
	if l == levelTopic {
		return "topic"
	}
	return "client"
}

type applyFunc func(o *clientOptions, value string) error

type propertySpec struct {
	roles []Role // empty: every role
	level propertyLevel
	apply applyFunc
}

func (s propertySpec) appliesTo(role Role) bool {
	if len(s.roles) == 0 {
		return true
	}
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

var (
	consumerOnly = []Role{RoleConsumer}
	producerOnly = []Role{RoleProducer}
)

// properties is the set of recognised configuration properties.
var properties = map[string]propertySpec{
	"bootstrap.servers":    {level: levelClient, apply: setSeeds},
	"metadata.broker.list": {level: levelClient, apply: setSeeds},
	"client.id":            {level: levelClient, apply: stringOpt(kgo.ClientID)},

	"security.protocol":                   {level: levelClient, apply: setProtocol},
	"sasl.mechanism":                      {level: levelClient, apply: setMechanism},
	"sasl.mechanisms":                     {level: levelClient, apply: setMechanism},
	"sasl.username":                       {level: levelClient, apply: func(o *clientOptions, v string) error { o.security.username = v; return nil }},
	"sasl.password":                       {level: levelClient, apply: func(o *clientOptions, v string) error { o.security.password = v; return nil }},
	"ssl.ca.location":                     {level: levelClient, apply: func(o *clientOptions, v string) error { o.security.caFile = v; return nil }},
	"ssl.certificate.location":            {level: levelClient, apply: func(o *clientOptions, v string) error { o.security.certFile = v; return nil }},
	"ssl.key.location":                    {level: levelClient, apply: func(o *clientOptions, v string) error { o.security.keyFile = v; return nil }},
	"enable.ssl.certificate.verification": {level: levelClient, apply: setCertificateVerification},

	"socket.connection.setup.timeout.ms": {level: levelClient, apply: millisOpt(kgo.DialTimeout)},
	"request.timeout.ms":                 {level: levelClient, apply: setRequestTimeout},
	"metadata.max.age.ms":                {level: levelClient, apply: millisOpt(kgo.MetadataMaxAge)},
	"retry.backoff.ms":                   {level: levelClient, apply: setRetryBackoff},

	"group.id":                {roles: consumerOnly, level: levelClient, apply: stringOpt(kgo.ConsumerGroup)},
	"enable.auto.commit":      {roles: consumerOnly, level: levelClient, apply: disableWhenFalse(kgo.DisableAutoCommit)},
	"auto.commit.interval.ms": {roles: consumerOnly, level: levelClient, apply: millisOpt(kgo.AutoCommitInterval)},
	"session.timeout.ms":      {roles: consumerOnly, level: levelClient, apply: millisOpt(kgo.SessionTimeout)},
	"heartbeat.interval.ms":   {roles: consumerOnly, level: levelClient, apply: millisOpt(kgo.HeartbeatInterval)},
	"fetch.max.bytes":         {roles: consumerOnly, level: levelClient, apply: int32Opt(kgo.FetchMaxBytes)},
	"isolation.level":         {roles: consumerOnly, level: levelClient, apply: setIsolationLevel},
	"auto.offset.reset":       {roles: consumerOnly, level: levelClient | levelTopic, apply: setOffsetReset},

	"transactional.id":      {roles: producerOnly, level: levelClient, apply: stringOpt(kgo.TransactionalID)},
	"linger.ms":             {roles: producerOnly, level: levelClient, apply: millisOpt(kgo.ProducerLinger)},
	"batch.size":            {roles: producerOnly, level: levelClient, apply: int32Opt(kgo.ProducerBatchMaxBytes)},
	"enable.idempotence":    {roles: producerOnly, level: levelClient, apply: disableWhenFalse(kgo.DisableIdempotentWrite)},
	"compression.codec":     {roles: producerOnly, level: levelClient | levelTopic, apply: setCompression},
	"compression.type":      {roles: producerOnly, level: levelClient | levelTopic, apply: setCompression},
	"message.timeout.ms":    {roles: producerOnly, level: levelClient | levelTopic, apply: millisOpt(kgo.RecordDeliveryTimeout)},
	"acks":                  {roles: producerOnly, level: levelClient | levelTopic, apply: setAcks},
	"request.required.acks": {roles: producerOnly, level: levelClient | levelTopic, apply: setAcks},
}

// securityConfig collects the TLS and SASL properties, which only make sense
// together.
type securityConfig struct {
	protocol   string
	mechanism  string
	username   string
	password   string
	caFile     string
	certFile   string
	keyFile    string
	skipVerify bool
}

// saslEnabled reports whether the protocol authenticates with SASL. The
// mechanism is ignored under plaintext and ssl.
func (s securityConfig) saslEnabled() bool {
	return strings.HasPrefix(s.protocol, "sasl_")
}

func (s securityConfig) tlsEnabled() bool {
	return s.protocol == "ssl" || s.protocol == "sasl_ssl" ||
		s.caFile != "" || s.certFile != "" || s.keyFile != ""
}

// clientOptions accumulates franz-go options for one role.
type clientOptions struct {
	role           Role
	seeds          []string
	opts           []kgo.Opt
	security       securityConfig
	requestTimeout time.Duration
}

// translate turns role properties into franz-go client options.
func translate(role Role, conf, topicConf Properties) (*clientOptions, error) {
	o := &clientOptions{role: role}
	if err := o.applyAll(conf.normalized(), levelClient); err != nil {
		return nil, err
	}
	if err := o.applyAll(topicConf.normalized(), levelTopic); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *clientOptions) applyAll(props Properties, level propertyLevel) error {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		spec, ok := properties[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProperty, key)
		}
		if spec.level&level == 0 {
			return fmt.Errorf("property %q is not a %s property", key, level)
		}
		if !spec.appliesTo(o.role) {
			return fmt.Errorf("property %q does not apply to the %s role", key, o.role)
		}
		value := props[key]
		if err := spec.apply(o, value); err != nil {
			return fmt.Errorf("invalid value %q for property %q: %w", value, key, err)
		}
	}
	return nil
}

// build finalises the option list. Seeds, SASL and TLS come first.
func (o *clientOptions) build() ([]kgo.Opt, error) {
	if len(o.seeds) == 0 {
		return nil, ErrNoBootstrapServers
	}

	opts := []kgo.Opt{kgo.SeedBrokers(o.seeds...)}

	if o.security.saslEnabled() {
		saslOpt, err := buildSASL(o.security)
		if err != nil {
			return nil, fmt.Errorf("failed to configure SASL: %w", err)
		}
		opts = append(opts, saslOpt)
	}

	if o.security.tlsEnabled() {
		tlsConfig, err := buildTLS(o.security)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}

	return append(opts, o.opts...), nil
}

func setSeeds(o *clientOptions, value string) error {
	seeds := strings.Split(value, ",")
	o.seeds = o.seeds[:0]
	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		if seed != "" {
			o.seeds = append(o.seeds, seed)
		}
	}
	return nil
}

func setProtocol(o *clientOptions, value string) error {
	protocol := strings.ToLower(value)
	switch protocol {
	case "plaintext", "ssl", "sasl_plaintext", "sasl_ssl":
		o.security.protocol = protocol
		return nil
	default:
		return errors.New("expected plaintext, ssl, sasl_plaintext or sasl_ssl")
	}
}

func setMechanism(o *clientOptions, value string) error {
	o.security.mechanism = strings.ToUpper(value)
	return nil
}

func setCertificateVerification(o *clientOptions, value string) error {
	verify, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	o.security.skipVerify = !verify
	return nil
}

func setRequestTimeout(o *clientOptions, value string) error {
	d, err := parseMillis(value)
	if err != nil {
		return err
	}
	if d > math.MaxInt32*time.Millisecond {
		return fmt.Errorf("must not exceed %d", math.MaxInt32)
	}
	o.requestTimeout = d
	o.opts = append(o.opts, kgo.RequestTimeoutOverhead(d))
	return nil
}

func setRetryBackoff(o *clientOptions, value string) error {
	d, err := parseMillis(value)
	if err != nil {
		return err
	}
	o.opts = append(o.opts, kgo.RetryBackoffFn(func(int) time.Duration { return d }))
	return nil
}

func setIsolationLevel(o *clientOptions, value string) error {
	switch strings.ToLower(value) {
	case "read_committed":
		o.opts = append(o.opts, kgo.FetchIsolationLevel(kgo.ReadCommitted()))
	case "read_uncommitted":
		o.opts = append(o.opts, kgo.FetchIsolationLevel(kgo.ReadUncommitted()))
	default:
		return errors.New("expected read_committed or read_uncommitted")
	}
	return nil
}

func setOffsetReset(o *clientOptions, value string) error {
	switch strings.ToLower(value) {
	case "earliest", "smallest", "beginning":
		o.opts = append(o.opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	case "latest", "largest", "end":
		o.opts = append(o.opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		return errors.New("expected earliest or latest")
	}
	return nil
}

func setCompression(o *clientOptions, value string) error {
	var codec kgo.CompressionCodec
	switch strings.ToLower(value) {
	case "none":
		codec = kgo.NoCompression()
	case "gzip":
		codec = kgo.GzipCompression()
	case "snappy":
		codec = kgo.SnappyCompression()
	case "lz4":
		codec = kgo.Lz4Compression()
	case "zstd":
		codec = kgo.ZstdCompression()
	default:
		return errors.New("expected none, gzip, snappy, lz4 or zstd")
	}
	o.opts = append(o.opts, kgo.ProducerBatchCompression(codec))
	return nil
}

func setAcks(o *clientOptions, value string) error {
	switch strings.ToLower(value) {
	case "0":
		o.opts = append(o.opts, kgo.RequiredAcks(kgo.NoAck()))
	case "1":
		o.opts = append(o.opts, kgo.RequiredAcks(kgo.LeaderAck()))
	case "-1", "all":
		o.opts = append(o.opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	default:
		return errors.New("expected 0, 1, -1 or all")
	}
	return nil
}

func stringOpt[O kgo.Opt](fn func(string) O) applyFunc {
	return func(o *clientOptions, value string) error {
		if value == "" {
			return errors.New("value is empty")
		}
		o.opts = append(o.opts, fn(value))
		return nil
	}
}

func millisOpt[O kgo.Opt](fn func(time.Duration) O) applyFunc {
	return func(o *clientOptions, value string) error {
		d, err := parseMillis(value)
		if err != nil {
			return err
		}
		o.opts = append(o.opts, fn(d))
		return nil
	}
}

func int32Opt[O kgo.Opt](fn func(int32) O) applyFunc {
	return func(o *clientOptions, value string) error {
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return err
		}
		if n <= 0 {
			return errors.New("must be greater than zero")
		}
		o.opts = append(o.opts, fn(int32(n)))
		return nil
	}
}

// disableWhenFalse applies fn when a boolean property is set to false.
func disableWhenFalse[O kgo.Opt](fn func() O) applyFunc {
	return func(o *clientOptions, value string) error {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		if !enabled {
			o.opts = append(o.opts, fn())
		}
		return nil
	}
}

func parseMillis(value string) (time.Duration, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		return 0, errors.New("must not be negative")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// buildSASL creates SASL authentication options based on the mechanism
func buildSASL(cfg securityConfig) (kgo.Opt, error) {
	if cfg.username == "" || cfg.password == "" {
		return nil, errors.New("sasl.username and sasl.password are required")
	}

	mechanism := cfg.mechanism
	if mechanism == "" {
		mechanism = "PLAIN"
	}

	switch mechanism {
	case "PLAIN":
		return kgo.SASL(plain.Auth{
			User: cfg.username,
			Pass: cfg.password,
		}.AsMechanism()), nil

	case "SCRAM-SHA-256":
		return kgo.SASL(scram.Auth{
			User: cfg.username,
			Pass: cfg.password,
		}.AsSha256Mechanism()), nil

	case "SCRAM-SHA-512":
		return kgo.SASL(scram.Auth{
			User: cfg.username,
			Pass: cfg.password,
		}.AsSha512Mechanism()), nil

	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.mechanism)
	}
}

// buildTLS creates TLS configuration from the provided cert files
func buildTLS(cfg securityConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.skipVerify,
	}

	if (cfg.certFile == "") != (cfg.keyFile == "") {
		return nil, errors.New("ssl.certificate.location and ssl.key.location must be provided together")
	}

	if cfg.certFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.certFile, cfg.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.caFile != "" {
		caCert, err := os.ReadFile(cfg.caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
