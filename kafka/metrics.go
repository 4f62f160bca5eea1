package kafka

import (
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
)

const metricsNamespace = "kafkaprovision"

// Metrics records provisioning outcomes. A nil *Metrics records nothing.
type Metrics struct {
	provisions     *prometheus.CounterVec
	duration       prometheus.Histogram
	roleBuilds     *prometheus.CounterVec
	brokerConnects *prometheus.CounterVec
}

// NewMetrics creates the provisioning collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provision_total",
			Help:      "Provisioning attempts by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "provision_duration_seconds",
			Help:      "Time from provisioning start until the bundle is published or the attempt fails.",
			Buckets:   prometheus.DefBuckets,
		}),
		roleBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "role_builds_total",
			Help:      "Role builder invocations by role and result.",
		}, []string{"role", "result"}),
		brokerConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broker_connects_total",
			Help:      "Broker connections opened by provisioned clients, by role and result.",
		}, []string{"role", "result"}),
	}

	for _, c := range []prometheus.Collector{m.provisions, m.duration, m.roleBuilds, m.brokerConnects} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeProvision(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(errorKind(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeRole(role Role, err error) {
	if m == nil {
		return
	}
	m.roleBuilds.WithLabelValues(string(role), errorKind(err)).Inc()
}

// brokerHook returns a franz-go hook counting broker connections for role.
func (m *Metrics) brokerHook(role Role) kgo.Hook {
	if m == nil {
		return nil
	}
	return brokerConnectHook{role: role, connects: m.brokerConnects}
}

type brokerConnectHook struct {
	role     Role
	connects *prometheus.CounterVec
}

var _ kgo.HookBrokerConnect = brokerConnectHook{}

func (h brokerConnectHook) OnBrokerConnect(_ kgo.BrokerMetadata, _ time.Duration, _ net.Conn, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.connects.WithLabelValues(string(h.role), result).Inc()
}
