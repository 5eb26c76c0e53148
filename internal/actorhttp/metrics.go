package actorhttp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are the counters/gauges exposed at /__metrics. The teacher's own
// go.mod already carries prometheus/client_golang as a direct dependency;
// no retrieved teacher source exercises it, so these collectors follow the
// library's own idiomatic construction (promauto registration against a
// private registry) rather than mirroring a specific teacher file.
type metrics struct {
	registry        *prometheus.Registry
	callsTotal      *prometheus.CounterVec
	callErrorsTotal *prometheus.CounterVec
	activeSockets   prometheus.Gauge
	hibernations    prometheus.Counter
}

func newMetrics(actorID string) *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	labels := prometheus.Labels{"actor": actorID}

	return &metrics{
		registry: reg,
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorrpc_calls_total",
			Help:        "Total RPC calls dispatched by this actor instance.",
			ConstLabels: labels,
		}, []string{"path"}),
		callErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "actorrpc_call_errors_total",
			Help:        "Total RPC calls that returned an error.",
			ConstLabels: labels,
		}, []string{"path", "code"}),
		activeSockets: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "actorrpc_active_sockets",
			Help:        "Number of currently registered WebSocket transports.",
			ConstLabels: labels,
		}),
		hibernations: factory.NewCounter(prometheus.CounterOpts{
			Name:        "actorrpc_hibernation_transitions_total",
			Help:        "Total socket transitions into the hibernated state.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) observeCall(path string, err error) {
	m.callsTotal.WithLabelValues(path).Inc()
	if err != nil {
		m.callErrorsTotal.WithLabelValues(path, codeOf(err)).Inc()
	}
}
