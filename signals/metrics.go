package signals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "signals"

type metrics struct {
	handles     prometheus.GaugeFunc
	nodes       prometheus.GaugeFunc
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	uncached    prometheus.Counter
	warnings    *prometheus.CounterVec
	parseErrors prometheus.Counter
}

// newMetrics creates the engine's collectors. With a nil registerer they
// are created but not registered.
func newMetrics(reg prometheus.Registerer, m *Manager) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		handles: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "registry_handles",
			Help:      "Number of interned signal handles",
		}, func() float64 { return float64(m.registry.Len()) }),

		nodes: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "node_pool_nodes",
			Help:      "Number of pooled expression nodes",
		}, func() float64 { return float64(m.pool.Len()) }),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hits_total",
			Help:      "Signal reads answered from a clean cached value",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_misses_total",
			Help:      "Signal bindings evaluated and cached",
		}),

		uncached: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uncached_evaluations_total",
			Help:      "Signal bindings evaluated without caching the result",
		}),

		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "eval_warnings_total",
			Help:      "Evaluation warnings by reason",
		}, []string{"reason"}),

		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parse_errors_total",
			Help:      "Expressions that failed to parse",
		}),
	}
}
