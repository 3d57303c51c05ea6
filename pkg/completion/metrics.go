package completion

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a Provider.
type Metrics struct {
	Builds        prometheus.Counter
	Loads         *prometheus.CounterVec
	CacheHits     prometheus.Counter
	QueryDuration prometheus.Histogram
	TagsLoaded    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg gets a
// private registry. Collectors already present on reg are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tagserve",
			Name:      "index_builds_total",
			Help:      "Total number of index builds written to the cache.",
		}),
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagserve",
			Name:      "loads_total",
			Help:      "Total number of load attempts by result (ok, error).",
		}, []string{"result"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tagserve",
			Name:      "cache_hits_total",
			Help:      "Loads served from existing index artifacts.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tagserve",
			Name:      "query_duration_seconds",
			Help:      "Completion query latency in seconds.",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		}),
		TagsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagserve",
			Name:      "tags_loaded",
			Help:      "Number of tags in the active metadata mapping.",
		}),
	}
	m.Builds = register(reg, m.Builds)
	m.Loads = register(reg, m.Loads)
	m.CacheHits = register(reg, m.CacheHits)
	m.QueryDuration = register(reg, m.QueryDuration)
	m.TagsLoaded = register(reg, m.TagsLoaded)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler returns the Prometheus scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
