package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UsersMetrics holds the Prometheus collectors describing the user collection.
type UsersMetrics struct {
	registry       *prometheus.Registry
	collectionSize prometheus.Gauge
	loads          *prometheus.CounterVec
	mutations      *prometheus.CounterVec
}

func NewUsersMetrics() *UsersMetrics {
	m := &UsersMetrics{
		registry: prometheus.NewRegistry(),
		collectionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userdesk_users_collection_size",
			Help: "Number of user records in the working collection.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdesk_users_load_total",
			Help: "Collection loads by outcome.",
		}, []string{"outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdesk_users_mutations_total",
			Help: "Applied collection mutations by operation.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.collectionSize, m.loads, m.mutations)
	return m
}

func (m *UsersMetrics) SetCollectionSize(n int) {
	if m == nil {
		return
	}
	m.collectionSize.Set(float64(n))
}

func (m *UsersMetrics) LoadOutcome(outcome string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
}

func (m *UsersMetrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
}

func (m *UsersMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
