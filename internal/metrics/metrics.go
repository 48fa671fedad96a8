package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records identifier lifecycle and sync outcomes.
type Metrics struct {
	IDsResolved  *prometheus.CounterVec
	IDsExtended  *prometheus.CounterVec
	SyncOutcomes *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg, reg)
}

func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IDsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pubcid_ids_resolved_total",
			Help: "Primary identifiers resolved by source",
		}, []string{"source"}), // stored, external, minted, none
		IDsExtended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pubcid_ids_extended_total",
			Help: "Extend calls by outcome",
		}, []string{"outcome"}),
		SyncOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pubcid_sharedid_sync_total",
			Help: "Shared id sync exchanges by outcome",
		}, []string{"outcome"}),
		gatherer: gatherer,
	}
}

func (m *Metrics) IDResolved(source string) {
	if m != nil {
		m.IDsResolved.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) IDExtended(outcome string) {
	if m != nil {
		m.IDsExtended.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SyncOutcome(outcome string) {
	if m != nil {
		m.SyncOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
