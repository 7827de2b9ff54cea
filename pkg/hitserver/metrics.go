package hitserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsController struct {
	registry *prometheus.Registry

	changesAccepted prometheus.Counter
	objectsStored   prometheus.Counter
	objectsFetched  prometheus.Counter
	subscribers     prometheus.Gauge
}

func newMetricsController() *metricsController {
	registry := prometheus.NewRegistry()

	m := &metricsController{
		registry: registry,
		changesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitsync_changes_accepted_total",
			Help: "Change notices accepted and sequenced",
		}),
		objectsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitsync_objects_stored_total",
			Help: "Objects written through the store endpoint (including idempotent re-stores)",
		}),
		objectsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitsync_objects_fetched_total",
			Help: "Objects served through the fetch endpoint",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hitsync_event_subscribers",
			Help: "Currently connected event stream subscribers",
		}),
	}

	registry.MustRegister(m.changesAccepted, m.objectsStored, m.objectsFetched, m.subscribers)

	return m
}

func (m *metricsController) httpHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
