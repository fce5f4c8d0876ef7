package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "feedserver_http_request_duration_seconds",
	Help:    "API request latency by method and status code",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "code"})

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedserver_events_published_total",
	Help: "Entity change events published to the bus, by type",
}, []string{"type"})

var eventClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "feedserver_event_clients",
	Help: "Open /events websocket connections",
})

func instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(requestDuration, next)
}
