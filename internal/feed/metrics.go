package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pageLoadsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feed_page_loads_total",
	Help: "Page load attempts by store and outcome",
}, []string{"store", "outcome"})

var mutationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feed_mutations_total",
	Help: "Optimistic mutations by store, action and result (committed, rolled_back)",
}, []string{"store", "action", "result"})

var feedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feed_remote_events_total",
	Help: "Server events merged into a store, by store and event type",
}, []string{"store", "type"})
