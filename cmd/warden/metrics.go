package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_events_received",
	Help: "Number of events received, by source and kind",
}, []string{"source", "kind"})

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_events_dropped",
	Help: "Number of events dropped because the engine queue was full",
}, []string{"kind"})

var consumerReconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_consumer_reconnects",
	Help: "Number of times the event stream connection was re-established",
})
