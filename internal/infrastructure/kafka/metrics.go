package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_published_total",
		Help: "Envelopes successfully written to the bus, by topic.",
	}, []string{"topic"})

	eventsBuffered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bus_events_buffered",
		Help: "Envelopes held in the producer outbox awaiting reconnect.",
	})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_dropped_total",
		Help: "Envelopes dropped because the outbox overflowed, by topic.",
	}, []string{"topic"})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_consumed_total",
		Help: "Messages fetched and handled, by topic.",
	}, []string{"topic"})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_handler_errors_total",
		Help: "Per-message handler failures, by topic. The message is still committed.",
	}, []string{"topic"})
)
