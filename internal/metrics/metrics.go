package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Consumer metrics
	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smokesignal_events_consumed_total",
			Help: "Total number of events pulled from the feed",
		},
		[]string{"shape"}, // shape: temperature, chat
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smokesignal_events_dropped_total",
			Help: "Total number of payloads rejected at decode",
		},
		[]string{"reason"}, // reason: malformed, missing_field
	)

	AlertsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smokesignal_alerts_emitted_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"kind"},
	)

	TrackedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smokesignal_tracked_keys",
			Help: "Number of keys currently held by the state store",
		},
	)

	WindowFill = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smokesignal_window_fill",
			Help: "Readings currently held in the temperature stream window",
		},
	)

	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smokesignal_process_duration_seconds",
			Help:    "Time taken to decode, apply, and evaluate one event",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)

	// Producer metrics
	ProducerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smokesignal_producer_messages_total",
			Help: "Total number of payloads published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	ProducerPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smokesignal_producer_publish_duration_seconds",
			Help:    "Time taken to publish one payload to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	ProducerRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smokesignal_producer_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	ProducerBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smokesignal_producer_bytes_total",
			Help: "Total bytes written to Kafka",
		},
	)

	// Replay metrics
	ReplayRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smokesignal_replay_rows_total",
			Help: "Total number of CSV rows converted to payloads",
		},
	)
)
