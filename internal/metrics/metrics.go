package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event bus metrics
var (
	// BusSubscribersCurrent tracks active subscribers per bus
	BusSubscribersCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bus_subscribers_current",
			Help: "Current number of active subscribers by bus",
		},
		[]string{"bus"},
	)

	// BusEventsPublishedTotal tracks published events by bus and event type
	BusEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Total events published by bus and event type",
		},
		[]string{"bus", "type"},
	)

	// BusEventsDroppedTotal tracks events dropped due to full subscriber buffers
	BusEventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_dropped_total",
			Help: "Total events dropped because a subscriber buffer was full",
		},
		[]string{"bus"},
	)
)

// Stream transport metrics
var (
	// StreamsOpenCurrent tracks currently open push streams by bus
	StreamsOpenCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streams_open_current",
			Help: "Currently open event streams by bus",
		},
		[]string{"bus"},
	)

	// StreamsRejectedTotal tracks streams rejected by the per-key cap
	StreamsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streams_rejected_total",
			Help: "Total stream requests rejected because the per-key limit was reached",
		},
	)

	// StreamHeartbeatsTotal tracks keep-alive frames sent
	StreamHeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_heartbeats_total",
			Help: "Total keep-alive comment frames sent",
		},
	)

	// StreamWriteErrorsTotal tracks failed frame writes (client gone)
	StreamWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_write_errors_total",
			Help: "Total frame write failures that tore down a stream",
		},
	)
)

// Vote processing metrics
var (
	// VotesProcessedTotal tracks vote operations by outcome (cast/moved/noop/error)
	VotesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_processed_total",
			Help: "Total vote operations by outcome",
		},
		[]string{"outcome"},
	)
)

// Session registry metrics
var (
	// SessionsCreatedTotal counts sessions created via ensure
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total sessions created",
		},
	)

	// SessionsTerminatedTotal counts one-way terminations
	SessionsTerminatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_terminated_total",
			Help: "Total sessions terminated",
		},
	)
)
