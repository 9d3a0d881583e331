package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the room engine.
//
// Naming convention: namespace_subsystem_name
// - namespace: roomd (application-level grouping)
// - subsystem: connection, room, actor, write_sink, circuit_breaker, rate_limit
// - name: specific metric

var (
	// ActiveConnections tracks the current number of accepted WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomd",
		Subsystem: "connection",
		Name:      "active",
		Help:      "Current number of accepted WebSocket connections",
	})

	// AdmissionRejections tracks connections refused by the admission counter.
	AdmissionRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "connection",
		Name:      "admission_rejections_total",
		Help:      "Total connections refused because the admission ceiling was reached",
	})

	// ActiveRooms tracks the current number of active rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomd",
		Subsystem: "room",
		Name:      "active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks the number of members in each room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roomd",
		Subsystem: "room",
		Name:      "members",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// RoomEvents tracks the total number of room events processed, by type.
	RoomEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "room",
		Name:      "events_total",
		Help:      "Total room events processed",
	}, []string{"event_type"})

	// ActorLoopIterationDuration tracks the time spent handling one ingress
	// message inside a room actor's event loop.
	ActorLoopIterationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomd",
		Subsystem: "actor",
		Name:      "loop_iteration_seconds",
		Help:      "Time spent handling one ingress message in the room actor loop",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"message_type"})

	// CoalescedJoinBatches tracks the number of join/leave broadcasts emitted
	// after coalescing.
	CoalescedJoinBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "actor",
		Name:      "coalesced_batches_total",
		Help:      "Total join/leave broadcasts emitted after coalescing",
	})

	// CoalescedJoinsTotal tracks the number of individual joins folded into
	// coalesced batches.
	CoalescedJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "actor",
		Name:      "coalesced_joins_total",
		Help:      "Total individual joins folded into coalesced batches",
	})

	// MailboxDropsTotal tracks messages silently dropped by a non-blocking
	// send into a full channel: a connection's outbound mailbox
	// (reason "outbound_full") or the write sink's command channel
	// (reason "write_sink_full").
	MailboxDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "connection",
		Name:      "mailbox_drops_total",
		Help:      "Total messages dropped due to a full outbound mailbox or write sink channel",
	}, []string{"reason"})

	// WriteSinkBatchSize tracks the number of write commands per flushed batch.
	WriteSinkBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roomd",
		Subsystem: "write_sink",
		Name:      "batch_size",
		Help:      "Number of write commands per flushed batch",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
	})

	// WriteSinkFailuresTotal tracks batches dropped after a failed flush.
	WriteSinkFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "write_sink",
		Name:      "failures_total",
		Help:      "Total write batches dropped after a failed flush",
	})

	// CircuitBreakerState tracks the current state of a circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roomd",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by
	// the circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of management-API requests
	// that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against
	// the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomd",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
