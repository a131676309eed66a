// Package metrics defines and registers all custom Prometheus metrics for the
// pairchat server. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pairchat"

// ── Account metrics ───────────────────────────────────────────────────────────

// AuthAttemptsTotal counts registration and login attempts.
// Labels:
//   - action: "register" or "login"
//   - result: "ok" or the failure class (e.g. "invalid_passkey", "invalid_credentials")
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of register and login attempts, by outcome.",
	},
	[]string{"action", "result"},
)

// ── Message metrics ───────────────────────────────────────────────────────────

// MessagesSentTotal counts messages persisted through POST /messages.
var MessagesSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Total number of chat messages stored.",
	},
)

// MessagesDeletedTotal counts messages removed by conversation clears.
var MessagesDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_deleted_total",
		Help:      "Total number of chat messages removed by clearing a conversation.",
	},
)

// ── Realtime metrics ──────────────────────────────────────────────────────────

// RealtimeConnections tracks the number of open WebSocket connections.
var RealtimeConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Current number of open realtime connections.",
	},
)

// RealtimeEventsTotal counts events fanned out by the dispatcher.
// Label:
//   - event: "new_message" or "chat_cleared"
var RealtimeEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_total",
		Help:      "Total number of realtime events delivered to the hub.",
	},
	[]string{"event"},
)

// RealtimeDroppedTotal counts events that could not be delivered.
// Label:
//   - reason: "bus_full" (event bus outbox saturated), "queue_full" (dispatcher
//     shard saturated) or "slow_client" (connection send buffer full)
var RealtimeDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_total",
		Help:      "Total number of realtime deliveries dropped, by reason.",
	},
	[]string{"reason"},
)

// RealtimeQueueDepth tracks the current number of events waiting in each dispatcher shard.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var RealtimeQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
