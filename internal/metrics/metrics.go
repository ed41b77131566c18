package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes recorded against EventsTotal.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeIgnored     = "ignored"
)

// Hub Metrics
var (
	// EventsTotal counts inbound client events by name and outcome
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_total",
			Help: "Inbound client events by event name and outcome",
		},
		[]string{"event", "outcome"},
	)

	// SessionsCreated counts sessions opened by hosts
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_sessions_created_total",
			Help: "Total sessions created",
		},
	)

	// SessionsEnded counts sessions closed because the host left
	SessionsEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_sessions_ended_total",
			Help: "Total sessions ended",
		},
	)

	// SessionsActive tracks the number of open sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_sessions_active",
			Help: "Number of open sessions",
		},
	)
)

// WebSocket Metrics
var (
	// ClientsConnected tracks currently connected websocket clients
	ClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_ws_clients_connected",
			Help: "Number of connected websocket clients",
		},
	)

	// DroppedClients counts clients disconnected for not keeping up
	DroppedClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_ws_dropped_clients_total",
			Help: "Websocket clients disconnected because their send buffer was full",
		},
	)

	// RejectedConnections counts upgrades refused at the connection limit
	RejectedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_ws_rejected_connections_total",
			Help: "Websocket upgrades refused because the connection limit was reached",
		},
	)
)
