// Package metrics exposes Prometheus counters for the bot runtime and an
// operational HTTP endpoint serving them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesReceived counts inbound Telegram updates by kind.
	UpdatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pedidosbot_updates_received_total",
		Help: "Inbound Telegram updates by kind.",
	}, []string{"kind"})

	// FlowsStarted counts conversation flows started by flow name.
	FlowsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pedidosbot_flows_started_total",
		Help: "Conversation flows started.",
	}, []string{"flow"})

	// FlowsEnded counts conversation flows ended by flow name and outcome.
	FlowsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pedidosbot_flows_ended_total",
		Help: "Conversation flows ended by outcome (ok, cancelled, fail).",
	}, []string{"flow", "outcome"})

	// SendFailures counts outbound message delivery failures.
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pedidosbot_send_failures_total",
		Help: "Outbound Telegram send failures.",
	})
)
