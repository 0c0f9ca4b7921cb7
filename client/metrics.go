package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamchat_messages_sent_total",
			Help: "Messages submitted through the send pipeline",
		},
	)

	optimisticReverts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamchat_optimistic_reverts_total",
			Help: "Optimistic updates rolled back after a failed write",
		},
		[]string{"op"}, // "send", "pin" or "reaction"
	)

	pushEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamchat_push_events_total",
			Help: "Push events received from the server",
		},
		[]string{"event"},
	)

	historyLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamchat_history_loads_total",
			Help: "Channel history fetches issued",
		},
	)

	staleLoadsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamchat_stale_loads_discarded_total",
			Help: "History results dropped because the channel changed while in flight",
		},
	)
)
