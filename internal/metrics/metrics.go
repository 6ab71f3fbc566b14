// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, chi route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_http_requests_total",
		Help: "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forum_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ActiveSubscriptions is the number of live queries held by views.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_active_subscriptions",
		Help: "Number of live subscriptions currently held by views",
	})

	SnapshotsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_snapshots_delivered_total",
		Help: "Total snapshots delivered to views",
	})

	// SnapshotsDropped counts snapshots never delivered, by reason:
	// "stale" (older than one already delivered), "superseded" (replaced
	// in the mailbox by a newer one) or "released" (handle already gone).
	SnapshotsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_snapshots_dropped_total",
		Help: "Total snapshots dropped before delivery, by reason",
	}, []string{"reason"})

	// VotesTotal counts vote submissions by requested type and outcome.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_votes_total",
		Help: "Total vote submissions by vote type and result",
	}, []string{"type", "result"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_live_connections",
		Help: "Number of open live-update WebSocket connections",
	})
)
