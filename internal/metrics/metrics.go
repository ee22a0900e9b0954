// Package metrics exposes Prometheus collectors for the feed, the token store and alerts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenpulse",
		Subsystem: "feed",
		Name:      "ticks_total",
		Help:      "Simulated price ticks broadcast to listeners",
	})

	FeedScheduled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenpulse",
		Subsystem: "feed",
		Name:      "scheduled_tokens",
		Help:      "Tokens with a live tick schedule",
	})

	TokensTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenpulse",
		Subsystem: "tokens",
		Name:      "tracked",
		Help:      "Tokens in the current snapshot",
	})

	UpdatesIgnored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenpulse",
		Subsystem: "tokens",
		Name:      "updates_ignored_total",
		Help:      "Feed updates for token ids no longer present",
	})

	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenpulse",
		Subsystem: "tokens",
		Name:      "refresh_errors_total",
		Help:      "Failed upstream token fetches",
	})

	AlertsTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenpulse",
		Subsystem: "alerts",
		Name:      "triggered_total",
		Help:      "Alerts latched by evaluation",
	}, []string{"condition"})

	AlertsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenpulse",
		Subsystem: "alerts",
		Name:      "armed",
		Help:      "Alerts that are enabled and not yet triggered",
	})

	PersistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenpulse",
		Subsystem: "storage",
		Name:      "errors_total",
		Help:      "Swallowed persistence failures",
	}, []string{"op"})

	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenpulse",
		Subsystem: "api",
		Name:      "stream_clients",
		Help:      "Connected websocket clients",
	})
)

func init() {
	prometheus.MustRegister(
		FeedTicks,
		FeedScheduled,
		TokensTracked,
		UpdatesIgnored,
		RefreshErrors,
		AlertsTriggered,
		AlertsActive,
		PersistErrors,
		StreamClients,
	)
}

// Handler serves the default registry in OpenMetrics format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
