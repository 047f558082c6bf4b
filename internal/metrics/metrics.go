package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	RequestsTotal    *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
	BudgetBlocksTotal prometheus.Counter
	FallbacksTotal   prometheus.Counter
	CostUSDTotal     prometheus.Counter

	// Front-end metrics
	WebhookDeliveriesTotal  *prometheus.CounterVec
	TelegramMessagesTotal   prometheus.Counter
	DashboardSessionsActive prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orkestra_requests_total",
				Help: "Total number of pipeline requests",
			},
			[]string{"source", "outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orkestra_cache_hits_total",
				Help: "Total number of response cache hits",
			},
		),
		BudgetBlocksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orkestra_budget_blocks_total",
				Help: "Total number of requests blocked by the budget cap",
			},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orkestra_fallbacks_total",
				Help: "Total number of local-backend fallback attempts",
			},
		),
		CostUSDTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orkestra_cost_usd_total",
				Help: "Cumulative recorded spend in USD",
			},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orkestra_webhook_deliveries_total",
				Help: "Total number of webhook deliveries",
			},
			[]string{"path", "status"},
		),
		TelegramMessagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orkestra_telegram_messages_total",
				Help: "Total number of Telegram messages processed",
			},
		),
		DashboardSessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orkestra_dashboard_sessions_active",
				Help: "Number of authenticated dashboard sessions",
			},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.CacheHitsTotal,
		m.BudgetBlocksTotal,
		m.FallbacksTotal,
		m.CostUSDTotal,
		m.WebhookDeliveriesTotal,
		m.TelegramMessagesTotal,
		m.DashboardSessionsActive,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
