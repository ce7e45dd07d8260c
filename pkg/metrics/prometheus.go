// Package metrics provides Prometheus metrics for the credit console.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Latency buckets in milliseconds for provider round-trips and HTTP handlers.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // constant bucket layout

// Manager owns all Prometheus collectors of the console.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Provider gateway
	providerRequests        *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec

	// Orchestrator
	dashboardRefreshes *prometheus.CounterVec
	staleResponses     *prometheus.CounterVec
	rankingRows        prometheus.Gauge
	entitiesListed     prometheus.Gauge

	// Limit workflow
	limitDecisions   *prometheus.CounterVec
	rejectedCommands *prometheus.CounterVec
	workflowState    *prometheus.GaugeVec

	// Console HTTP API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "creditconsole",
		subsystem:        "console",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.providerRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("provider_requests_total"),
		Help:        "Provider requests by operation and outcome",
		ConstLabels: labels,
	}, []string{"operation", "outcome"})

	m.providerRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("provider_request_duration_milliseconds"),
		Help:        "Provider round-trip latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"operation"})

	m.dashboardRefreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("dashboard_refresh_total"),
		Help:        "Dashboard fetches by outcome (committed, failed, stale)",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.staleResponses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stale_responses_total"),
		Help:        "Responses dropped because a newer request superseded them",
		ConstLabels: labels,
	}, []string{"resource"})

	m.rankingRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("ranking_rows"),
		Help:        "Rows in the committed portfolio ranking",
		ConstLabels: labels,
	})

	m.entitiesListed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("entities"),
		Help:        "Entities returned by the last entity list load",
		ConstLabels: labels,
	})

	m.limitDecisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("limit_decisions_total"),
		Help:        "Submitted limit decisions by kind (approve, revoke) and outcome",
		ConstLabels: labels,
	}, []string{"kind", "outcome"})

	m.rejectedCommands = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("workflow_rejected_commands_total"),
		Help:        "Workflow commands rejected by the state machine",
		ConstLabels: labels,
	}, []string{"command"})

	m.workflowState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("workflow_state"),
		Help:        "1 for the current limit workflow state, 0 otherwise",
		ConstLabels: labels,
	}, []string{"state"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Console API requests",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "Console API latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("memory_usage_bytes"),
		Help:        "Allocated heap bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("goroutines"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})
}

// RecordProviderRequest counts one provider call and observes its latency.
func (m *Manager) RecordProviderRequest(operation, outcome string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.providerRequests.WithLabelValues(operation, outcome).Inc()
	m.providerRequestDuration.WithLabelValues(operation).Observe(durationMs)
}

// RecordDashboardRefresh counts a dashboard fetch outcome.
func (m *Manager) RecordDashboardRefresh(outcome string) {
	if !m.enabled {
		return
	}
	m.dashboardRefreshes.WithLabelValues(outcome).Inc()
}

// RecordStaleResponse counts a dropped out-of-order response.
func (m *Manager) RecordStaleResponse(resource string) {
	if !m.enabled {
		return
	}
	m.staleResponses.WithLabelValues(resource).Inc()
}

// UpdateRankingRows sets the committed ranking size.
func (m *Manager) UpdateRankingRows(n int) {
	if !m.enabled {
		return
	}
	m.rankingRows.Set(float64(n))
}

// UpdateEntities sets the entity list size.
func (m *Manager) UpdateEntities(n int) {
	if !m.enabled {
		return
	}
	m.entitiesListed.Set(float64(n))
}

// RecordLimitDecision counts a submitted decision.
func (m *Manager) RecordLimitDecision(kind, outcome string) {
	if !m.enabled {
		return
	}
	m.limitDecisions.WithLabelValues(kind, outcome).Inc()
}

// RecordRejectedCommand counts a workflow command refused by its state.
func (m *Manager) RecordRejectedCommand(command string) {
	if !m.enabled {
		return
	}
	m.rejectedCommands.WithLabelValues(command).Inc()
}

// SetWorkflowState marks current as the active state among all.
func (m *Manager) SetWorkflowState(current string, all ...string) {
	if !m.enabled {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.workflowState.WithLabelValues(s).Set(v)
	}
}

// RecordHTTPRequest counts one console API request and observes its latency.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets heap usage.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func (m *Manager) UpdateSystemGoroutineCount(count int) {
	if !m.enabled {
		return
	}
	m.systemGoroutineCount.Set(float64(count))
}

// Package-level helpers on the global manager.

// RecordProviderRequest records on the global manager.
func RecordProviderRequest(operation, outcome string, durationMs float64) {
	globalManager.RecordProviderRequest(operation, outcome, durationMs)
}

// RecordDashboardRefresh records on the global manager.
func RecordDashboardRefresh(outcome string) { globalManager.RecordDashboardRefresh(outcome) }

// RecordStaleResponse records on the global manager.
func RecordStaleResponse(resource string) { globalManager.RecordStaleResponse(resource) }

// UpdateRankingRows records on the global manager.
func UpdateRankingRows(n int) { globalManager.UpdateRankingRows(n) }

// UpdateEntities records on the global manager.
func UpdateEntities(n int) { globalManager.UpdateEntities(n) }

// RecordLimitDecision records on the global manager.
func RecordLimitDecision(kind, outcome string) { globalManager.RecordLimitDecision(kind, outcome) }

// RecordRejectedCommand records on the global manager.
func RecordRejectedCommand(command string) { globalManager.RecordRejectedCommand(command) }

// SetWorkflowState records on the global manager.
func SetWorkflowState(current string, all ...string) {
	globalManager.SetWorkflowState(current, all...)
}

// RecordHTTPRequest records on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// UpdateSystemMemoryUsage records on the global manager.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount records on the global manager.
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval is how often process gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval returns the sampling interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }
