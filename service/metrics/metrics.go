package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Soroban RPC Metrics
	sorobanRPCCallsTotal   *prometheus.CounterVec
	sorobanRPCCallDuration *prometheus.HistogramVec
	simulationErrorsTotal  *prometheus.CounterVec

	// Ticket Metrics
	totalsDegradedTotal      *prometheus.CounterVec
	mintBuildsTotal          *prometheus.CounterVec
	submissionsTotal         *prometheus.CounterVec
	submissionFinalStatus    *prometheus.CounterVec
	lastObservedTicketsTotal prometheus.Gauge

	// Workflow Metrics
	confirmationWorkflowDuration *prometheus.HistogramVec
	confirmationPollsTotal       *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Soroban RPC Metrics
		sorobanRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroban_rpc_calls_total",
				Help: "Total number of Soroban RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		sorobanRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soroban_rpc_call_duration_seconds",
				Help:    "Duration of Soroban RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		simulationErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroban_simulation_errors_total",
				Help: "Total number of contract simulations that returned an error",
			},
			[]string{"function"},
		),

		// Ticket Metrics
		totalsDegradedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_totals_degraded_total",
				Help: "Total number of totals reads answered with default values",
			},
			[]string{"field"},
		),
		mintBuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_mint_builds_total",
				Help: "Total number of mint transactions built",
			},
			[]string{"status"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_submissions_total",
				Help: "Total number of signed transactions submitted by outcome",
			},
			[]string{"status"},
		),
		submissionFinalStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_submission_final_status_total",
				Help: "Total number of submissions that reached a final ledger status",
			},
			[]string{"status"},
		),
		lastObservedTicketsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ticket_total_observed",
				Help: "Ticket total returned by the most recent successful read",
			},
		),

		// Workflow Metrics
		confirmationWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_workflow_duration_seconds",
				Help:    "Duration of confirmation workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		confirmationPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmation_polls_total",
				Help: "Total number of transaction status polls",
			},
			[]string{"status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Soroban RPC metric helpers

// RecordRPCCall records a Soroban RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.sorobanRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.sorobanRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordSimulationError records a simulation that came back with an error.
func (m *Metrics) RecordSimulationError(function string) {
	m.simulationErrorsTotal.WithLabelValues(function).Inc()
}

// Ticket metric helpers

// RecordTotalsDegraded records a totals field replaced by its default value.
func (m *Metrics) RecordTotalsDegraded(field string) {
	m.totalsDegradedTotal.WithLabelValues(field).Inc()
}

// RecordTicketTotal records the latest ticket total read from the contract.
func (m *Metrics) RecordTicketTotal(total uint64) {
	m.lastObservedTicketsTotal.Set(float64(total))
}

// RecordMintBuild records a mint build attempt.
func (m *Metrics) RecordMintBuild(status string) {
	m.mintBuildsTotal.WithLabelValues(status).Inc()
}

// RecordSubmission records the outcome of a submission ("accepted", "rejected", "error").
func (m *Metrics) RecordSubmission(status string) {
	m.submissionsTotal.WithLabelValues(status).Inc()
}

// RecordSubmissionFinalStatus records a submission reaching a final status.
func (m *Metrics) RecordSubmissionFinalStatus(status string) {
	m.submissionFinalStatus.WithLabelValues(status).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	m.confirmationWorkflowDuration.WithLabelValues(status).Observe(duration)
}

// RecordConfirmationPoll records one transaction status poll.
func (m *Metrics) RecordConfirmationPoll(status string) {
	m.confirmationPollsTotal.WithLabelValues(status).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
