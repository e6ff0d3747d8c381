package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blingbridge"

// BridgeMetrics records Bling traffic and invoice lifecycle outcomes.
type BridgeMetrics struct {
	requests  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
	invoices  *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
}

// NewBridgeMetrics registers the collectors on the provided registerer.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	if reg == nil {
		return &BridgeMetrics{}
	}
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bling_request_duration_seconds",
		Help:      "Duration of Bling API requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "OAuth token refresh attempts by outcome.",
	}, []string{"outcome"})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_total",
		Help:      "Invoice creation attempts by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Bling webhook deliveries by trigger or outcome.",
	}, []string{"outcome"})
	reg.MustRegister(requests, refreshes, invoices, webhooks)
	return &BridgeMetrics{
		requests:  requests,
		refreshes: refreshes,
		invoices:  invoices,
		webhooks:  webhooks,
	}
}

// ObserveBlingRequest records one gateway call. Status 0 means a transport failure.
func (m *BridgeMetrics) ObserveBlingRequest(operation string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(operation), statusLabel(status)).Observe(elapsed.Seconds())
}

func (m *BridgeMetrics) RecordTokenRefresh(outcome string) {
	if m == nil || m.refreshes == nil {
		return
	}
	m.refreshes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *BridgeMetrics) RecordInvoice(outcome string) {
	if m == nil || m.invoices == nil {
		return
	}
	m.invoices.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *BridgeMetrics) RecordWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func statusLabel(status int) string {
	if status <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
