package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestBridgeMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBridgeMetrics(reg)
	metrics.ObserveBlingRequest("create_invoice", 201, 250*time.Millisecond)
	metrics.ObserveBlingRequest("get_contact", 0, time.Second)
	metrics.RecordTokenRefresh("refreshed")
	metrics.RecordInvoice("created")
	metrics.RecordInvoice("created")
	metrics.RecordWebhook("invoice_authorized")
	metrics.RecordWebhook("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "blingbridge_invoice_total", "outcome", "created"); err != nil {
		t.Fatalf("fetch invoices: %v", err)
	} else if got != 2 {
		t.Fatalf("expected invoices=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "blingbridge_token_refresh_total", "outcome", "refreshed"); err != nil {
		t.Fatalf("fetch refreshes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected refreshes=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "blingbridge_webhook_events_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch webhooks: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown webhook=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "blingbridge_bling_request_duration_seconds", "status", "201"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if _, err := fetchHistogramSum(mfs, "blingbridge_bling_request_duration_seconds", "status", "transport_error"); err != nil {
		t.Fatalf("expected transport error series: %v", err)
	}
}

func TestNilBridgeMetricsIsSafe(t *testing.T) {
	var metrics *BridgeMetrics
	metrics.ObserveBlingRequest("x", 200, time.Millisecond)
	metrics.RecordInvoice("created")

	unregistered := NewBridgeMetrics(nil)
	unregistered.RecordWebhook("ignored")
	unregistered.RecordTokenRefresh("failed")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
