package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestSalesMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSalesMetrics(reg)

	m.ObserveBooking(OutcomeBooked, 40*time.Millisecond, 5)
	m.ObserveBooking(OutcomeBooked, 20*time.Millisecond, 2)
	m.ObserveBooking(OutcomeInsufficientStock, 10*time.Millisecond, 3)
	m.IncBookingRetry()
	m.IncAdjustment("manual", "applied")

	if got := testutil.ToFloat64(m.bookings.WithLabelValues(OutcomeBooked)); got != 2 {
		t.Fatalf("expected 2 booked, got %f", got)
	}
	if got := testutil.ToFloat64(m.unitsSold); got != 7 {
		t.Fatalf("rejected bookings must not count units, got %f", got)
	}
	if got := testutil.ToFloat64(m.bookingRetries); got != 1 {
		t.Fatalf("expected 1 retry, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramCount(mfs, "storepos_sale_booking_duration_seconds", "outcome", OutcomeBooked); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 booked observations, got %d", got)
	}
	if got, err := fetchCounterValue(mfs, "storepos_stock_adjustments_total", "type", "manual"); err != nil {
		t.Fatalf("fetch adjustments: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 adjustment, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	var nilSales *SalesMetrics
	nilSales.ObserveBooking(OutcomeBooked, time.Second, 1)
	nilSales.IncBookingRetry()

	NewSalesMetrics(nil).IncAdjustment("", "")
	NewOutboxMetrics(nil).IncDispatched("sale_booked", "published")
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncDispatched("sale_booked", "published")
	m.IncDispatched("", "failed")

	if got := testutil.ToFloat64(m.dispatched.WithLabelValues("sale_booked", "published")); got != 1 {
		t.Fatalf("expected 1 published, got %f", got)
	}
	if got := testutil.ToFloat64(m.dispatched.WithLabelValues("unknown", "failed")); got != 1 {
		t.Fatalf("expected empty event type to normalize to unknown, got %f", got)
	}
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

func fetchHistogramCount(mfs []*dto.MetricFamily, name, label, value string) (uint64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleCount(), nil
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

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("stock-drift")
	m.IncSuccess("stock-drift")
	m.IncFailure("")
	m.SetFindings("low-stock", 4)
	m.ObserveDuration("low-stock", 15*time.Millisecond)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("stock-drift", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", "failure")); got != 1 {
		t.Fatalf("expected unnamed failure under unknown, got %f", got)
	}
	if got := testutil.ToFloat64(m.findings.WithLabelValues("low-stock")); got != 4 {
		t.Fatalf("expected 4 findings, got %f", got)
	}

	var nilCron *CronJobMetrics
	nilCron.IncSuccess("x")
	nilCron.SetFindings("x", 1)
	NewCronJobMetrics(nil).ObserveDuration("x", time.Second)
}
