package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Booking outcomes used as the "outcome" label.
const (
	OutcomeBooked            = "booked"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// SalesMetrics records sale booking and stock adjustment activity.
type SalesMetrics struct {
	bookings        *prometheus.CounterVec
	bookingDuration *prometheus.HistogramVec
	bookingRetries  prometheus.Counter
	unitsSold       prometheus.Counter
	adjustments     *prometheus.CounterVec
}

// NewSalesMetrics registers the sales metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	m := &SalesMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storepos_sale_bookings_total",
			Help: "Sale booking attempts by outcome.",
		}, []string{"outcome"}),
		bookingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storepos_sale_booking_duration_seconds",
			Help:    "Wall time of sale booking calls, retries included.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		bookingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storepos_sale_booking_retries_total",
			Help: "Booking transactions retried after losing a race.",
		}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storepos_units_sold_total",
			Help: "Units decremented from stock by booked sales.",
		}),
		adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storepos_stock_adjustments_total",
			Help: "Manual stock adjustments by transaction type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.bookings, m.bookingDuration, m.bookingRetries, m.unitsSold, m.adjustments)
	return m
}

// ObserveBooking records one completed BookSale call.
func (m *SalesMetrics) ObserveBooking(outcome string, duration time.Duration, units int) {
	if m == nil || m.bookings == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.bookings.WithLabelValues(outcome).Inc()
	m.bookingDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == OutcomeBooked && units > 0 {
		m.unitsSold.Add(float64(units))
	}
}

// IncBookingRetry counts one retried booking transaction.
func (m *SalesMetrics) IncBookingRetry() {
	if m == nil || m.bookingRetries == nil {
		return
	}
	m.bookingRetries.Inc()
}

// IncAdjustment counts a stock adjustment by type and result.
func (m *SalesMetrics) IncAdjustment(txType, result string) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(normalizeLabel(txType), normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
