package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine and its
// transports.
type BookingMetrics struct {
	operationsTotal *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	eventsRelayed   *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking engine operations by outcome",
		}, []string{"operation", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careslot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		eventsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "outbox",
			Name:      "events_relayed_total",
			Help:      "Outbox events handed to the broker",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.requestLatency, m.eventsRelayed)
	return m
}

func (m *BookingMetrics) ObserveOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(route, status).Observe(seconds)
}

func (m *BookingMetrics) ObserveRelayed(eventType, status string) {
	if m == nil {
		return
	}
	m.eventsRelayed.WithLabelValues(eventType, status).Inc()
}
