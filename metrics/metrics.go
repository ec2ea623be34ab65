package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and business collectors of the service.
type Metrics struct {
	service  string
	gatherer prometheus.Gatherer

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	QuotationsConfirmed prometheus.Counter
	QuotationsCancelled prometheus.Counter
	SalesAmount         prometheus.Counter
	OperationFailures   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. Tests pass a fresh
// prometheus.NewRegistry().
func New(service string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		service:  service,
		gatherer: reg,
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		QuotationsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotations_confirmed_total",
			Help: "Quotations converted into sales",
		}),
		QuotationsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotations_cancelled_total",
			Help: "Quotations cancelled",
		}),
		SalesAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sales_total_amount",
			Help: "Sum of the totals of sales created from quotations",
		}),
		OperationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotation_operation_failures_total",
				Help: "Failed quotation operations by operation and reason",
			},
			[]string{"operation", "reason"},
		),
	}
	reg.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.QuotationsConfirmed,
		m.QuotationsCancelled,
		m.SalesAmount,
		m.OperationFailures,
	)
	return m
}

func (m *Metrics) QuotationConfirmed(total float64) {
	m.QuotationsConfirmed.Inc()
	if total > 0 {
		m.SalesAmount.Add(total)
	}
}

func (m *Metrics) QuotationCancelled() {
	m.QuotationsCancelled.Inc()
}

func (m *Metrics) OperationFailed(operation, reason string) {
	m.OperationFailures.WithLabelValues(operation, reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Service() string {
	return m.service
}
