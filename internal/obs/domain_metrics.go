package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentConfirmTotal counts confirmation outcomes (success, rejected, error, invalid).
	PaymentConfirmTotal *prometheus.CounterVec
	// PaymentConfirmLatency records upstream confirmation latency in milliseconds.
	PaymentConfirmLatency prometheus.Histogram
	// PaymentRequestTotal counts checkout payment requests by outcome.
	PaymentRequestTotal *prometheus.CounterVec
	// CatalogMutationsTotal counts catalog writes by operation and result.
	CatalogMutationsTotal *prometheus.CounterVec
	// PaymentAuditTotal counts confirmed payments recorded by the worker.
	PaymentAuditTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentConfirmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirm_total",
			Help:      "Count of payment confirmation outcomes.",
		}, []string{"result"})
		PaymentConfirmLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_confirm_duration_ms",
			Help:      "Latency of upstream payment confirmation in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})
		PaymentRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_request_total",
			Help:      "Count of checkout payment requests by outcome.",
		}, []string{"result"})
		CatalogMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_mutations_total",
			Help:      "Count of catalog writes by operation and result.",
		}, []string{"op", "result"})
		PaymentAuditTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_audit_total",
			Help:      "Number of confirmed payments recorded by the worker.",
		})

		PaymentConfirmTotal = registerOrReuse(reg, PaymentConfirmTotal)
		PaymentConfirmLatency = registerOrReuse(reg, PaymentConfirmLatency)
		PaymentRequestTotal = registerOrReuse(reg, PaymentRequestTotal)
		CatalogMutationsTotal = registerOrReuse(reg, CatalogMutationsTotal)
		PaymentAuditTotal = registerOrReuse(reg, PaymentAuditTotal)
	})
}

// CountCatalogMutation increments the catalog counter when domain metrics are registered.
func CountCatalogMutation(op string, err error) {
	if CatalogMutationsTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	CatalogMutationsTotal.WithLabelValues(op, result).Inc()
}
