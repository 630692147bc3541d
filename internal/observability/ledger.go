package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks payment outcomes and the delinquent book. It satisfies
// the receivables metrics recorder.
type LedgerMetrics struct {
	payments          *prometheus.CounterVec
	paymentAmount     *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	overdueAmount     *prometheus.GaugeVec
	delinquentClients prometheus.Gauge
}

// NewLedgerMetrics registers the ledger collectors.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_applied_total",
		Help:      "Payments applied to receivable accounts by method.",
	}, []string{"method"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_amount_total",
		Help:      "Sum of applied payment amounts in minor units by method.",
	}, []string{"method"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_rejections_total",
		Help:      "Rejected payment submissions by reason.",
	}, []string{"reason"})
	overdue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "overdue_amount",
		Help:      "Outstanding overdue balance in minor units per risk tier at the last scan.",
	}, []string{"tier"})
	delinquent := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "delinquent_clients",
		Help:      "Clients with at least one overdue account at the last scan.",
	})
	registerer.MustRegister(payments, amount, rejections, overdue, delinquent)
	return &LedgerMetrics{
		payments:          payments,
		paymentAmount:     amount,
		rejections:        rejections,
		overdueAmount:     overdue,
		delinquentClients: delinquent,
	}
}

func (m *LedgerMetrics) ObservePayment(method string, amount float64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(method).Inc()
	m.paymentAmount.WithLabelValues(method).Add(amount)
}

func (m *LedgerMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// SetOverdue records the overdue balance of one tier.
func (m *LedgerMetrics) SetOverdue(tier string, amount float64) {
	if m == nil {
		return
	}
	m.overdueAmount.WithLabelValues(tier).Set(amount)
}

func (m *LedgerMetrics) SetDelinquentClients(n int) {
	if m == nil {
		return
	}
	m.delinquentClients.Set(float64(n))
}
