package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts stock ledger operations by outcome.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_ledger_operations_total",
		Help: "Stock ledger operations partitioned by op and outcome.",
	}, []string{"op", "outcome"})
	reg.MustRegister(operations)
	return &LedgerMetrics{operations: operations}
}

// Observe records one ledger call. outcome is usually "ok" or an error code.
func (l *LedgerMetrics) Observe(op, outcome string) {
	if l == nil || l.operations == nil {
		return
	}
	l.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}
