package metrics

import "github.com/prometheus/client_golang/prometheus"

// StaleReservationMetrics exposes the last stale reservation scan.
type StaleReservationMetrics struct {
	orders prometheus.Gauge
	units  prometheus.Gauge
}

func NewStaleReservationMetrics(reg prometheus.Registerer) *StaleReservationMetrics {
	if reg == nil {
		return &StaleReservationMetrics{}
	}
	orders := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stale_reservation_orders",
		Help: "Pending unassigned orders older than the stale threshold.",
	})
	units := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stale_reservation_units",
		Help: "Stock units held by stale pending orders.",
	})
	reg.MustRegister(orders, units)
	return &StaleReservationMetrics{orders: orders, units: units}
}

func (m *StaleReservationMetrics) Set(orders, units int64) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.Set(float64(orders))
	m.units.Set(float64(units))
}
