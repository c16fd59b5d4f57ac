package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Phase values exported by the phase gauge
var phaseValues = map[string]float64{
	"idle":            0,
	"tracking":        1,
	"empty_confirmed": 2,
	"countdown":       3,
	"exempt":          4,
}

// Metrics holds the Prometheus collectors for the room release lifecycle
type Metrics struct {
	CountdownsStarted *prometheus.CounterVec
	CountdownsAborted *prometheus.CounterVec
	Declines          *prometheus.CounterVec
	BookingsExempt    *prometheus.CounterVec
	Phase             *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CountdownsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomrelease",
			Name:      "countdowns_started_total",
			Help:      "Check-in countdowns started.",
		}, []string{"room"}),
		CountdownsAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomrelease",
			Name:      "countdowns_aborted_total",
			Help:      "Check-in countdowns aborted before a decline.",
		}, []string{"room", "reason"}),
		Declines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomrelease",
			Name:      "declines_total",
			Help:      "Booking decline attempts by result.",
		}, []string{"room", "result"}),
		BookingsExempt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomrelease",
			Name:      "bookings_exempt_total",
			Help:      "Bookings skipped because they are too long.",
		}, []string{"room"}),
		Phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "roomrelease",
			Name:      "phase",
			Help:      "Current controller phase (0 idle, 1 tracking, 2 empty_confirmed, 3 countdown, 4 exempt).",
		}, []string{"room"}),
	}

	reg.MustRegister(m.CountdownsStarted, m.CountdownsAborted, m.Declines, m.BookingsExempt, m.Phase)
	return m
}

// SetPhase records the current phase of a room
func (m *Metrics) SetPhase(room, phase string) {
	v, ok := phaseValues[phase]
	if !ok {
		return
	}
	m.Phase.WithLabelValues(room).Set(v)
}
