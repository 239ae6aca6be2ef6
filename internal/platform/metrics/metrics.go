package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes counters and gauges for the mortuary case flow.
type Metrics struct {
	CasesDeclared           prometheus.Counter
	CasesReleased           prometheus.Counter
	ReleaseBlocked          *prometheus.CounterVec
	TraysOccupied           prometheus.Gauge
	CorrectionTicketsOpened prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CasesDeclared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "morgue_cases_declared_total",
			Help: "Total number of mortuary cases declared",
		}),
		CasesReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "morgue_cases_released_total",
			Help: "Total number of bodies released",
		}),
		ReleaseBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "morgue_release_blocked_total",
			Help: "Release authorization attempts blocked, by reason",
		}, []string{"reason"}),
		TraysOccupied: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "morgue_trays_occupied",
			Help: "Current number of occupied storage trays",
		}),
		CorrectionTicketsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "morgue_correction_tickets_total",
			Help: "Correction tickets opened against clinical units",
		}),
	}
}
