package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// InjectionsTotal counts frames handed to the transmit path
	InjectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gunwifi",
			Name:      "injection_total",
			Help:      "Total number of frames injected",
		},
		[]string{"interface", "type"},
	)

	// InjectionErrors counts frames the transmit path rejected
	InjectionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gunwifi",
			Name:      "injection_errors_total",
			Help:      "Total number of failed frame injections",
		},
		[]string{"interface", "type"},
	)

	// ModeSwitches counts monitor mode transitions by target mode and outcome
	ModeSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gunwifi",
			Name:      "mode_switch_total",
			Help:      "Total number of interface mode switch attempts",
		},
		[]string{"interface", "mode", "result"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(InjectionsTotal)
		prometheus.DefaultRegisterer.Register(InjectionErrors)
		prometheus.DefaultRegisterer.Register(ModeSwitches)
	})
}
