package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registeredMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainreg",
		Subsystem: "registry",
		Name:      "services_registered_total",
		Help:      "Number of services registered",
	})

	commitsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainreg",
		Subsystem: "registry",
		Name:      "commits_total",
		Help:      "Number of accepted audit chain commits",
	})

	commitFailuresMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainreg",
		Subsystem: "registry",
		Name:      "commit_failures_total",
		Help:      "Number of rejected audit chain commits",
	})

	heatMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chainreg",
		Subsystem: "registry",
		Name:      "service_heat",
		Help:      "Size of the most recently accepted batch per service",
	}, []string{"service"})
)
