package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// SetupPrometheus builds the registry served on /metrics. The running
// version is exported as a constant 1 gauge labelled with it.
func SetupPrometheus(versionInfo string, extraCollectors ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "blogsite",
			Name:        "version_info",
			Help:        "Version of the running blogsite binary",
			ConstLabels: prometheus.Labels{"version": versionInfo},
		}, func() float64 { return 1 }),
	)
	promRegistry.MustRegister(extraCollectors...)

	return promRegistry
}
