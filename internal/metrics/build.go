package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "build_info",
	Help:      "Always 1, labelled with the running build",
}, []string{"version", "commit", "go_version", "backend"})

// SetBuildInfo publishes the build labels.
func SetBuildInfo(version, commit, goVersion, backend string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, goVersion, backend).Set(1)
}
