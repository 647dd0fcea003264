package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	// Constant 1, labelled with the running build.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ventas_build_info",
			Help: "Ventas API build information.",
		},
		[]string{"version", "commit", "identity_mode"},
	)
)

// InitBuildInfo registers ventas_build_info once and sets the current labels.
func InitBuildInfo(version, commit, identityMode string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, identityMode).Set(1)
}
