package supervisor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var workerLastDataAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "radiotracking",
	Subsystem: "worker",
	Name:      "last_data_age_seconds",
	Help:      "Seconds since the worker last received a block from its SDR.",
}, []string{"device"})

var workerRestartsLeft = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "radiotracking",
	Subsystem: "worker",
	Name:      "restarts_left",
	Help:      "Remaining restart budget for the worker.",
}, []string{"device"})

// ServeMetrics registers the standard Prometheus handler plus a refresh
// of the per-worker gauges above, grounded on the teacher's
// prometheus.go promauto registration idiom.
func (s *Supervisor) ServeMetrics(mux *http.ServeMux) {
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.refreshMetrics()
		promhttp.Handler().ServeHTTP(w, r)
	}))
}

func (s *Supervisor) refreshMetrics() {
	status := s.Health()
	for _, wh := range status.Workers {
		var age float64
		if !wh.LastDataTime.IsZero() {
			age = time.Since(wh.LastDataTime).Seconds()
		}
		workerLastDataAge.WithLabelValues(wh.Device).Set(age)
		workerRestartsLeft.WithLabelValues(wh.Device).Set(float64(wh.RestartsLeft))
	}
}
