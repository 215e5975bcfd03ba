package supervisor

import (
	"encoding/json"
	"net/http"
	"time"
)

// WorkerHealth mirrors the teacher's DecoderBandHealth read model,
// adapted from decoder bands to per-device workers.
type WorkerHealth struct {
	Device       string    `json:"device"`
	Running      bool      `json:"running"`
	LastDataTime time.Time `json:"last_data_time"`
	State        string    `json:"state"`
	RestartsLeft int       `json:"restarts_left"`
}

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Healthy bool           `json:"healthy"`
	Workers []WorkerHealth `json:"workers"`
	QueueLen int           `json:"queue_len"`
}

// Health returns a point-in-time snapshot of every worker's health.
func (s *Supervisor) Health() HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := HealthStatus{Healthy: true, QueueLen: s.queue.Len()}
	for _, mw := range s.workers {
		wh := WorkerHealth{
			Device:       mw.device.String(),
			Running:      mw.running,
			RestartsLeft: mw.restartLeft,
		}
		if mw.health != nil {
			wh.LastDataTime = mw.health.LastDataTSValue()
			wh.State = mw.health.StateValue().String()
		}
		if !mw.running && mw.restartLeft <= 0 {
			status.Healthy = false
		}
		status.Workers = append(status.Workers, wh)
	}
	return status
}

// HandleHealthz serves the /healthz JSON endpoint, grounded on the
// teacher's decoder_health.go DecoderHealthStatus shape.
func (s *Supervisor) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.Health()
	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
