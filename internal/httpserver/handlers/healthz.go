package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Board         string  `json:"board,omitempty"`
	Actuators     int     `json:"actuators"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz reports liveness. Once the actuator bank has stopped the process
// can no longer serve toggles, so it answers 503.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Board:         d.Board,
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: time.Since(start).Seconds(),
		}

		status := http.StatusOK
		if levels, err := d.Bank.Snapshot(); err != nil {
			resp.Status = "stopped"
			status = http.StatusServiceUnavailable
		} else {
			resp.Actuators = len(levels)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
