package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

// mirrorEntry is what the journal recorded for one actuator.
type mirrorEntry struct {
	Name    string `json:"name"`
	Toggles int64  `json:"toggles"`
	Last    string `json:"last,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Actuators  []actuator.Level           `json:"actuators"`
	Journal    *journal.Stats             `json:"journal,omitempty"`
	Mirror     []mirrorEntry              `json:"mirror,omitempty"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		levels, err := d.Bank.Snapshot()
		actuators := componentStatus{OK: err == nil, Mode: "serving"}
		if err != nil {
			actuators.Mode = "stopped"
			actuators.Error = err.Error()
		}

		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		journalStatus := checkJournal(ctx, d)
		response := infraResponse{
			Actuators: levels,
			Components: map[string]componentStatus{
				"actuators": actuators,
				"journal":   journalStatus,
			},
		}
		if journalStatus.OK && d.Store != nil {
			response.Mirror = readMirror(ctx, d, levels)
		}
		if d.Journal != nil {
			stats := d.Journal.Stats()
			response.Journal = &stats
		}
		response.Mode = determineMode(response.Components)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineMode(components map[string]componentStatus) string {
	if c, ok := components["actuators"]; ok && !c.OK {
		return "critical"
	}
	if c, ok := components["journal"]; ok && !c.OK {
		return "degraded"
	}
	return "nominal"
}

func checkJournal(ctx context.Context, d deps.Deps) componentStatus {
	if d.Journal == nil || d.Store == nil {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "toggle-events-not-mirrored",
		}
	}

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "toggle-events-failing",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:   true,
		Mode: "redis",
	}
}

// readMirror reports what the journal recorded. Entries that cannot be read
// are skipped; the mirror is informational only.
func readMirror(ctx context.Context, d deps.Deps, levels []actuator.Level) []mirrorEntry {
	entries := make([]mirrorEntry, 0, len(levels))
	for _, lvl := range levels {
		n, err := d.Store.ToggleCount(ctx, lvl.Name)
		if err != nil {
			d.Logger.Debug("mirror read failed", logger.String("name", lvl.Name), logger.Error(err))
			continue
		}
		last, err := d.Store.LastLevel(ctx, lvl.Name)
		if err != nil {
			d.Logger.Debug("mirror read failed", logger.String("name", lvl.Name), logger.Error(err))
			continue
		}
		entries = append(entries, mirrorEntry{Name: lvl.Name, Toggles: n, Last: last})
	}
	return entries
}
