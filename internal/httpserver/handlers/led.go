package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/mw"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

// ToggleLED flips the actuator addressed by the {id} segment and answers
// with the level it ended up at. Must be mounted behind mw.Uint8Param("id").
func ToggleLED(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := mw.Uint8(r, "id")
		if !ok {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}

		on, err := d.Bank.Toggle(id)
		if err != nil {
			d.Logger.Error("toggle failed", logger.Uint8("id", id), logger.Error(err))
			http.Error(w, "actuator unavailable", http.StatusServiceUnavailable)
			return
		}

		name := d.Bank.Name(id)
		d.Logger.Info("toggled led",
			logger.Uint8("id", id),
			logger.String("name", name),
			logger.Bool("on", on))

		d.Journal.Record(journal.Event{
			ID:     id,
			Name:   name,
			On:     on,
			At:     time.Now(),
			Remote: r.RemoteAddr,
		})

		writeLevel(w, on)
	}
}

// LEDState reports the current level of the actuator without changing it.
func LEDState(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := mw.Uint8(r, "id")
		if !ok {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}

		on, err := d.Bank.State(id)
		if err != nil {
			d.Logger.Error("state read failed", logger.Uint8("id", id), logger.Error(err))
			http.Error(w, "actuator unavailable", http.StatusServiceUnavailable)
			return
		}

		writeLevel(w, on)
	}
}

func writeLevel(w http.ResponseWriter, on bool) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(actuator.Text(on)))
}
