package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/mw"
)

func init() { Register(registerLED, mw.Uint8Param("id")) }

func registerLED(r chi.Router, d deps.Deps) {
	r.Get("/toggle_led/{id}", handlers.ToggleLED(d))
	r.Get("/led/{id}", handlers.LEDState(d))
}
