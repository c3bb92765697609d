package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/handlers"
)

func init() { RegisterOperator(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	r.Get("/infra", handlers.Infra(d))
}
