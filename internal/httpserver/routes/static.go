package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ledctl/internal/httpserver/assets"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/handlers"
)

func init() { Register(registerStatic) }

func registerStatic(r chi.Router, _ deps.Deps) {
	r.Get("/", handlers.Static(assets.IndexHTML, "text/html; charset=utf-8"))
	r.Get("/index.css", handlers.Static(assets.IndexCSS, "text/css; charset=utf-8"))
	r.Get("/index.js", handlers.Static(assets.IndexJS, "application/javascript; charset=utf-8"))
}
