package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg      Registrar
	mws      []Middleware
	operator bool
}

var registry []entry

// Register a registrar with optional per-route middlewares.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterOperator registers an operator endpoint (health, readiness, infra).
// These sit behind the CIDR allow-list, which needs deps and so is only built
// in RegisterAll.
func RegisterOperator(reg Registrar) {
	registry = append(registry, entry{reg: reg, operator: true})
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps) {
	operators := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))

	for _, e := range registry {
		switch {
		case e.operator:
			e.reg(operators, d)
		case len(e.mws) == 0:
			e.reg(r, d)
		default:
			e.reg(r.With(e.mws...), d) // apply per-route middlewares
		}
	}
}
