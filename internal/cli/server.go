package cli

import (
	"net/http"

	api "github.com/gnueaj/SAE-vis-sub000/pkg/adapters/http"
	"github.com/go-chi/chi/v5"
)

// Handler serves the engine's HTTP API with Prometheus metrics on /metrics.
func (rt *Runtime) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", rt.Metrics.Handler())
	r.Mount("/", api.NewHandler(rt.Engine, api.WithLogger(rt.Logger)))
	return r
}
