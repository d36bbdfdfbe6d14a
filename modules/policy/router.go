package policy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the module's HTTP surface. The /internal subtree is meant
// to be reachable only from inside the deployment perimeter; the gateway
// must not route external traffic to it.
func (m *Module) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", m.handleHealth)
	r.Get("/usage", m.handleUsage)
	r.Post("/admit", m.handleAdmit)

	r.Route("/trial", func(r chi.Router) {
		r.Post("/grant", m.handleGrant)
		r.Post("/force-grant", m.handleForceGrant)
		r.Get("/history/{userID}", m.handleHistory)
		r.Get("/eligibility/{userID}", m.handleEligibility)
		r.Post("/{entryID}/convert", m.handleConvert)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Post("/sweep", m.handleSweep)
	})

	return r
}
