// internal/dashboard/server.go
package dashboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "appmonitor/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID(), chimw.RealIP, mw.Tracing(), mw.Recover(a.log))
	r.Use(mw.CORS(a.cfg.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", a.register)
		api.Post("/auth/login", a.login)

		api.Group(func(pr chi.Router) {
			pr.Use(a.requireUser)
			pr.Post("/auth/logout", a.logout)
			pr.Get("/auth/me", a.me)

			pr.Get("/metrics", a.listMetrics)
			pr.Post("/metrics", a.createMetric)
			pr.Get("/events", a.listEvents)
			pr.Post("/events", a.createEvent)
			pr.Get("/preferences", a.getPreferences)
			pr.Put("/preferences", a.putPreferences)
			pr.Get("/providers", a.listProviders)

			pr.Route("/company", func(cr chi.Router) {
				cr.Post("/setup", a.createCompany)
				cr.Get("/", a.getCompany)
				cr.Put("/integration", a.putIntegration)
				cr.Get("/integration", a.getIntegration)
				cr.Post("/sync-entra", a.syncEntra)
				cr.Post("/test-connection", a.testConnection)
				cr.Get("/apps", a.listApps)
				cr.Get("/apps/activity", a.appActivity)
				cr.Get("/users", a.listUsers)
				cr.Post("/users", a.addUser)
			})
		})
	})

	return r
}
