package httpapi

import (
	"net/http"

	"github.com/PabloPavan/userdesk/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type App struct {
	ServiceName string
	Health      *HealthHandler
	Users       *UsersHandler
	View        *ViewHandler
	Storage     *StorageHandler
	// Session attaches the operator session; required by /v1/view,
	// /v1/selection and /v1/storage.
	Session func(http.Handler) http.Handler
	Metrics http.Handler
}

func NewRouter(app *App) http.Handler {
	name := app.ServiceName
	if name == "" {
		name = "userdesk-api"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.ChiTraceMiddleware(name))
	r.Use(telemetry.ChiMetricsMiddleware)
	r.Use(telemetry.ChiLogMiddleware(name))

	r.Get("/health", app.Health.Get)
	if app.Metrics != nil {
		r.Handle("/metrics", app.Metrics)
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", app.Users.List)
			r.Post("/", app.Users.Create)
			if app.Session != nil {
				r.With(app.Session).Delete("/", app.Users.DeleteAll)
			} else {
				r.Delete("/", app.Users.DeleteAll)
			}
			r.Get("/form", app.Users.Form)
			r.Post("/validate", app.Users.Validate)
			r.Post("/bulk-delete", app.Users.BulkDelete)
			r.Post("/reload", app.Users.Reload)
			r.Get("/{id}", app.Users.Get)
			r.Put("/{id}", app.Users.Update)
			r.Delete("/{id}", app.Users.Delete)
		})

		// Operator-scoped
		r.Group(func(r chi.Router) {
			if app.Session != nil {
				r.Use(app.Session)
			}

			r.Route("/view", func(r chi.Router) {
				r.Get("/", app.View.Get)
				r.Patch("/", app.View.Patch)
				r.Post("/sort/{field}", app.View.ToggleSort)
				r.Post("/reset", app.View.Reset)
			})

			r.Route("/selection", func(r chi.Router) {
				r.Get("/", app.View.GetSelection)
				r.Post("/all", app.View.SelectAll)
				r.Post("/delete", app.View.DeleteSelection)
				r.Put("/{id}", app.View.ToggleSelection)
			})

			r.Post("/storage/reset", app.Storage.Reset)
		})
	})
	return r
}
