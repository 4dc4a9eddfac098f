// Package api is the HTTP request layer: it authenticates the caller,
// validates request bodies into typed commands and maps errors to responses.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Spok95/e-weave/internal/domain/catalog"
	"github.com/Spok95/e-weave/internal/domain/ledger"
)

// HTTPMetrics records one observation per request.
type HTTPMetrics interface {
	ObserveHTTP(method, route, status string, d time.Duration)
}

type API struct {
	log     *slog.Logger
	ledger  *ledger.Ledger
	catalog *catalog.Service
	auth    *Authenticator
	metrics HTTPMetrics
}

// New builds the API. metrics may be nil.
func New(log *slog.Logger, l *ledger.Ledger, c *catalog.Service, auth *Authenticator, metrics HTTPMetrics) *API {
	return &API{
		log:     log.With("component", "api"),
		ledger:  l,
		catalog: c,
		auth:    auth,
		metrics: metrics,
	}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, a.observe)

	r.Group(func(r chi.Router) {
		r.Use(a.auth.Middleware)

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", a.listMaterials)
			r.Post("/", a.createMaterial)
			r.Get("/export.xlsx", a.exportRecountSheet)
			r.Post("/import", a.importRecount)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getMaterial)
				r.Get("/history", a.listHistory)
				r.Post("/history", a.recordHistory)
				r.Get("/history.xlsx", a.exportHistory)
			})
		})

		r.Route("/tasks/{id}/materials", func(r chi.Router) {
			r.Get("/", a.listTaskMaterials)
			r.Post("/", a.consumeTaskMaterial)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", a.createProject)
			r.Post("/{id}/tasks", a.createTask)
			r.Post("/{id}/materials", a.assignMaterial)
		})

		r.Get("/categories", a.listCategories)
		r.Post("/categories", a.createCategory)
		r.Post("/team-members", a.registerMember)
	})
	return r
}

// observe logs each request and feeds the HTTP metrics.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		if a.metrics != nil {
			a.metrics.ObserveHTTP(r.Method, route, strconv.Itoa(status), elapsed)
		}
		a.log.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
