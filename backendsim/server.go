/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. RequestID:  honours X-Request-ID from the dashboard client
  2. RealIP
  3. requestLog: one slog line per request
  4. Recoverer:  panic recovery (500 instead of crash)
  5. CORS:       the browser dashboard calls the simulator cross-origin

ROUTE GROUPS:
  /api/academic-periods/*   period lookups
  /api/events/*             event funds
  /api/fees/*               fees, payments, rosters
  /api/admin/*              fixtures and reset
  /healthz                  liveness

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/backendsim/main.go: server startup
*/
package backendsim

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/academic-periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Get("/active", h.ActivePeriod)
		})

		r.Get("/events/{id}/funds", h.EventFunds)

		r.Route("/fees/{id}", func(r chi.Router) {
			r.Get("/", h.GetFee)
			r.Get("/payments", h.ListPayments)
			r.Get("/roster", h.ListRoster)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/fixtures", h.LoadFixturesHandler)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLog logs method, path, status and duration with slog.
func requestLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
