package rest

import (
	"net/http"
	"strings"

	"github.com/Abdurahmanit/property-service/internal/middleware"
	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterConfig holds the knobs the router needs from configuration.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	JWTSecret      string
	MetricsPath    string
}

// NewRouter mounts the property routes under cfg.APIPrefix plus /health.
// Metrics are served and recorded only when m is non-nil. With a JWT
// secret set, writes require a bearer token.
func NewRouter(h *Handler, cfg RouterConfig, m *metrics.MetricsManager, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recoverer(log))
	if m != nil {
		r.Use(middleware.Metrics(m))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.Health)
	if m != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, m.Handler())
	}

	prefix := strings.TrimRight(cfg.APIPrefix, "/")
	if prefix == "" {
		h.mount(r, cfg.JWTSecret, log)
	} else {
		r.Route(prefix, func(r chi.Router) {
			h.mount(r, cfg.JWTSecret, log)
		})
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(r)
}

func (h *Handler) mount(r chi.Router, jwtSecret string, log *logger.Logger) {
	r.Get("/properties", h.ListProperties)
	r.Get("/properties/{id}", h.GetProperty)

	r.Group(func(r chi.Router) {
		if jwtSecret != "" {
			r.Use(middleware.JWTAuth(jwtSecret, log))
		}
		r.Post("/properties", h.CreateProperty)
		r.Put("/properties/{id}", h.UpdateProperty)
		r.Delete("/properties/{id}", h.DeleteProperty)
	})
}
