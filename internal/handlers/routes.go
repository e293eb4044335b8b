package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes builds the façade router. allowedOrigins feeds the CORS policy so a
// front end on another port can drive the browser state.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.HandleState)
		r.Post("/load-more", h.HandleLoadMore)
		r.Post("/search", h.HandleSearch)
		r.Post("/similar/{id}", h.HandleSimilar)
		r.Post("/clear", h.HandleClear)
		r.Put("/filters", h.HandleFilters)
		r.Get("/details/{id}", h.HandleDetails)
		r.Get("/covers", h.HandleCover)
		r.Get("/export", h.HandleExport)
	})

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	r.NotFound(h.HandleStatic)

	return r
}
