package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(corsOrigins))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(m.RateLimit(rateLimitRPM))

		r.Route("/automation", func(r chi.Router) {
			// Live updates stay outside the request timeout
			r.Get("/stream", h.HandleSSE)
			r.Get("/ws", h.HandleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(m.Timeout(15 * time.Second))
				r.Use(middleware.Compress(5, "application/json"))

				r.Post("/scheduler/start", h.StartScheduler)
				r.Post("/scheduler/stop", h.StopScheduler)
				r.Post("/poster/start", h.StartPoster)
				r.Post("/poster/stop", h.StopPoster)
				r.Post("/poster/check", h.ForceCheck)

				r.Post("/special-dates", h.AddSpecialDates)
				r.Get("/special-dates", h.UpcomingSpecialDates)

				r.Get("/status", h.GetStatus)
				r.Get("/activity", h.GetActivity)
			})
		})

		r.With(m.Timeout(15*time.Second)).Get("/users/{userID}/calendar.ics", h.ExportCalendar)
	})

	return r
}
