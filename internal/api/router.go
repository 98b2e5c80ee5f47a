package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/closlabs/flowgate/internal/config"
	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/report"
	"github.com/closlabs/flowgate/internal/store"
	"github.com/closlabs/flowgate/internal/wip"
)

func NewRouter(s store.Store, bus events.Client, engine *wip.Engine, aggregator *report.Aggregator, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(300))

	webhook := NewWebhookHandler(bus, cfg.Webhook.GitHubSecret, logger)
	transitions := NewTransitionsHandler(bus)
	pods := NewPodsHandler(engine)
	reports := NewReportsHandler(aggregator)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if s != nil {
			if err := s.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/github", webhook.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/transitions", transitions.Request)
		r.Get("/pods/{pod}/wip", pods.Wip)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Post("/reports/daily", reports.Daily)
			r.Post("/reports/weekly", reports.Weekly)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
