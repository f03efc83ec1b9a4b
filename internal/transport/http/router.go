// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and keep transport concerns out of the engine.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veripass/pkg/platform/middleware/auth"
	"veripass/pkg/platform/middleware/requestid"
	"veripass/pkg/platform/middleware/requesttime"
)

// RouterConfig carries the handlers and cross-cutting dependencies the
// router wires together.
type RouterConfig struct {
	Validation *ValidationHandler
	Status     *StatusHandler
	Admin      *AdminHandler

	TokenValidator auth.TokenValidator
	Logger         *slog.Logger
}

// NewRouter wires all public endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Validation != nil {
			r.Post("/certificates/validate", cfg.Validation.handleValidate)
			r.Get("/rules/availability", cfg.Validation.handleRuleAvailability)
		}
		if cfg.Status != nil {
			r.Post("/holders/status", cfg.Status.handleDeriveStatus)
			r.Post("/holders/booster/ack", cfg.Status.handleAcknowledgeBooster)
		}
		if cfg.Admin != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(cfg.TokenValidator, cfg.Logger))
				r.Post("/admin/rules", cfg.Admin.handleReplaceRules)
				r.Post("/admin/valuesets", cfg.Admin.handleReplaceValueSets)
				r.Post("/admin/revocations", cfg.Admin.handleReplaceRevocations)
			})
		}
	})

	return r
}
