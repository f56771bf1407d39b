package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memberpass/internal/pass/handler"
	"memberpass/internal/principaltoken"
	adminmw "memberpass/pkg/platform/middleware/admin"
	"memberpass/pkg/platform/middleware/auth"
	"memberpass/pkg/platform/middleware/metadata"
	"memberpass/pkg/platform/middleware/ratelimit"
	request "memberpass/pkg/platform/middleware/request"
	"memberpass/pkg/platform/middleware/requesttime"
)

func newRouter(a *App) http.Handler {
	cfg := a.Config
	logger := a.Logger

	trusted, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring invalid TRUSTED_PROXIES", "error", err)
		trusted = nil
	}
	verifier := principaltoken.NewVerifier(cfg.Auth.TokenAudience, cfg.Auth.TokenMaxTTL)
	limiter := ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
	passes := handler.New(a.Service, logger)

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(request.NewMetrics(a.Registry)))
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(trusted).Handler)

	a.Health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.Server.RequestTimeout))
		r.Use(request.BodyLimit(cfg.Server.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			passes.RegisterPublic(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePrincipal(verifier, logger))
			r.Use(limiter.Middleware)
			passes.RegisterMember(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.Auth.AdminAPIToken, logger))
			r.Use(auth.RequirePrincipal(verifier, logger))
			passes.RegisterAdmin(r)
		})
	})

	return r
}
