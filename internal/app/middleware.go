package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/toursync/toursync-admin/internal/observability"
	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger    *slog.Logger
	Config    *Config
	Sessions  *session.Manager
	Refresher *session.Refresher
	CSRF      *shared.CSRFManager
	Metrics   *observability.Metrics
}

// MiddlewareStack installs the TourSync middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	var public []string
	var throttle time.Duration
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		public = cfg.Config.Public()
		throttle = cfg.Config.SessionRefreshThrottle
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(60, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.RespondError(w, httpx.ErrTooManyRequests)
			}),
		),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	if cfg.Sessions != nil {
		middlewares = append(middlewares, AuthGate(GateConfig{
			Sessions:    cfg.Sessions,
			Refresher:   cfg.Refresher,
			PublicPaths: public,
			Throttle:    throttle,
			Logger:      cfg.Logger,
		}))
	}
	if cfg.CSRF != nil {
		middlewares = append(middlewares, CSRF(cfg.CSRF, cfg.Sessions, nil, cfg.Logger))
	}
	return middlewares
}
