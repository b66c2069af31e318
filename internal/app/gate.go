package app

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
)

// ThrottleCookie records when the gate last refreshed the session.
const ThrottleCookie = "session_last_refresh"

// DefaultPublicPaths are the prefixes served without a session.
func DefaultPublicPaths() []string {
	return []string{
		"/signin",
		"/signup",
		"/change-password",
		"/api/auth",
		"/static",
		"/favicon.ico",
		"/healthz",
		"/metrics",
	}
}

// GateConfig wires the authentication gate.
type GateConfig struct {
	Sessions    *session.Manager
	Refresher   *session.Refresher
	PublicPaths []string
	Throttle    time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// AuthGate admits public paths, rejects requests without a live session and
// keeps live sessions warm. A rejected API request gets 401; any other path is
// redirected to the sign-in page with the requested path as callback.
func AuthGate(cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = DefaultPublicPaths()
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, cfg.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			cookies := session.NewHTTPCookies(w, r)
			user, err := cfg.Sessions.User(r.Context(), cookies)
			if err != nil {
				cfg.Logger.Error("resolve session", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			if user == nil {
				reject(w, r)
				return
			}
			id, _ := cfg.Sessions.ID(cookies)

			if shouldRefresh(r, cfg.Now(), cfg.Throttle) {
				cookies.Set(ThrottleCookie, cfg.Now().UTC().Format(time.RFC3339), session.CookieOptions{
					Path:     "/",
					MaxAge:   cfg.Throttle,
					HTTPOnly: true,
					Secure:   cfg.Sessions.Secure(),
					SameSite: session.SameSiteLax,
				})
				cfg.Sessions.IssueCookie(cookies, id)
				if cfg.Refresher != nil {
					cfg.Refresher.Spawn(id)
				}
			}

			next.ServeHTTP(w, r.WithContext(session.ContextWithUser(r.Context(), id, user)))
		})
	}
}

func isPublic(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isAPI(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func reject(w http.ResponseWriter, r *http.Request) {
	if isAPI(r.URL.Path) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Session Expired!")
		return
	}
	http.Redirect(w, r, "/signin?callbackUrl="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
}

func shouldRefresh(r *http.Request, now time.Time, throttle time.Duration) bool {
	c, err := r.Cookie(ThrottleCookie)
	if err != nil {
		return true
	}
	last, err := time.Parse(time.RFC3339, c.Value)
	if err != nil {
		return true
	}
	return now.Sub(last) > throttle
}

// DefaultCSRFExempt are the prefixes that accept state changing requests
// without a token.
func DefaultCSRFExempt() []string {
	return []string{"/api/auth/signin"}
}

// CSRF rejects state changing requests from live sessions that do not carry
// the session bound token. The gate does not resolve sessions on public
// paths, so there the session is looked up here. Anonymous requests pass.
func CSRF(manager *shared.CSRFManager, sessions *session.Manager, exempt []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if exempt == nil {
		exempt = DefaultCSRFExempt()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if isPublic(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}
			id := session.IDFromContext(r.Context())
			if id == "" && sessions != nil {
				id = liveSessionID(r, sessions, logger)
			}
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := manager.VerifyToken(id, r.Header.Get(shared.CSRFHeader)); err != nil {
				logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "Invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func liveSessionID(r *http.Request, sessions *session.Manager, logger *slog.Logger) string {
	cookies := session.RequestCookies{R: r}
	user, err := sessions.User(r.Context(), cookies)
	if err != nil {
		logger.Warn("resolve session for csrf", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if user == nil {
		return ""
	}
	id, _ := sessions.ID(cookies)
	return id
}
