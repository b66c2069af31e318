package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sessions  *session.Manager
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *session.Manager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		sessions:  sessions,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signin", h.signin)
	r.Post("/logout", h.logout)
	r.Get("/current-user", h.currentUser)
	r.Get("/refresh-session", h.refreshSession)
	r.Get("/csrf", h.csrfToken)
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msgInvalidInput)
		return
	}
	creds.Normalize()
	if err := h.validator.Struct(creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msgInvalidInput)
		return
	}

	user, err := h.service.Authenticate(r.Context(), creds)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", msgInvalidCredentials)
		return
	case errors.Is(err, shared.ErrInactiveAccount):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", msgInactive)
		return
	case errors.Is(err, httpx.ErrTooManyRequests):
		httpx.RespondError(w, err)
		return
	default:
		h.logger.Error("sign-in failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	payload := session.Payload{ID: user.ID, Role: user.Role}
	if user.PasswordExpiry != nil {
		payload.PasswordExpiry = session.Expiry{Time: *user.PasswordExpiry}
	}
	if err := h.sessions.Create(r.Context(), session.NewHTTPCookies(w, r), payload); err != nil {
		if errors.Is(err, session.ErrInvalidPayload) {
			h.logger.Warn("account cannot hold a session", slog.Int64("user_id", user.ID), slog.Any("error", err))
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msgInvalidInput)
			return
		}
		h.logger.Error("create session", slog.Int64("user_id", user.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("user signed in", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "user": user.Safe()})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), session.NewHTTPCookies(w, r)); err != nil {
		h.logger.Warn("destroy session", slog.Any("error", err))
	}
	target := localPath(r.URL.Query().Get("callbackUrl"), "/signin")
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "redirectTo": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.User(r.Context(), session.RequestCookies{R: r})
	if err != nil {
		h.logger.Warn("resolve session", slog.Any("error", err))
	}
	if user == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", msgNotAuthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) refreshSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Refresh(r.Context(), session.NewHTTPCookies(w, r)); err != nil {
		h.logger.Warn("refresh session", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessions.ID(session.RequestCookies{R: r})
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", msgNotAuthenticated)
		return
	}
	token, err := h.csrf.Token(id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"token": token})
}

// localPath keeps redirects on this host.
func localPath(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	return raw
}
