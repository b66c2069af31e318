package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/toursync/toursync-admin/internal/changelog"
	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/rbac"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(Table, rbac.Read)).Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/me", h.me)
	r.Get("/{publicID}", h.get)
	r.Put("/{publicID}", h.update)
	r.Get("/{publicID}/events", h.events)
}

type listResponse struct {
	Data       any               `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Page:     atoi(q.Get("page")),
		Limit:    atoi(q.Get("limit")),
		BranchID: int64(atoi(q.Get("branch_id"))),
		Role:     shared.Role(q.Get("role")),
		Status:   shared.UserStatus(q.Get("status")),
		Search:   q.Get("search"),
	}
	users, page, err := h.service.List(r.Context(), session.UserFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, "list users failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: users, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, errInvalidInput)
		return
	}
	user, err := h.service.Create(r.Context(), session.UserFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create user failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": user})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Current(r.Context())
	if err != nil {
		h.fail(w, "load current user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), session.UserFromContext(r.Context()), chi.URLParam(r, "publicID"))
	if err != nil {
		h.fail(w, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": user})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, errInvalidInput)
		return
	}
	user, err := h.service.Update(r.Context(), session.UserFromContext(r.Context()), chi.URLParam(r, "publicID"), in)
	if err != nil {
		h.fail(w, "update user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": user})
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := EventsQuery{
		Scope:     changelog.EventScope(q.Get("type")),
		Page:      atoi(q.Get("page")),
		Limit:     atoi(q.Get("limit")),
		Ascending: q.Get("sort") == "asc",
	}
	events, page, err := h.service.Events(r.Context(), session.UserFromContext(r.Context()), chi.URLParam(r, "publicID"), query)
	if err != nil {
		h.fail(w, "list user events failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: events, Pagination: page})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation),
		errors.Is(err, httpx.ErrDuplicate), errors.Is(err, httpx.ErrForbidden),
		errors.Is(err, httpx.ErrUnauthorized):
	default:
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
