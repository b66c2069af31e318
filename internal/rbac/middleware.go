package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/session"
)

// Middleware wires permission checks into HTTP routes.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// Require ensures the session user holds the table-wide action on table.
func (m Middleware) Require(table string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := session.UserFromContext(r.Context())
			if user == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Not authenticated")
				return
			}
			if !m.Evaluator.HasPermission(r.Context(), SubjectOf(user), table, action, 0) {
				if m.Logger != nil {
					m.Logger.Info("permission denied",
						slog.Int64("user_id", user.ID),
						slog.String("table", table),
						slog.String("action", action.String()))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", DeniedMessage(table, action))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectOf converts a session user into a permission subject.
func SubjectOf(user *session.Payload) Subject {
	if user == nil {
		return Subject{}
	}
	return Subject{ID: user.ID, Role: user.Role}
}

// DeniedMessage renders the user facing message for a refused action.
func DeniedMessage(table string, action Action) string {
	verb := action.String()
	switch action.Kind() {
	case KindRead:
		verb = "view"
	case KindGeneral:
		verb = "access"
	}
	return fmt.Sprintf("You don't have permission to %s %s!", verb, table)
}
