// Package rbac decides whether a user may perform an action on a table or
// record, based on role- and user-scoped permission rules.
package rbac

import (
	"context"
	"log/slog"
	"strings"

	"github.com/toursync/toursync-admin/internal/shared"
)

// Subject is the actor a permission check is made for.
type Subject struct {
	ID   int64
	Role shared.Role
}

// RuleQuery describes the rule a permission check needs to find.
type RuleQuery struct {
	Role   shared.Role
	UserID int64
	Table  string
	Record int64
	Action Action
}

// RuleRepository reports whether an active rule grants the queried action.
type RuleRepository interface {
	MatchRule(ctx context.Context, q RuleQuery) (bool, error)
}

// Evaluator answers permission checks.
type Evaluator struct {
	rules  RuleRepository
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(rules RuleRepository, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{rules: rules, logger: logger}
}

// HasPermission reports whether subj may perform action on table. A recordID
// of 0 asks for the table-wide rule. Lookup failures deny.
func (e *Evaluator) HasPermission(ctx context.Context, subj Subject, table string, action Action, recordID int64) bool {
	if !action.Allowed() {
		return false
	}
	if subj.Role == "" {
		return false
	}
	if subj.Role == shared.RoleSuperAdmin {
		return true
	}
	table = strings.TrimSpace(table)
	if table == "" || recordID < 0 {
		return false
	}

	ok, err := e.rules.MatchRule(ctx, RuleQuery{
		Role:   subj.Role,
		UserID: subj.ID,
		Table:  table,
		Record: recordID,
		Action: action,
	})
	if err != nil {
		e.logger.Error("permission lookup failed",
			slog.String("table", table),
			slog.String("action", action.String()),
			slog.Int64("user_id", subj.ID),
			slog.Any("error", err))
		return false
	}
	return ok
}
