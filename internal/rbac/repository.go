package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRules matches rules in the permissions table.
type PostgresRules struct {
	pool *pgxpool.Pool
}

// NewPostgresRules constructs a rule repository backed by pool.
func NewPostgresRules(pool *pgxpool.Pool) *PostgresRules {
	return &PostgresRules{pool: pool}
}

// MatchRule implements RuleRepository.
func (r *PostgresRules) MatchRule(ctx context.Context, q RuleQuery) (bool, error) {
	sql, args, err := matchRuleSQL(q)
	if err != nil {
		return false, err
	}
	var one int
	err = r.pool.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rbac: match rule: %w", err)
	}
	return true, nil
}

const matchRuleBase = `SELECT 1 FROM permissions
WHERE (role = $1 OR user_id = $2) AND tbl = $3 AND rec = $4 AND status = 1`

// matchRuleSQL builds the lookup. Flag columns only ever come from
// flagColumns and are quoted because most of them are SQL keywords.
func matchRuleSQL(q RuleQuery) (string, []any, error) {
	args := []any{string(q.Role), q.UserID, q.Table, q.Record}
	if column, ok := q.Action.Column(); ok {
		return matchRuleBase + ` AND "` + column + `" = 1 LIMIT 1`, args, nil
	}
	if q.Action.Kind() != KindCustom {
		return "", nil, fmt.Errorf("rbac: unsupported action %q", q.Action)
	}
	args = append(args, q.Action.String())
	return matchRuleBase + ` AND custom_action = $5 LIMIT 1`, args, nil
}

var _ RuleRepository = (*PostgresRules)(nil)
