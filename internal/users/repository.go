package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toursync/toursync-admin/internal/platform/db"
	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/shared"
)

// ErrUserNotFound is returned when no live user matches.
var ErrUserNotFound = fmt.Errorf("%w: User not found.", httpx.ErrNotFound)

const userColumns = `u.id, u.public_id, u.name, u.email, u.phone, u.national_id, u.branch_id,
COALESCE(b.name, ''), u.role, u.status, u.password, u.password_expiry, u.image, u.created_at, u.updated_at`

const userFrom = ` FROM users u LEFT JOIN branches b ON b.id = u.branch_id`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts u and returns it with generated columns filled in.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users
(public_id, name, email, phone, national_id, branch_id, role, status, password, password_expiry, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		u.PublicID, u.Name, u.Email, u.Phone, u.NationalID, u.BranchID, string(u.Role), string(u.Status), u.PasswordHash, u.PasswordExpiry,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, MapWriteError(err)
	}
	return u, nil
}

// GetByID loads a user that is not deleted.
func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	return r.getOne(ctx, r.pool, `WHERE u.id = $1 AND u.status <> 'DELETED'`, id)
}

// GetByPublicID loads a user that is not deleted.
func (r *Repository) GetByPublicID(ctx context.Context, publicID string) (User, error) {
	return r.getOne(ctx, r.pool, `WHERE u.public_id = $1 AND u.status <> 'DELETED'`, publicID)
}

// GetByEmail loads a user by email regardless of status. Sign-in decides
// what a non active status means.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, r.pool, `WHERE u.email = $1`, email)
}

// Update locks the user row, applies mutate and writes the result back in a
// single transaction. It returns the row before and after the change.
func (r *Repository) Update(ctx context.Context, publicID string, mutate func(*User) error) (User, User, error) {
	var before, after User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := r.getOne(ctx, tx, `WHERE u.public_id = $1 AND u.status <> 'DELETED' FOR UPDATE OF u`, publicID)
		if err != nil {
			return err
		}
		before = current
		after = current
		if err := mutate(&after); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `UPDATE users SET name = $2, email = $3, phone = $4, national_id = $5, branch_id = $6,
role = $7, status = $8, password = $9, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
			after.ID, after.Name, after.Email, after.Phone, after.NationalID, after.BranchID,
			string(after.Role), string(after.Status), after.PasswordHash,
		).Scan(&after.UpdatedAt)
		if err != nil {
			return MapWriteError(err)
		}
		return nil
	})
	if err != nil {
		return User{}, User{}, err
	}
	return before, after, nil
}

// List returns one page of users matching f, newest first, and the total
// number of matches.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]User, int, error) {
	where := ` WHERE u.status <> 'DELETED'`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.BranchID > 0 {
		where += ` AND u.branch_id = ` + arg(f.BranchID)
	}
	if f.Role != "" {
		where += ` AND u.role = ` + arg(string(f.Role))
	}
	if f.Status != "" {
		where += ` AND u.status = ` + arg(string(f.Status))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		p := arg("%" + search + "%")
		where += ` AND (u.name ILIKE ` + p + ` OR u.email ILIKE ` + p + ` OR u.phone ILIKE ` + p +
			` OR u.national_id ILIKE ` + p + ` OR b.name ILIKE ` + p + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+userFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + userColumns + userFrom + where +
		` ORDER BY u.created_at DESC, u.id DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, 0, fmt.Errorf("users: scan: %w", err)
	}
	return users, total, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) getOne(ctx context.Context, q querier, where string, arg any) (User, error) {
	rows, err := q.Query(ctx, `SELECT `+userColumns+userFrom+` `+where, arg)
	if err != nil {
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.CollectableRow) (User, error) {
	var (
		u      User
		role   string
		status string
	)
	err := row.Scan(&u.ID, &u.PublicID, &u.Name, &u.Email, &u.Phone, &u.NationalID, &u.BranchID,
		&u.BranchName, &role, &status, &u.PasswordHash, &u.PasswordExpiry, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	u.Role = shared.Role(role)
	u.Status = shared.UserStatus(status)
	return u, err
}
