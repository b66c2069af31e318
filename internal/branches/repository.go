package branches

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context) ([]Option, error)
	Get(ctx context.Context, id int64) (Branch, error)
	NamesByIDs(ctx context.Context, ids []int64) ([]Option, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Option, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM branches ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Option])
}

func (r *repository) Get(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := r.db.QueryRow(ctx, `SELECT id, name, COALESCE(location, '') FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Location)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, httpx.ErrNotFound
	}
	return b, err
}

func (r *repository) NamesByIDs(ctx context.Context, ids []int64) ([]Option, error) {
	if len(ids) == 0 {
		return []Option{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name FROM branches WHERE id = ANY($1) ORDER BY name ASC`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Option])
}
