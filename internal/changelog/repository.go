package changelog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// PostgresSink inserts entries into events_log.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink constructs a PostgresSink.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Write implements Sink.
func (s *PostgresSink) Write(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO events_log (tbl, fld, details, event_date, event_by, status)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Table, entry.RecordID, entry.Details, entry.EventDate, entry.EventBy, entry.Status)
	if err != nil {
		return fmt.Errorf("changelog: insert event: %w", err)
	}
	return nil
}

// EventScope selects which side of an event a listing filters on.
type EventScope string

// Event scopes.
const (
	ScopeBy EventScope = "by"
	ScopeOn EventScope = "on"
)

// EventFilter narrows an events listing.
type EventFilter struct {
	Table     string
	Scope     EventScope
	UserID    int64
	Page      int
	Limit     int
	Ascending bool
}

// Event is a listed events_log row. EventBy is set for "by" listings and
// RecordID for "on" listings.
type Event struct {
	ID        int64     `json:"id"`
	Details   string    `json:"details"`
	EventDate time.Time `json:"event_date"`
	Status    int       `json:"status"`
	EventBy   *int64    `json:"event_by,omitempty"`
	RecordID  *int64    `json:"fld,omitempty"`
}

// EventsRepository reads events_log.
type EventsRepository struct {
	pool *pgxpool.Pool
}

// NewEventsRepository constructs an EventsRepository.
func NewEventsRepository(pool *pgxpool.Pool) *EventsRepository {
	return &EventsRepository{pool: pool}
}

// List returns one page of events and the total matching count.
func (r *EventsRepository) List(ctx context.Context, f EventFilter) ([]Event, int, error) {
	column := "event_by"
	if f.Scope == ScopeOn {
		column = "fld"
	}
	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	where := ` FROM events_log WHERE tbl = $1 AND ` + column + ` = $2`
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		offset = 0
	}

	var (
		events []Event
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT id, details, event_date, status, `+column+where+
			` ORDER BY id `+order+` LIMIT $3 OFFSET $4`, f.Table, f.UserID, f.Limit, offset)
		if err != nil {
			return fmt.Errorf("changelog: list events: %w", err)
		}
		events, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
			var (
				ev  Event
				ref int64
			)
			if err := row.Scan(&ev.ID, &ev.Details, &ev.EventDate, &ev.Status, &ref); err != nil {
				return Event{}, err
			}
			if f.Scope == ScopeOn {
				ev.RecordID = &ref
			} else {
				ev.EventBy = &ref
			}
			return ev, nil
		})
		if err != nil {
			return fmt.Errorf("changelog: scan events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, `SELECT COUNT(*)`+where, f.Table, f.UserID).Scan(&total); err != nil {
			return fmt.Errorf("changelog: count events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, total, nil
}

var _ Sink = (*PostgresSink)(nil)
