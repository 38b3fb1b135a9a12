package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epicevents/epicevents/internal/platform/db"
	"github.com/epicevents/epicevents/internal/shared"
)

// Repository defines persistence operations for events.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, event Event) (int64, error)
	Update(ctx context.Context, event Event) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Event, error)
	ListUnassigned(ctx context.Context) ([]Event, error)
	ListBySupport(ctx context.Context, supportID int64) ([]Event, error)
	AssignSupport(ctx context.Context, eventID, supportID int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const eventColumns = `id, contract_id, support_contact_id, event_date_start, event_date_end, location, attendees, notes, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	var e Event
	err := row.Scan(&e.ID, &e.ContractID, &e.SupportContactID, &e.DateStart, &e.DateEnd, &e.Location, &e.Attendees, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("events: scan: %w", err)
	}
	return &e, nil
}

func (r *repository) Create(ctx context.Context, event Event) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO events (contract_id, support_contact_id, event_date_start, event_date_end, location, attendees, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		event.ContractID, event.SupportContactID, event.DateStart, event.DateEnd, event.Location, event.Attendees, event.Notes,
	).Scan(&id)
	if err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, event Event) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE events
		SET event_date_start = $1, event_date_end = $2, location = $3, attendees = $4, notes = $5, updated_at = NOW()
		WHERE id = $6`,
		event.DateStart, event.DateEnd, event.Location, event.Attendees, event.Notes, event.ID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date_start, id`)
}

func (r *repository) ListUnassigned(ctx context.Context) ([]Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE support_contact_id IS NULL ORDER BY event_date_start, id`)
}

func (r *repository) ListBySupport(ctx context.Context, supportID int64) ([]Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE support_contact_id = $1 ORDER BY event_date_start, id`, supportID)
}

func (r *repository) AssignSupport(ctx context.Context, eventID, supportID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET support_contact_id = $1, updated_at = NOW() WHERE id = $2`, supportID, eventID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("events: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ContractID, &e.SupportContactID, &e.DateStart, &e.DateEnd, &e.Location, &e.Attendees, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("events: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: query: %w", err)
	}
	return out, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: an identical event already exists for this contract", shared.ErrConflict)
		case "23503":
			return fmt.Errorf("%w: unknown contract or support contact", shared.ErrValidation)
		case "23514":
			return fmt.Errorf("%w: event dates must be ordered and attendees non-negative", shared.ErrValidation)
		}
	}
	return fmt.Errorf("events: storage: %w", err)
}
