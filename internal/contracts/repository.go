package contracts

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

// Repository defines persistence operations for contracts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Contract, error)
	Create(ctx context.Context, contract Contract) (int64, error)
	Update(ctx context.Context, contract Contract) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Contract, error)
	ListByStatus(ctx context.Context, status Status) ([]Contract, error)
	ListUnpaid(ctx context.Context) ([]Contract, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Contract, error)
	CountEvents(ctx context.Context, contractID int64) (int, error)
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

const contractColumns = `id, client_id, sales_contact_id, total_amount, amount_remaining, status, date_created, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Contract, error) {
	row := r.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	var c Contract
	err := row.Scan(&c.ID, &c.ClientID, &c.SalesContactID, &c.TotalAmount, &c.AmountRemaining, &c.Status, &c.DateCreated, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("contracts: scan: %w", err)
	}
	return &c, nil
}

func (r *repository) Create(ctx context.Context, contract Contract) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO contracts (client_id, sales_contact_id, total_amount, amount_remaining, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		contract.ClientID, contract.SalesContactID, contract.TotalAmount, contract.AmountRemaining, string(contract.Status),
	).Scan(&id)
	if err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, contract Contract) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE contracts
		SET total_amount = $1, amount_remaining = $2, status = $3, updated_at = NOW()
		WHERE id = $4`,
		contract.TotalAmount, contract.AmountRemaining, string(contract.Status), contract.ID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Contract, error) {
	return r.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts ORDER BY id`)
}

func (r *repository) ListByStatus(ctx context.Context, status Status) ([]Contract, error) {
	return r.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts WHERE status = $1 ORDER BY id`, string(status))
}

func (r *repository) ListUnpaid(ctx context.Context) ([]Contract, error) {
	return r.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts WHERE amount_remaining > 0 ORDER BY id`)
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int64) ([]Contract, error) {
	return r.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts WHERE sales_contact_id = $1 ORDER BY id`, ownerID)
}

// CountEvents reports how many events reference the contract, used when
// un-signing a contract that already has events.
func (r *repository) CountEvents(ctx context.Context, contractID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE contract_id = $1`, contractID).Scan(&count); err != nil {
		return 0, fmt.Errorf("contracts: count events: %w", err)
	}
	return count, nil
}

func (r *repository) queryContracts(ctx context.Context, query string, args ...any) ([]Contract, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("contracts: query: %w", err)
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.ClientID, &c.SalesContactID, &c.TotalAmount, &c.AmountRemaining, &c.Status, &c.DateCreated, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("contracts: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contracts: query: %w", err)
	}
	return out, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: a contract with these details already exists", shared.ErrConflict)
		case "23503":
			return fmt.Errorf("%w: unknown client or sales contact", shared.ErrValidation)
		case "23514":
			return fmt.Errorf("%w: amounts must be non-negative and remaining must not exceed total", shared.ErrValidation)
		}
	}
	return fmt.Errorf("contracts: storage: %w", err)
}
