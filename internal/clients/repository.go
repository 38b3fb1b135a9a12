package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epicevents/epicevents/internal/platform/db"
	"github.com/epicevents/epicevents/internal/shared"
)

// Repository defines persistence operations for clients.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Client, error)
	Create(ctx context.Context, client Client) (int64, error)
	Update(ctx context.Context, client Client) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Client, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Client, error)
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

const clientColumns = `id, first_name, last_name, email, phone, company_name, last_contact, sales_contact_id, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CompanyName, &c.LastContact, &c.SalesContactID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("clients: scan: %w", err)
	}
	return &c, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (r *repository) Create(ctx context.Context, client Client) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO clients (first_name, last_name, email, phone, company_name, sales_contact_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		client.FirstName, client.LastName, client.Email, client.Phone, client.CompanyName, client.SalesContactID,
	).Scan(&id)
	if err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

// Update writes mutable fields and refreshes last_contact, since a record
// update implies the client was reached.
func (r *repository) Update(ctx context.Context, client Client) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clients
		SET first_name = $1, last_name = $2, email = $3, phone = $4, company_name = $5,
		    last_contact = CURRENT_DATE, updated_at = NOW()
		WHERE id = $6`,
		client.FirstName, client.LastName, client.Email, client.Phone, client.CompanyName, client.ID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Client, error) {
	return r.queryClients(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY last_name, first_name`)
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int64) ([]Client, error) {
	return r.queryClients(ctx, `SELECT `+clientColumns+` FROM clients WHERE sales_contact_id = $1 ORDER BY last_name, first_name`, ownerID)
}

func (r *repository) queryClients(ctx context.Context, query string, args ...any) ([]Client, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clients: query: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CompanyName, &c.LastContact, &c.SalesContactID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("clients: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clients: query: %w", err)
	}
	return out, nil
}

// translateError converts storage failures into domain error kinds so raw
// pgx errors never reach the presentation layer.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if strings.Contains(pgErr.ConstraintName, "email") {
				return fmt.Errorf("%w: a client with this email already exists", shared.ErrConflict)
			}
			return fmt.Errorf("%w: a client with this first name, last name and company already exists", shared.ErrConflict)
		case "23503":
			return fmt.Errorf("%w: unknown sales contact", shared.ErrValidation)
		}
	}
	return fmt.Errorf("clients: storage: %w", err)
}
