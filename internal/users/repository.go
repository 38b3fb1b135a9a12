package users

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

// Repository defines persistence operations for collaborator accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user User, passwordHash string) (int64, error)
	Update(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]User, error)
	ListByRole(ctx context.Context, roleName string) ([]User, error)
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

const userColumns = `u.id, u.username, u.email, r.name, u.created_at, u.updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.RoleName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	return &u, nil
}

func (r *repository) Create(ctx context.Context, user User, passwordHash string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role_id)
		VALUES ($1, $2, $3, (SELECT id FROM roles WHERE name = $4))
		RETURNING id`,
		user.Username, user.Email, passwordHash, user.RoleName,
	).Scan(&id)
	if err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, user User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET username = $1, email = $2, role_id = (SELECT id FROM roles WHERE name = $3), updated_at = NOW()
		WHERE id = $4`,
		user.Username, user.Email, user.RoleName, user.ID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		ORDER BY u.id`)
}

func (r *repository) ListByRole(ctx context.Context, roleName string) ([]User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE r.name = $1
		ORDER BY u.id`, roleName)
}

func (r *repository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.RoleName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	return out, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if strings.Contains(pgErr.ConstraintName, "username") {
				return fmt.Errorf("%w: username is already taken", shared.ErrConflict)
			}
			if strings.Contains(pgErr.ConstraintName, "email") {
				return fmt.Errorf("%w: email is already registered", shared.ErrConflict)
			}
			return fmt.Errorf("%w: account already exists", shared.ErrConflict)
		case "23502", "23503":
			return fmt.Errorf("%w: unknown role", shared.ErrValidation)
		}
	}
	return fmt.Errorf("users: storage: %w", err)
}
