package authz

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGPermissions reads the permission table from PostgreSQL.
type PGPermissions struct {
	pool *pgxpool.Pool
}

// NewPGPermissions constructs a PostgreSQL backed permission source.
func NewPGPermissions(pool *pgxpool.Pool) *PGPermissions {
	return &PGPermissions{pool: pool}
}

// HasPermission checks for a (role, entity, action) grant.
func (p *PGPermissions) HasPermission(ctx context.Context, role Role, entity Entity, action Action) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM permissions p
			JOIN roles r ON r.id = p.role_id
			WHERE r.name = $1 AND p.entity = $2 AND p.action = $3
		)`
	var granted bool
	if err := p.pool.QueryRow(ctx, query, string(role), string(entity), string(action)).Scan(&granted); err != nil {
		return false, fmt.Errorf("authz: permission lookup: %w", err)
	}
	return granted, nil
}

// Snapshot loads every grant into an immutable in-memory table. The
// permission set is seeded once at bootstrap, so the server loads it at
// startup instead of querying per call.
func (p *PGPermissions) Snapshot(ctx context.Context) (*Table, error) {
	const query = `
		SELECT r.name, p.entity, p.action
		FROM permissions p
		JOIN roles r ON r.id = p.role_id`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("authz: load permissions: %w", err)
	}
	defer rows.Close()

	grants := make(map[Role][]Grant)
	for rows.Next() {
		var roleName, entity, action string
		if err := rows.Scan(&roleName, &entity, &action); err != nil {
			return nil, fmt.Errorf("authz: scan permission: %w", err)
		}
		role, err := ParseRole(roleName)
		if err != nil {
			return nil, err
		}
		grants[role] = append(grants[role], Grant{Entity: Entity(entity), Action: Action(action)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: load permissions: %w", err)
	}
	return NewTable(grants), nil
}

// Table is an immutable in-memory permission source.
type Table struct {
	grants map[Role]map[Grant]struct{}
}

// NewTable builds a Table from role grants. Duplicate grants are harmless.
func NewTable(matrix map[Role][]Grant) *Table {
	grants := make(map[Role]map[Grant]struct{}, len(matrix))
	for role, list := range matrix {
		set := make(map[Grant]struct{}, len(list))
		for _, g := range list {
			set[g] = struct{}{}
		}
		grants[role] = set
	}
	return &Table{grants: grants}
}

// HasPermission checks the in-memory table. It never fails.
func (t *Table) HasPermission(_ context.Context, role Role, entity Entity, action Action) (bool, error) {
	set, ok := t.grants[role]
	if !ok {
		return false, nil
	}
	_, ok = set[Grant{Entity: entity, Action: action}]
	return ok, nil
}

// Grants lists the grants held by a role, mainly for display.
func (t *Table) Grants(role Role) []Grant {
	set, ok := t.grants[role]
	if !ok {
		return nil
	}
	out := make([]Grant, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out
}

var (
	_ PermissionSource = (*PGPermissions)(nil)
	_ PermissionSource = (*Table)(nil)
)
