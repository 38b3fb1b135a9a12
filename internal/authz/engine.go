package authz

import (
	"context"
	"log/slog"
)

// PermissionSource answers whether a role holds a (entity, action) grant.
type PermissionSource interface {
	HasPermission(ctx context.Context, role Role, entity Entity, action Action) (bool, error)
}

// Engine decides allow/deny for one identity acting on one record. It is
// stateless and safe for concurrent use.
type Engine struct {
	perms  PermissionSource
	logger *slog.Logger
}

// NewEngine constructs an Engine backed by the given permission source.
func NewEngine(perms PermissionSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{perms: perms, logger: logger}
}

// Authorize reports whether identity may perform action on entity. For
// update/delete the caller passes the record's resolved owner; ownership
// must be proven, so a nil owner denies everyone but Management.
//
// The check order is fixed: the permission lookup always runs first, and the
// Management override lives inside the ownership branch only. Management
// without the baseline grant is denied like anyone else.
func (e *Engine) Authorize(ctx context.Context, identity Identity, entity Entity, action Action, owner *int64) (bool, error) {
	if !identity.Role.Valid() || !entity.Valid() || !action.Valid() {
		return false, nil
	}

	granted, err := e.perms.HasPermission(ctx, identity.Role, entity, action)
	if err != nil {
		e.logger.Error("authz: permission lookup", slog.Any("error", err))
		return false, err
	}
	if !granted {
		e.logger.Warn("authz: denied",
			slog.String("role", string(identity.Role)),
			slog.String("entity", string(entity)),
			slog.String("action", string(action)))
		return false, nil
	}

	if (action == ActionUpdate || action == ActionDelete) && entity != EntityUser {
		if identity.Role == RoleManagement {
			return true, nil
		}
		return owner != nil && *owner == identity.UserID, nil
	}

	// A Commercial user may only create events for contracts belonging to
	// their own clients.
	if action == ActionCreate && entity == EntityEvent && identity.Role == RoleCommercial {
		return owner != nil && *owner == identity.UserID, nil
	}

	return true, nil
}

// Owner adapts an int64 owner id to the optional argument Authorize takes.
func Owner(id int64) *int64 {
	return &id
}
