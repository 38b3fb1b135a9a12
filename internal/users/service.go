package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/epicevents/epicevents/internal/auth"
	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/shared"
)

// Service is the business-rule controller for collaborator accounts.
type Service struct {
	repo   Repository
	engine *authz.Engine
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, engine *authz.Engine, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, logger: logger, audit: audit}
}

func (s *Service) authorize(ctx context.Context, actor authz.Identity, action authz.Action) error {
	ok, err := s.engine.Authorize(ctx, actor, authz.EntityUser, action, nil)
	if err != nil {
		return fmt.Errorf("users: authorize: %w", err)
	}
	if !ok {
		return shared.ErrPermissionDenied
	}
	return nil
}

// Create registers a new collaborator account. Requires the user
// management permission; the password must satisfy the strength policy.
func (s *Service) Create(ctx context.Context, actor authz.Identity, req CreateUserRequest) (*User, error) {
	if err := s.authorize(ctx, actor, authz.ActionCreate); err != nil {
		return nil, err
	}

	role, err := authz.ParseRole(req.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: role must be Management, Commercial or Support", shared.ErrValidation)
	}
	if err := auth.CheckPasswordStrength(req.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: req.Username,
		Email:    req.Email,
		RoleName: string(role),
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		id, err = repo.Create(ctx, user, hash)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.Int64("user_id", id),
		slog.String("role", string(role)),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "create", id)
	return s.repo.Get(ctx, id)
}

// Update mutates an account. Anyone may edit their own username, email
// and password; changing any other account, or any role, requires the
// user management permission.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id int64, req UpdateUserRequest) (*User, error) {
	self := actor.UserID == id
	if !self || req.Role != nil {
		if err := s.authorize(ctx, actor, authz.ActionUpdate); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		role, err := authz.ParseRole(*req.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: role must be Management, Commercial or Support", shared.ErrValidation)
		}
		user.RoleName = string(role)
	}

	var hash string
	if req.Password != nil {
		if err := auth.CheckPasswordStrength(*req.Password); err != nil {
			return nil, err
		}
		hash, err = auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, *user); err != nil {
			return err
		}
		if hash != "" {
			return repo.UpdatePassword(ctx, id, hash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user updated",
		slog.Int64("user_id", id),
		slog.Bool("self", self),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes an account. Records that point at it as a contact keep
// their rows; the storage layer nulls the reference.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id int64) error {
	if err := s.authorize(ctx, actor, authz.ActionDelete); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deleted",
		slog.Int64("user_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "delete", id)
	return nil
}

// Get fetches one account, subject to read permission.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id int64) (*User, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context, actor authz.Identity) ([]User, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// ListByRole filters accounts by role name.
func (s *Service) ListByRole(ctx context.Context, actor authz.Identity, roleName string) ([]User, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead); err != nil {
		return nil, err
	}
	role, err := authz.ParseRole(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: role must be Management, Commercial or Support", shared.ErrValidation)
	}
	return s.repo.ListByRole(ctx, string(role))
}

func (s *Service) recordAudit(ctx context.Context, actor authz.Identity, action string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
