package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Authenticate validates username/password credentials and returns the
// authenticated identity. Every failure path collapses into
// shared.ErrInvalidCredentials so the caller cannot tell an unknown user
// from a wrong password. The log entries are advisory only.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*authz.Identity, error) {
	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Warn("authentication failed", slog.String("username", username))
		return nil, shared.ErrInvalidCredentials
	}
	if !VerifyPassword(password, account.PasswordHash) {
		s.logger.Warn("authentication failed", slog.String("username", username))
		return nil, shared.ErrInvalidCredentials
	}
	role, err := authz.ParseRole(account.RoleName)
	if err != nil {
		s.logger.Error("authentication failed", slog.String("username", username), slog.Any("error", err))
		return nil, shared.ErrInvalidCredentials
	}
	s.logger.Info("authentication succeeded",
		slog.String("username", username),
		slog.String("role", string(role)))
	return &authz.Identity{UserID: account.ID, Username: account.Username, Role: role}, nil
}

// IdentityByID resolves the identity for a stored user id, used by the
// session middleware on each request. Fails closed when the user or its
// role no longer resolves.
func (s *Service) IdentityByID(ctx context.Context, id int64) (*authz.Identity, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := authz.ParseRole(account.RoleName)
	if err != nil {
		return nil, err
	}
	return &authz.Identity{UserID: account.ID, Username: account.Username, Role: role}, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
