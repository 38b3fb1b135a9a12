package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/shared"
)

// Service is the business-rule controller for clients: it authorizes,
// validates, then delegates to the repository.
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

func (s *Service) authorize(ctx context.Context, actor authz.Identity, action authz.Action, owner *int64) error {
	ok, err := s.engine.Authorize(ctx, actor, authz.EntityClient, action, owner)
	if err != nil {
		return fmt.Errorf("clients: authorize: %w", err)
	}
	if !ok {
		return shared.ErrPermissionDenied
	}
	return nil
}

// Create stores a new client owned by the acting commercial user.
func (s *Service) Create(ctx context.Context, actor authz.Identity, req CreateClientRequest) (*Client, error) {
	if err := s.authorize(ctx, actor, authz.ActionCreate, nil); err != nil {
		return nil, err
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	client := Client{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		Phone:          req.Phone,
		CompanyName:    strings.TrimSpace(req.CompanyName),
		SalesContactID: authz.Owner(actor.UserID),
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		id, err = repo.Create(ctx, client)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("client created",
		slog.Int64("client_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "create", id)
	return s.repo.Get(ctx, id)
}

// Update mutates a client after re-validating ownership.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id int64, req UpdateClientRequest) (*Client, error) {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActionUpdate, client.OwnerID()); err != nil {
		return nil, err
	}

	applyUpdate(client, req)
	if err := validateClient(*client); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, *client)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("client updated",
		slog.Int64("client_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a client. Contracts and their events cascade at the
// storage layer.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id int64) error {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, authz.ActionDelete, client.OwnerID()); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("client deleted",
		slog.Int64("client_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "delete", id)
	return nil
}

// Get fetches one client, subject to read permission.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id int64) (*Client, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List returns all clients.
func (s *Service) List(ctx context.Context, actor authz.Identity) ([]Client, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// ListByOwner returns clients belonging to one sales contact.
func (s *Service) ListByOwner(ctx context.Context, actor authz.Identity, ownerID int64) ([]Client, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *Service) recordAudit(ctx context.Context, actor authz.Identity, action string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "client",
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func validateCreate(req CreateClientRequest) error {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", shared.ErrValidation)
	}
	if strings.TrimSpace(req.Email) == "" {
		return fmt.Errorf("%w: email is required", shared.ErrValidation)
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		return fmt.Errorf("%w: company name is required", shared.ErrValidation)
	}
	return nil
}

func validateClient(c Client) error {
	if c.FirstName == "" || c.LastName == "" || c.Email == "" || c.CompanyName == "" {
		return fmt.Errorf("%w: first name, last name, email and company must not be empty", shared.ErrValidation)
	}
	return nil
}

func applyUpdate(c *Client, req UpdateClientRequest) {
	if req.FirstName != nil {
		c.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		c.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		c.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		c.Phone = req.Phone
	}
	if req.CompanyName != nil {
		c.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
}
