package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/clients"
	"github.com/epicevents/epicevents/internal/shared"
)

// ClientDirectory resolves client records for ownership and existence
// checks.
type ClientDirectory interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// Service is the business-rule controller for contracts.
type Service struct {
	repo    Repository
	clients ClientDirectory
	engine  *authz.Engine
	logger  *slog.Logger
	audit   *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, clientDir ClientDirectory, engine *authz.Engine, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clients: clientDir, engine: engine, logger: logger, audit: audit}
}

func (s *Service) authorize(ctx context.Context, actor authz.Identity, action authz.Action, owner *int64) error {
	ok, err := s.engine.Authorize(ctx, actor, authz.EntityContract, action, owner)
	if err != nil {
		return fmt.Errorf("contracts: authorize: %w", err)
	}
	if !ok {
		return shared.ErrPermissionDenied
	}
	return nil
}

// Create stores a new contract for an existing client. The contract's
// sales contact defaults to the client's sales contact, falling back to
// the acting user when the client has none.
func (s *Service) Create(ctx context.Context, actor authz.Identity, req CreateContractRequest) (*Contract, error) {
	if err := s.authorize(ctx, actor, authz.ActionCreate, nil); err != nil {
		return nil, err
	}

	status := StatusNotSigned
	if req.Status != "" {
		parsed, err := ParseStatus(req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
		}
		status = parsed
	}
	if err := validateAmounts(req.TotalAmount, req.AmountRemaining); err != nil {
		return nil, err
	}

	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	owner := client.SalesContactID
	if owner == nil {
		owner = authz.Owner(actor.UserID)
	}

	contract := Contract{
		ClientID:        client.ID,
		SalesContactID:  owner,
		TotalAmount:     req.TotalAmount,
		AmountRemaining: req.AmountRemaining,
		Status:          status,
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		id, err = repo.Create(ctx, contract)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract created",
		slog.Int64("contract_id", id),
		slog.Int64("client_id", client.ID),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "create", id)
	return s.repo.Get(ctx, id)
}

// Update mutates amounts and status after re-validating ownership.
// Moving a signed contract back to "Not Signed" is permitted; existing
// events stay untouched, so the transition is logged for follow-up.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id int64, req UpdateContractRequest) (*Contract, error) {
	contract, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActionUpdate, contract.OwnerID()); err != nil {
		return nil, err
	}

	unsigning := false
	if req.Status != nil {
		parsed, err := ParseStatus(*req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
		}
		unsigning = contract.Status == StatusSigned && parsed == StatusNotSigned
		contract.Status = parsed
	}
	if req.TotalAmount != nil {
		contract.TotalAmount = *req.TotalAmount
	}
	if req.AmountRemaining != nil {
		contract.AmountRemaining = *req.AmountRemaining
	}
	if err := validateAmounts(contract.TotalAmount, contract.AmountRemaining); err != nil {
		return nil, err
	}

	if unsigning {
		if count, err := s.repo.CountEvents(ctx, id); err == nil && count > 0 {
			s.logger.Warn("contract un-signed with existing events",
				slog.Int64("contract_id", id),
				slog.Int("events", count))
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, *contract)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract updated",
		slog.Int64("contract_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a contract. Its events cascade at the storage layer.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id int64) error {
	contract, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, authz.ActionDelete, contract.OwnerID()); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("contract deleted",
		slog.Int64("contract_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "delete", id)
	return nil
}

// Get fetches one contract, subject to read permission.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id int64) (*Contract, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List returns all contracts.
func (s *Service) List(ctx context.Context, actor authz.Identity) ([]Contract, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// ListByStatus filters contracts by status.
func (s *Service) ListByStatus(ctx context.Context, actor authz.Identity, status Status) ([]Contract, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.ListByStatus(ctx, status)
}

// ListUnpaid returns contracts with a remaining balance.
func (s *Service) ListUnpaid(ctx context.Context, actor authz.Identity) ([]Contract, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.ListUnpaid(ctx)
}

// ListByOwner filters contracts by sales contact.
func (s *Service) ListByOwner(ctx context.Context, actor authz.Identity, ownerID int64) ([]Contract, error) {
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
		Entity:   "contract",
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

// validateAmounts enforces the amount invariant before anything reaches
// the repository.
func validateAmounts(total, remaining float64) error {
	if total < 0 || remaining < 0 {
		return fmt.Errorf("%w: amounts must not be negative", shared.ErrValidation)
	}
	if remaining > total {
		return fmt.Errorf("%w: amount remaining must not exceed total amount", shared.ErrValidation)
	}
	return nil
}
