package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/clients"
	"github.com/epicevents/epicevents/internal/contracts"
	"github.com/epicevents/epicevents/internal/shared"
)

// ContractDirectory resolves contract records for the signed-contract
// precondition and ownership fallbacks.
type ContractDirectory interface {
	Get(ctx context.Context, id int64) (*contracts.Contract, error)
}

// ClientDirectory resolves client records so the event inherits the
// client's current sales contact as its commercial owner.
type ClientDirectory interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// SupportDirectory resolves user identities when assigning a support
// contact.
type SupportDirectory interface {
	IdentityByID(ctx context.Context, id int64) (*authz.Identity, error)
}

// Notifier announces support assignments. Implementations enqueue a
// background task; delivery failures never fail the assignment.
type Notifier interface {
	SupportAssigned(ctx context.Context, eventID, supportID int64) error
}

// Service is the business-rule controller for events.
type Service struct {
	repo      Repository
	contracts ContractDirectory
	clients   ClientDirectory
	users     SupportDirectory
	notifier  Notifier
	engine    *authz.Engine
	logger    *slog.Logger
	audit     *shared.AuditLogger
}

// NewService constructs a Service. The notifier may be nil.
func NewService(repo Repository, contractDir ContractDirectory, clientDir ClientDirectory, users SupportDirectory, notifier Notifier, engine *authz.Engine, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		contracts: contractDir,
		clients:   clientDir,
		users:     users,
		notifier:  notifier,
		engine:    engine,
		logger:    logger,
		audit:     audit,
	}
}

func (s *Service) authorize(ctx context.Context, actor authz.Identity, action authz.Action, owner *int64) error {
	ok, err := s.engine.Authorize(ctx, actor, authz.EntityEvent, action, owner)
	if err != nil {
		return fmt.Errorf("events: authorize: %w", err)
	}
	if !ok {
		return shared.ErrPermissionDenied
	}
	return nil
}

// Create stores a new event under a signed contract. The referenced
// contract must exist and carry the Signed status; the commercial owner
// is the contract's client's current sales contact.
func (s *Service) Create(ctx context.Context, actor authz.Identity, req CreateEventRequest) (*Event, error) {
	contract, err := s.contracts.Get(ctx, req.ContractID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: contract %d does not exist", shared.ErrPrecondition, req.ContractID)
		}
		return nil, err
	}
	if !contract.Signed() {
		return nil, fmt.Errorf("%w: contract %d is not signed", shared.ErrPrecondition, contract.ID)
	}

	owner := contract.OwnerID()
	client, err := s.clients.Get(ctx, contract.ClientID)
	if err != nil {
		return nil, err
	}
	if client.SalesContactID != nil {
		owner = client.SalesContactID
	}

	if err := s.authorize(ctx, actor, authz.ActionCreate, owner); err != nil {
		return nil, err
	}
	if err := validateSchedule(req.DateStart, req.DateEnd, req.Attendees); err != nil {
		return nil, err
	}

	event := Event{
		ContractID: contract.ID,
		DateStart:  req.DateStart,
		DateEnd:    req.DateEnd,
		Location:   req.Location,
		Attendees:  req.Attendees,
		Notes:      req.Notes,
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		id, err = repo.Create(ctx, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created",
		slog.Int64("event_id", id),
		slog.Int64("contract_id", contract.ID),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "create", id)
	return s.repo.Get(ctx, id)
}

// Update mutates the schedule, location, attendees and notes after
// re-validating ownership. The owner is the support contact when one is
// assigned, otherwise the contract's sales contact.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id int64, req UpdateEventRequest) (*Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.ownerOf(ctx, event)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActionUpdate, owner); err != nil {
		return nil, err
	}

	if req.DateStart != nil {
		event.DateStart = *req.DateStart
	}
	if req.DateEnd != nil {
		event.DateEnd = *req.DateEnd
	}
	if req.Location != nil {
		event.Location = req.Location
	}
	if req.Attendees != nil {
		event.Attendees = *req.Attendees
	}
	if req.Notes != nil {
		event.Notes = req.Notes
	}
	if err := validateSchedule(event.DateStart, event.DateEnd, event.Attendees); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, *event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event updated",
		slog.Int64("event_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes an event after ownership checks.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id int64) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	owner, err := s.ownerOf(ctx, event)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, authz.ActionDelete, owner); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("event deleted",
		slog.Int64("event_id", id),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "delete", id)
	return nil
}

// AssignSupport puts a support user in charge of an event. No owner is
// passed to the permission engine, so only Management passes the update
// gate. The assignee must hold the Support role.
func (s *Service) AssignSupport(ctx context.Context, actor authz.Identity, id int64, supportID int64) (*Event, error) {
	if err := s.authorize(ctx, actor, authz.ActionUpdate, nil); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	assignee, err := s.users.IdentityByID(ctx, supportID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d does not exist", shared.ErrValidation, supportID)
		}
		return nil, err
	}
	if assignee.Role != authz.RoleSupport {
		return nil, fmt.Errorf("%w: user %d does not hold the Support role", shared.ErrValidation, supportID)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.AssignSupport(ctx, id, supportID)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.SupportAssigned(ctx, id, supportID); err != nil {
			s.logger.Warn("support assignment notification",
				slog.Int64("event_id", id),
				slog.Any("error", err))
		}
	}

	s.logger.Info("support assigned",
		slog.Int64("event_id", id),
		slog.Int64("support_id", supportID),
		slog.Int64("actor_id", actor.UserID))
	s.recordAudit(ctx, actor, "assign_support", id)
	return s.repo.Get(ctx, id)
}

// Get fetches one event, subject to read permission.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id int64) (*Event, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List returns all events ordered by start date.
func (s *Service) List(ctx context.Context, actor authz.Identity) ([]Event, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// ListUnassigned returns events without a support contact.
func (s *Service) ListUnassigned(ctx context.Context, actor authz.Identity) ([]Event, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.ListUnassigned(ctx)
}

// ListBySupport filters events by support contact.
func (s *Service) ListBySupport(ctx context.Context, actor authz.Identity, supportID int64) ([]Event, error) {
	if err := s.authorize(ctx, actor, authz.ActionRead, nil); err != nil {
		return nil, err
	}
	return s.repo.ListBySupport(ctx, supportID)
}

// ownerOf resolves the user who may mutate the event: the assigned
// support contact, or the contract's sales contact while unassigned.
func (s *Service) ownerOf(ctx context.Context, event *Event) (*int64, error) {
	if event.SupportContactID != nil {
		return event.SupportContactID, nil
	}
	contract, err := s.contracts.Get(ctx, event.ContractID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return contract.OwnerID(), nil
}

func (s *Service) recordAudit(ctx context.Context, actor authz.Identity, action string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "event",
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func validateSchedule(start, end time.Time, attendees int) error {
	if !end.After(start) {
		return fmt.Errorf("%w: event end must be after event start", shared.ErrValidation)
	}
	if attendees < 0 {
		return fmt.Errorf("%w: attendees must not be negative", shared.ErrValidation)
	}
	return nil
}
