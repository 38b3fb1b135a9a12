package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/clients"
	"github.com/epicevents/epicevents/internal/contracts"
	"github.com/epicevents/epicevents/internal/shared"
)

type mockRepository struct {
	events map[int64]*Event
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{events: make(map[int64]*Event), nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepository) Create(ctx context.Context, event Event) (int64, error) {
	id := m.nextID
	m.nextID++
	event.ID = id
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	m.events[id] = &event
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, event Event) error {
	existing, ok := m.events[event.ID]
	if !ok {
		return shared.ErrNotFound
	}
	event.ContractID = existing.ContractID
	event.SupportContactID = existing.SupportContactID
	event.UpdatedAt = time.Now()
	m.events[event.ID] = &event
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.events[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *mockRepository) List(ctx context.Context) ([]Event, error) {
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockRepository) ListUnassigned(ctx context.Context) ([]Event, error) {
	var out []Event
	for _, e := range m.events {
		if e.SupportContactID == nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockRepository) ListBySupport(ctx context.Context, supportID int64) ([]Event, error) {
	var out []Event
	for _, e := range m.events {
		if e.SupportContactID != nil && *e.SupportContactID == supportID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockRepository) AssignSupport(ctx context.Context, eventID, supportID int64) error {
	e, ok := m.events[eventID]
	if !ok {
		return shared.ErrNotFound
	}
	e.SupportContactID = &supportID
	return nil
}

type stubContracts struct {
	contracts map[int64]*contracts.Contract
}

func (s *stubContracts) Get(ctx context.Context, id int64) (*contracts.Contract, error) {
	c, ok := s.contracts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type stubClients struct {
	clients map[int64]*clients.Client
}

func (s *stubClients) Get(ctx context.Context, id int64) (*clients.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type stubUsers struct {
	identities map[int64]*authz.Identity
}

func (s *stubUsers) IdentityByID(ctx context.Context, id int64) (*authz.Identity, error) {
	identity, ok := s.identities[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return identity, nil
}

type recordingNotifier struct {
	eventIDs   []int64
	supportIDs []int64
}

func (n *recordingNotifier) SupportAssigned(ctx context.Context, eventID, supportID int64) error {
	n.eventIDs = append(n.eventIDs, eventID)
	n.supportIDs = append(n.supportIDs, supportID)
	return nil
}

var (
	management = authz.Identity{UserID: 1, Username: "boss", Role: authz.RoleManagement}
	commercial = authz.Identity{UserID: 2, Username: "alice", Role: authz.RoleCommercial}
	rival      = authz.Identity{UserID: 3, Username: "bob", Role: authz.RoleCommercial}
	support    = authz.Identity{UserID: 4, Username: "sam", Role: authz.RoleSupport}
	othersup   = authz.Identity{UserID: 5, Username: "tina", Role: authz.RoleSupport}
)

type fixture struct {
	repo      *mockRepository
	contracts *stubContracts
	notifier  *recordingNotifier
	service   *Service
}

func newFixture() *fixture {
	repo := newMockRepository()
	contractDir := &stubContracts{contracts: map[int64]*contracts.Contract{
		20: {ID: 20, ClientID: 10, SalesContactID: authz.Owner(commercial.UserID), Status: contracts.StatusSigned},
		21: {ID: 21, ClientID: 10, SalesContactID: authz.Owner(commercial.UserID), Status: contracts.StatusNotSigned},
	}}
	clientDir := &stubClients{clients: map[int64]*clients.Client{
		10: {ID: 10, FirstName: "John", LastName: "Doe", CompanyName: "Acme", SalesContactID: authz.Owner(commercial.UserID)},
	}}
	users := &stubUsers{identities: map[int64]*authz.Identity{
		management.UserID: &management,
		commercial.UserID: &commercial,
		support.UserID:    &support,
		othersup.UserID:   &othersup,
	}}
	notifier := &recordingNotifier{}
	engine := authz.NewEngine(authz.NewTable(authz.DefaultMatrix()), nil)
	service := NewService(repo, contractDir, clientDir, users, notifier, engine, nil, nil)
	return &fixture{repo: repo, contracts: contractDir, notifier: notifier, service: service}
}

func validCreate(contractID int64) CreateEventRequest {
	start := time.Date(2026, 10, 12, 18, 0, 0, 0, time.UTC)
	return CreateEventRequest{
		ContractID: contractID,
		DateStart:  start,
		DateEnd:    start.Add(6 * time.Hour),
		Attendees:  75,
	}
}

func TestCreateRequiresSignedContract(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), commercial, validCreate(21))
	assert.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = f.service.Create(context.Background(), commercial, validCreate(404))
	assert.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestCreateSucceedsAfterContractIsSigned(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), commercial, validCreate(21))
	require.ErrorIs(t, err, shared.ErrPrecondition)

	f.contracts.contracts[21].Status = contracts.StatusSigned
	event, err := f.service.Create(context.Background(), commercial, validCreate(21))
	require.NoError(t, err)
	assert.Equal(t, int64(21), event.ContractID)
	assert.Nil(t, event.SupportContactID)
}

func TestCreateGatedOnContractOwner(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), rival, validCreate(20))
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = f.service.Create(context.Background(), commercial, validCreate(20))
	assert.NoError(t, err)
}

func TestCreateDeniedForSupport(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), support, validCreate(20))
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestCreateRejectsEndBeforeStart(t *testing.T) {
	f := newFixture()

	req := validCreate(20)
	req.DateEnd = req.DateStart.Add(-time.Hour)
	_, err := f.service.Create(context.Background(), commercial, req)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAssignSupportManagementOnly(t *testing.T) {
	f := newFixture()

	created, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)

	_, err = f.service.AssignSupport(context.Background(), commercial, created.ID, support.UserID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	updated, err := f.service.AssignSupport(context.Background(), management, created.ID, support.UserID)
	require.NoError(t, err)
	require.NotNil(t, updated.SupportContactID)
	assert.Equal(t, support.UserID, *updated.SupportContactID)
	assert.Equal(t, []int64{created.ID}, f.notifier.eventIDs)
	assert.Equal(t, []int64{support.UserID}, f.notifier.supportIDs)
}

func TestAssignSupportRejectsNonSupportUser(t *testing.T) {
	f := newFixture()

	created, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)

	_, err = f.service.AssignSupport(context.Background(), management, created.ID, commercial.UserID)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.AssignSupport(context.Background(), management, created.ID, 999)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, f.notifier.eventIDs)
}

func TestUpdateOwnershipFollowsAssignment(t *testing.T) {
	f := newFixture()

	created, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)

	// Unassigned: the sales contact owns the event but holds no update
	// grant, and no support user matches the owner yet.
	attendees := 100
	_, err = f.service.Update(context.Background(), commercial, created.ID, UpdateEventRequest{Attendees: &attendees})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = f.service.Update(context.Background(), support, created.ID, UpdateEventRequest{Attendees: &attendees})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = f.service.AssignSupport(context.Background(), management, created.ID, support.UserID)
	require.NoError(t, err)

	// Assigned: ownership moves to the support contact.
	_, err = f.service.Update(context.Background(), commercial, created.ID, UpdateEventRequest{Attendees: &attendees})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = f.service.Update(context.Background(), othersup, created.ID, UpdateEventRequest{Attendees: &attendees})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	notes := "setlist confirmed"
	updated, err := f.service.Update(context.Background(), support, created.ID, UpdateEventRequest{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
}

func TestUpdateManagementOverride(t *testing.T) {
	f := newFixture()

	created, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)
	_, err = f.service.AssignSupport(context.Background(), management, created.ID, support.UserID)
	require.NoError(t, err)

	attendees := 120
	updated, err := f.service.Update(context.Background(), management, created.ID, UpdateEventRequest{Attendees: &attendees})
	require.NoError(t, err)
	assert.Equal(t, 120, updated.Attendees)
}

func TestUpdateRejectsInvertedSchedule(t *testing.T) {
	f := newFixture()

	created, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)

	end := created.DateStart.Add(-time.Hour)
	_, err = f.service.Update(context.Background(), management, created.ID, UpdateEventRequest{DateEnd: &end})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRestrictedToManagement(t *testing.T) {
	f := newFixture()

	created, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)

	err = f.service.Delete(context.Background(), rival, created.ID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	// The creating sales contact holds no delete grant either.
	err = f.service.Delete(context.Background(), commercial, created.ID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = f.service.Delete(context.Background(), management, created.ID)
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), commercial, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	f := newFixture()

	first, err := f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)
	_, err = f.service.Create(context.Background(), commercial, validCreate(20))
	require.NoError(t, err)

	_, err = f.service.AssignSupport(context.Background(), management, first.ID, support.UserID)
	require.NoError(t, err)

	unassigned, err := f.service.ListUnassigned(context.Background(), support)
	require.NoError(t, err)
	assert.Len(t, unassigned, 1)

	mine, err := f.service.ListBySupport(context.Background(), support, support.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
}
