package contracts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/clients"
	"github.com/epicevents/epicevents/internal/shared"
)

type mockRepository struct {
	contracts map[int64]*Contract
	nextID    int64

	eventCounts map[int64]int
	createCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		contracts:   make(map[int64]*Contract),
		eventCounts: make(map[int64]int),
		nextID:      1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepository) Create(ctx context.Context, contract Contract) (int64, error) {
	m.createCalls++
	id := m.nextID
	m.nextID++
	contract.ID = id
	contract.DateCreated = time.Now()
	contract.CreatedAt = contract.DateCreated
	contract.UpdatedAt = contract.DateCreated
	m.contracts[id] = &contract
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, contract Contract) error {
	existing, ok := m.contracts[contract.ID]
	if !ok {
		return shared.ErrNotFound
	}
	contract.ClientID = existing.ClientID
	contract.SalesContactID = existing.SalesContactID
	contract.UpdatedAt = time.Now()
	m.contracts[contract.ID] = &contract
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.contracts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.contracts, id)
	return nil
}

func (m *mockRepository) List(ctx context.Context) ([]Contract, error) {
	out := make([]Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockRepository) ListByStatus(ctx context.Context, status Status) ([]Contract, error) {
	var out []Contract
	for _, c := range m.contracts {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepository) ListUnpaid(ctx context.Context) ([]Contract, error) {
	var out []Contract
	for _, c := range m.contracts {
		if c.AmountRemaining > 0 {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Contract, error) {
	var out []Contract
	for _, c := range m.contracts {
		if c.SalesContactID != nil && *c.SalesContactID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepository) CountEvents(ctx context.Context, contractID int64) (int, error) {
	return m.eventCounts[contractID], nil
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

var (
	management = authz.Identity{UserID: 1, Username: "boss", Role: authz.RoleManagement}
	commercial = authz.Identity{UserID: 2, Username: "alice", Role: authz.RoleCommercial}
	rival      = authz.Identity{UserID: 3, Username: "bob", Role: authz.RoleCommercial}
	support    = authz.Identity{UserID: 4, Username: "sam", Role: authz.RoleSupport}
)

func newTestService(repo Repository) *Service {
	engine := authz.NewEngine(authz.NewTable(authz.DefaultMatrix()), nil)
	dir := &stubClients{clients: map[int64]*clients.Client{
		10: {ID: 10, FirstName: "John", LastName: "Doe", CompanyName: "Acme", SalesContactID: authz.Owner(commercial.UserID)},
	}}
	return NewService(repo, dir, engine, nil, nil)
}

func TestCreateDefaultsToNotSignedAndClientOwner(t *testing.T) {
	service := newTestService(newMockRepository())

	contract, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     1000,
		AmountRemaining: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNotSigned, contract.Status)
	require.NotNil(t, contract.SalesContactID)
	assert.Equal(t, commercial.UserID, *contract.SalesContactID)
}

func TestCreateRejectsRemainingAboveTotal(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     1000,
		AmountRemaining: 1200,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, repo.createCalls, "rejected before reaching the repository")
}

func TestCreateRejectsNegativeAmounts(t *testing.T) {
	service := newTestService(newMockRepository())

	_, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     -5,
		AmountRemaining: 0,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsInvalidStatus(t *testing.T) {
	service := newTestService(newMockRepository())

	_, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     100,
		AmountRemaining: 100,
		Status:          "Pending",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateUnknownClient(t *testing.T) {
	service := newTestService(newMockRepository())

	_, err := service.Create(context.Background(), commercial, CreateContractRequest{ClientID: 99})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateDeniedForSupport(t *testing.T) {
	service := newTestService(newMockRepository())

	_, err := service.Create(context.Background(), support, CreateContractRequest{ClientID: 10})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUpdateOwnershipGate(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	created, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     1000,
		AmountRemaining: 500,
	})
	require.NoError(t, err)

	amount := 400.0
	_, err = service.Update(context.Background(), rival, created.ID, UpdateContractRequest{AmountRemaining: &amount})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	updated, err := service.Update(context.Background(), commercial, created.ID, UpdateContractRequest{AmountRemaining: &amount})
	require.NoError(t, err)
	assert.Equal(t, 400.0, updated.AmountRemaining)
}

func TestUpdateAmountInvariantOnMerge(t *testing.T) {
	service := newTestService(newMockRepository())

	created, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     1000,
		AmountRemaining: 500,
	})
	require.NoError(t, err)

	// Lowering the total below the standing remaining must fail.
	total := 300.0
	_, err = service.Update(context.Background(), commercial, created.ID, UpdateContractRequest{TotalAmount: &total})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestManagementSignsContract(t *testing.T) {
	service := newTestService(newMockRepository())

	created, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     1000,
		AmountRemaining: 500,
	})
	require.NoError(t, err)

	signed := string(StatusSigned)
	updated, err := service.Update(context.Background(), management, created.ID, UpdateContractRequest{Status: &signed})
	require.NoError(t, err)
	assert.True(t, updated.Signed())
}

func TestUnsigningIsPermitted(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	created, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID:        10,
		TotalAmount:     1000,
		AmountRemaining: 500,
		Status:          string(StatusSigned),
	})
	require.NoError(t, err)
	repo.eventCounts[created.ID] = 2

	notSigned := string(StatusNotSigned)
	updated, err := service.Update(context.Background(), management, created.ID, UpdateContractRequest{Status: &notSigned})
	require.NoError(t, err)
	assert.Equal(t, StatusNotSigned, updated.Status)
}

func TestDeleteNonexistentContractNotFoundForAnyRole(t *testing.T) {
	service := newTestService(newMockRepository())

	for _, actor := range []authz.Identity{management, commercial, support} {
		err := service.Delete(context.Background(), actor, 404)
		assert.ErrorIs(t, err, shared.ErrNotFound, "role %s", actor.Role)
	}
}

func TestListFilters(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID: 10, TotalAmount: 1000, AmountRemaining: 0, Status: string(StatusSigned),
	})
	require.NoError(t, err)
	_, err = service.Create(context.Background(), commercial, CreateContractRequest{
		ClientID: 10, TotalAmount: 500, AmountRemaining: 250,
	})
	require.NoError(t, err)

	signed, err := service.ListByStatus(context.Background(), support, StatusSigned)
	require.NoError(t, err)
	assert.Len(t, signed, 1)

	unpaid, err := service.ListUnpaid(context.Background(), commercial)
	require.NoError(t, err)
	assert.Len(t, unpaid, 1)
	assert.Equal(t, 250.0, unpaid[0].AmountRemaining)
}
