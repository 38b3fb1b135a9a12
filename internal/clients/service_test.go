package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicevents/epicevents/internal/authz"
	"github.com/epicevents/epicevents/internal/shared"
)

type mockRepository struct {
	clients map[int64]*Client
	nextID  int64

	createCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{clients: make(map[int64]*Client), nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepository) Create(ctx context.Context, client Client) (int64, error) {
	m.createCalls++
	for _, existing := range m.clients {
		if existing.FirstName == client.FirstName && existing.LastName == client.LastName && existing.CompanyName == client.CompanyName {
			return 0, shared.ErrConflict
		}
		if existing.Email == client.Email {
			return 0, shared.ErrConflict
		}
	}
	id := m.nextID
	m.nextID++
	client.ID = id
	client.CreatedAt = time.Now()
	client.UpdatedAt = client.CreatedAt
	m.clients[id] = &client
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, client Client) error {
	existing, ok := m.clients[client.ID]
	if !ok {
		return shared.ErrNotFound
	}
	now := time.Now()
	client.LastContact = &now
	client.SalesContactID = existing.SalesContactID
	client.UpdatedAt = now
	m.clients[client.ID] = &client
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.clients[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *mockRepository) List(ctx context.Context) ([]Client, error) {
	out := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Client, error) {
	var out []Client
	for _, c := range m.clients {
		if c.SalesContactID != nil && *c.SalesContactID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

var (
	management = authz.Identity{UserID: 1, Username: "boss", Role: authz.RoleManagement}
	commercial = authz.Identity{UserID: 2, Username: "alice", Role: authz.RoleCommercial}
	rival      = authz.Identity{UserID: 3, Username: "bob", Role: authz.RoleCommercial}
	support    = authz.Identity{UserID: 4, Username: "sam", Role: authz.RoleSupport}
)

func newTestService(repo Repository) *Service {
	engine := authz.NewEngine(authz.NewTable(authz.DefaultMatrix()), nil)
	return NewService(repo, engine, nil, nil)
}

func acmeRequest() CreateClientRequest {
	return CreateClientRequest{
		FirstName:   "John",
		LastName:    "Doe",
		Email:       "john.doe@acme.test",
		CompanyName: "Acme",
	}
}

func TestCreateSetsOwnerToActor(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	client, err := service.Create(context.Background(), commercial, acmeRequest())
	require.NoError(t, err)
	require.NotNil(t, client.SalesContactID)
	assert.Equal(t, commercial.UserID, *client.SalesContactID)
}

func TestCreateDeniedForSupport(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.Create(context.Background(), support, acmeRequest())
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.Zero(t, repo.createCalls, "repository never reached")
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	service := newTestService(newMockRepository())

	req := acmeRequest()
	req.CompanyName = "  "
	_, err := service.Create(context.Background(), commercial, req)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateDuplicateIsIdempotentConflict(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.Create(context.Background(), commercial, acmeRequest())
	require.NoError(t, err)

	// Same invalid input twice yields the same conflict, no partial write.
	_, err = service.Create(context.Background(), commercial, acmeRequest())
	assert.ErrorIs(t, err, shared.ErrConflict)
	_, err = service.Create(context.Background(), commercial, acmeRequest())
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, repo.clients, 1)
}

func TestUpdateOwnershipGate(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	created, err := service.Create(context.Background(), commercial, acmeRequest())
	require.NoError(t, err)

	newName := "Johnny"
	_, err = service.Update(context.Background(), rival, created.ID, UpdateClientRequest{FirstName: &newName})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied, "another commercial user is denied")

	updated, err := service.Update(context.Background(), commercial, created.ID, UpdateClientRequest{FirstName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", updated.FirstName)
	assert.NotNil(t, updated.LastContact, "last_contact refreshes on update")
}

func TestUpdateManagementOverride(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	created, err := service.Create(context.Background(), commercial, acmeRequest())
	require.NoError(t, err)

	company := "Acme Corp"
	updated, err := service.Update(context.Background(), management, created.ID, UpdateClientRequest{CompanyName: &company})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.CompanyName)
}

func TestUpdateNotFound(t *testing.T) {
	service := newTestService(newMockRepository())

	name := "x"
	_, err := service.Update(context.Background(), management, 99, UpdateClientRequest{FirstName: &name})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRequiresOwnershipOrManagement(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	created, err := service.Create(context.Background(), commercial, acmeRequest())
	require.NoError(t, err)

	err = service.Delete(context.Background(), rival, created.ID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = service.Delete(context.Background(), management, created.ID)
	require.NoError(t, err)
	assert.Empty(t, repo.clients)
}

func TestListByOwner(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.Create(context.Background(), commercial, acmeRequest())
	require.NoError(t, err)

	other := acmeRequest()
	other.FirstName = "Jane"
	other.Email = "jane@acme.test"
	_, err = service.Create(context.Background(), rival, other)
	require.NoError(t, err)

	mine, err := service.ListByOwner(context.Background(), commercial, commercial.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, "John", mine[0].FirstName)
}
