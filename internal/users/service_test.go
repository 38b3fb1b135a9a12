package users

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
	users     map[int64]*User
	passwords map[int64]string
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:     make(map[int64]*User),
		passwords: make(map[int64]string),
		nextID:    1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) Create(ctx context.Context, user User, passwordHash string) (int64, error) {
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return 0, shared.ErrConflict
		}
		if existing.Email == user.Email {
			return 0, shared.ErrConflict
		}
	}
	id := m.nextID
	m.nextID++
	user.ID = id
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[id] = &user
	m.passwords[id] = passwordHash
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, user User) error {
	existing, ok := m.users[user.ID]
	if !ok {
		return shared.ErrNotFound
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	m.users[user.ID] = &user
	return nil
}

func (m *mockRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	delete(m.passwords, id)
	return nil
}

func (m *mockRepository) List(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockRepository) ListByRole(ctx context.Context, roleName string) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if u.RoleName == roleName {
			out = append(out, *u)
		}
	}
	return out, nil
}

var (
	management = authz.Identity{UserID: 1, Username: "boss", Role: authz.RoleManagement}
	commercial = authz.Identity{UserID: 2, Username: "alice", Role: authz.RoleCommercial}
	support    = authz.Identity{UserID: 4, Username: "sam", Role: authz.RoleSupport}
)

func newTestService(repo Repository) *Service {
	engine := authz.NewEngine(authz.NewTable(authz.DefaultMatrix()), nil)
	return NewService(repo, engine, nil, nil)
}

func seedUser(t *testing.T, repo *mockRepository, identity authz.Identity) *User {
	t.Helper()
	u := &User{
		ID:       identity.UserID,
		Username: identity.Username,
		Email:    identity.Username + "@epicevents.example",
		RoleName: string(identity.Role),
	}
	repo.users[u.ID] = u
	if repo.nextID <= u.ID {
		repo.nextID = u.ID + 1
	}
	return u
}

func TestCreateRequiresManagement(t *testing.T) {
	service := newTestService(newMockRepository())

	req := CreateUserRequest{Username: "newbie", Email: "newbie@epicevents.example", Password: "Str0ngPass", Role: "Support"}
	for _, actor := range []authz.Identity{commercial, support} {
		_, err := service.Create(context.Background(), actor, req)
		assert.ErrorIs(t, err, shared.ErrPermissionDenied, "role %s", actor.Role)
	}

	user, err := service.Create(context.Background(), management, req)
	require.NoError(t, err)
	assert.Equal(t, "Support", user.RoleName)
}

func TestCreateEnforcesPasswordPolicy(t *testing.T) {
	service := newTestService(newMockRepository())

	for _, password := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		_, err := service.Create(context.Background(), management, CreateUserRequest{
			Username: "newbie", Email: "newbie@epicevents.example", Password: password, Role: "Support",
		})
		assert.ErrorIs(t, err, shared.ErrValidation, "password %q", password)
	}
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	service := newTestService(newMockRepository())

	_, err := service.Create(context.Background(), management, CreateUserRequest{
		Username: "newbie", Email: "newbie@epicevents.example", Password: "Str0ngPass", Role: "Admin",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateAcceptsLegacySalesRole(t *testing.T) {
	service := newTestService(newMockRepository())

	user, err := service.Create(context.Background(), management, CreateUserRequest{
		Username: "seller", Email: "seller@epicevents.example", Password: "Str0ngPass", Role: "Sales",
	})
	require.NoError(t, err)
	assert.Equal(t, "Commercial", user.RoleName)
}

func TestSelfUpdateProfileAllowed(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, commercial)

	email := "alice.new@epicevents.example"
	updated, err := service.Update(context.Background(), commercial, commercial.UserID, UpdateUserRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
}

func TestSelfRoleChangeDenied(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, commercial)

	role := "Management"
	_, err := service.Update(context.Background(), commercial, commercial.UserID, UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUpdateOtherAccountRequiresManagement(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, support)

	email := "sam.new@epicevents.example"
	_, err := service.Update(context.Background(), commercial, support.UserID, UpdateUserRequest{Email: &email})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	role := "Commercial"
	updated, err := service.Update(context.Background(), management, support.UserID, UpdateUserRequest{Email: &email, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.Equal(t, "Commercial", updated.RoleName)
}

func TestSelfPasswordChangeChecksStrength(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, support)

	weak := "weak"
	_, err := service.Update(context.Background(), support, support.UserID, UpdateUserRequest{Password: &weak})
	assert.ErrorIs(t, err, shared.ErrValidation)

	strong := "N3wStrongPass"
	_, err = service.Update(context.Background(), support, support.UserID, UpdateUserRequest{Password: &strong})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwords[support.UserID])
}

func TestDeleteRequiresManagement(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, support)

	err := service.Delete(context.Background(), commercial, support.UserID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = service.Delete(context.Background(), management, support.UserID)
	require.NoError(t, err)

	err = service.Delete(context.Background(), management, support.UserID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListByRole(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, management)
	seedUser(t, repo, commercial)
	seedUser(t, repo, support)

	list, err := service.ListByRole(context.Background(), management, "Support")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sam", list[0].Username)

	_, err = service.ListByRole(context.Background(), management, "Janitor")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestReadsRestrictedToManagement(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)
	seedUser(t, repo, support)

	_, err := service.Get(context.Background(), commercial, support.UserID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = service.List(context.Background(), support)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}
