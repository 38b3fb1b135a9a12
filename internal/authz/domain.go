// Package authz implements the authorization engine: role permissions
// combined with per-record ownership rules.
package authz

import (
	"fmt"
	"strings"
)

// Role is the closed set of permission groups a user can hold.
type Role string

const (
	RoleManagement Role = "Management"
	RoleCommercial Role = "Commercial"
	RoleSupport    Role = "Support"
)

// ParseRole resolves a stored role name. "Sales" is a legacy alias for
// Commercial kept for older seed data.
func ParseRole(name string) (Role, error) {
	switch strings.TrimSpace(name) {
	case string(RoleManagement):
		return RoleManagement, nil
	case string(RoleCommercial), "Sales":
		return RoleCommercial, nil
	case string(RoleSupport):
		return RoleSupport, nil
	default:
		return "", fmt.Errorf("authz: unknown role %q", name)
	}
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	return r == RoleManagement || r == RoleCommercial || r == RoleSupport
}

// Entity is one of the nouns the system manages.
type Entity string

const (
	EntityUser     Entity = "user"
	EntityClient   Entity = "client"
	EntityContract Entity = "contract"
	EntityEvent    Entity = "event"
)

// Valid reports whether the entity belongs to the closed set.
func (e Entity) Valid() bool {
	switch e {
	case EntityUser, EntityClient, EntityContract, EntityEvent:
		return true
	}
	return false
}

// Action is one of the operations a permission can grant.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether the action belongs to the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Identity describes the authenticated actor.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}

// Grant is a single (entity, action) pair held by a role.
type Grant struct {
	Entity Entity
	Action Action
}

// DefaultMatrix returns the seeded permission table. Management holds every
// grant; Commercial manages clients and contracts and can create events;
// Support reads everything it serves and updates its own events.
func DefaultMatrix() map[Role][]Grant {
	return map[Role][]Grant{
		RoleManagement: {
			{EntityClient, ActionCreate}, {EntityClient, ActionRead}, {EntityClient, ActionUpdate}, {EntityClient, ActionDelete},
			{EntityContract, ActionCreate}, {EntityContract, ActionRead}, {EntityContract, ActionUpdate}, {EntityContract, ActionDelete},
			{EntityEvent, ActionCreate}, {EntityEvent, ActionRead}, {EntityEvent, ActionUpdate}, {EntityEvent, ActionDelete},
			{EntityUser, ActionCreate}, {EntityUser, ActionRead}, {EntityUser, ActionUpdate}, {EntityUser, ActionDelete},
		},
		RoleCommercial: {
			{EntityClient, ActionCreate}, {EntityClient, ActionRead}, {EntityClient, ActionUpdate},
			{EntityContract, ActionCreate}, {EntityContract, ActionRead}, {EntityContract, ActionUpdate},
			{EntityEvent, ActionCreate}, {EntityEvent, ActionRead},
		},
		RoleSupport: {
			{EntityEvent, ActionRead}, {EntityEvent, ActionUpdate},
			{EntityClient, ActionRead},
			{EntityContract, ActionRead},
		},
	}
}
