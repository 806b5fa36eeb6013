// Package directory adapts the backing identity store's admin API.
//
// The store is the sole source of truth: this bridge keeps no state of its
// own and relies entirely on the store's per-record atomicity. Calls are
// blocking remote calls with no retry policy; failures surface as faults.
package directory

import "context"

// Directory is the backing identity store's operation surface.
//
// Lookups return (nil, nil) when the resource is absent; only mutations
// translate a missing target into a fault. Multi-call sequences built on
// top of this interface are not transactional.
type Directory interface {
	CreateUser(ctx context.Context, user *User) (string, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]User, error)
	UpdateUser(ctx context.Context, id string, user *User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, offset, limit int, search string) ([]User, error)
	CountUsers(ctx context.Context, search string) (int64, error)

	CreateGroup(ctx context.Context, group *Group) (string, error)
	GetGroupByID(ctx context.Context, id string) (*Group, error)
	GetGroupByName(ctx context.Context, name string) (*Group, error)
	UpdateGroup(ctx context.Context, id string, group *Group) error
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context, offset, limit int, search string) ([]Group, error)
	CountGroups(ctx context.Context, search string) (int64, error)

	// ListGroupMembers returns the group's user members. A limit <= 0
	// fetches all members.
	ListGroupMembers(ctx context.Context, groupID string, offset, limit int) ([]User, error)
	AddGroupMember(ctx context.Context, userID, groupID string) error
	RemoveGroupMember(ctx context.Context, userID, groupID string) error
	ListUserGroups(ctx context.Context, userID string) ([]Group, error)
}
