// Package testutil provides shared test helpers, chiefly an in-memory
// Directory fake that mimics the backing store's observable behavior:
// id assignment, username/name uniqueness, ordered membership and
// absent-as-nil lookups.
package testutil

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
)

var _ directory.Directory = (*FakeDirectory)(nil)

// NewID returns a fresh ULID string.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// FakeDirectory is an in-memory Directory. Every mutating and reading call
// is appended to Calls ("AddGroupMember:<uid>:<gid>" style) so tests can
// assert on call minimality, not just final state.
type FakeDirectory struct {
	mu         sync.Mutex
	users      map[string]*directory.User
	groups     map[string]*directory.Group
	membership map[string][]string // groupID -> ordered user ids

	// Calls records every invocation in order.
	Calls []string
	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewFakeDirectory creates an empty fake.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		users:      map[string]*directory.User{},
		groups:     map[string]*directory.Group{},
		membership: map[string][]string{},
	}
}

func (f *FakeDirectory) record(parts ...string) {
	f.Calls = append(f.Calls, strings.Join(parts, ":"))
}

// CallsMatching returns the recorded calls that start with prefix.
func (f *FakeDirectory) CallsMatching(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func copyAttributes(a directory.Attributes) directory.Attributes {
	if a == nil {
		return nil
	}
	out := directory.Attributes{}
	for k, vs := range a {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func copyUser(u *directory.User) *directory.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Attributes = copyAttributes(u.Attributes)
	c.Credentials = append([]directory.Credential(nil), u.Credentials...)
	return &c
}

func copyGroup(g *directory.Group) *directory.Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Attributes = copyAttributes(g.Attributes)
	return &c
}

func (f *FakeDirectory) CreateUser(_ context.Context, user *directory.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateUser", user.Username)
	if f.FailWith != nil {
		return "", f.FailWith
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return "", fault.Uniqueness("user with username %s already exists", user.Username)
		}
	}
	c := copyUser(user)
	c.ID = NewID()
	c.CreatedTimestamp = time.Now().UnixMilli()
	f.users[c.ID] = c
	return c.ID, nil
}

func (f *FakeDirectory) GetUserByID(_ context.Context, id string) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetUserByID", id)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	return copyUser(f.users[id]), nil
}

func (f *FakeDirectory) GetUserByUsername(_ context.Context, username string) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetUserByUsername", username)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	for _, u := range f.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (f *FakeDirectory) FindUsersByEmail(_ context.Context, email string) ([]directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindUsersByEmail", email)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []directory.User
	for _, u := range f.sortedUsers() {
		if strings.EqualFold(u.Email, email) {
			out = append(out, *copyUser(u))
		}
	}
	return out, nil
}

func (f *FakeDirectory) UpdateUser(_ context.Context, id string, user *directory.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateUser", id)
	if f.FailWith != nil {
		return f.FailWith
	}
	existing, ok := f.users[id]
	if !ok {
		return fault.NoTarget("user %s not found", id)
	}
	c := copyUser(user)
	c.ID = id
	c.CreatedTimestamp = existing.CreatedTimestamp
	f.users[id] = c
	return nil
}

func (f *FakeDirectory) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteUser", id)
	if f.FailWith != nil {
		return f.FailWith
	}
	if _, ok := f.users[id]; !ok {
		return fault.NoTarget("user %s not found", id)
	}
	delete(f.users, id)
	for gid, members := range f.membership {
		f.membership[gid] = remove(members, id)
	}
	return nil
}

func (f *FakeDirectory) sortedUsers() []*directory.User {
	out := make([]*directory.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func userMatches(u *directory.User, search string) bool {
	if search == "" {
		return true
	}
	s := strings.ToLower(search)
	for _, field := range []string{u.Username, u.Email, u.FirstName, u.LastName} {
		if strings.Contains(strings.ToLower(field), s) {
			return true
		}
	}
	return false
}

func (f *FakeDirectory) ListUsers(_ context.Context, offset, limit int, search string) ([]directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListUsers", search)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var matched []directory.User
	for _, u := range f.sortedUsers() {
		if userMatches(u, search) {
			matched = append(matched, *copyUser(u))
		}
	}
	return pageSlice(matched, offset, limit), nil
}

func (f *FakeDirectory) CountUsers(_ context.Context, search string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountUsers", search)
	if f.FailWith != nil {
		return 0, f.FailWith
	}
	var n int64
	for _, u := range f.users {
		if userMatches(u, search) {
			n++
		}
	}
	return n, nil
}

func (f *FakeDirectory) CreateGroup(_ context.Context, group *directory.Group) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateGroup", group.Name)
	if f.FailWith != nil {
		return "", f.FailWith
	}
	for _, g := range f.groups {
		if g.Name == group.Name {
			return "", fault.Uniqueness("group named %s already exists", group.Name)
		}
	}
	c := copyGroup(group)
	c.ID = NewID()
	f.groups[c.ID] = c
	f.membership[c.ID] = nil
	return c.ID, nil
}

func (f *FakeDirectory) GetGroupByID(_ context.Context, id string) (*directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetGroupByID", id)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	return copyGroup(f.groups[id]), nil
}

func (f *FakeDirectory) GetGroupByName(_ context.Context, name string) (*directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetGroupByName", name)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	for _, g := range f.groups {
		if g.Name == name {
			return copyGroup(g), nil
		}
	}
	return nil, nil
}

func (f *FakeDirectory) UpdateGroup(_ context.Context, id string, group *directory.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateGroup", id)
	if f.FailWith != nil {
		return f.FailWith
	}
	if _, ok := f.groups[id]; !ok {
		return fault.NoTarget("group %s not found", id)
	}
	c := copyGroup(group)
	c.ID = id
	f.groups[id] = c
	return nil
}

func (f *FakeDirectory) DeleteGroup(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteGroup", id)
	if f.FailWith != nil {
		return f.FailWith
	}
	if _, ok := f.groups[id]; !ok {
		return fault.NoTarget("group %s not found", id)
	}
	delete(f.groups, id)
	delete(f.membership, id)
	return nil
}

func (f *FakeDirectory) sortedGroups() []*directory.Group {
	out := make([]*directory.Group, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *FakeDirectory) ListGroups(_ context.Context, offset, limit int, search string) ([]directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListGroups", search)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var matched []directory.Group
	for _, g := range f.sortedGroups() {
		if search == "" || strings.Contains(strings.ToLower(g.Name), strings.ToLower(search)) {
			matched = append(matched, *copyGroup(g))
		}
	}
	return pageSlice(matched, offset, limit), nil
}

func (f *FakeDirectory) CountGroups(_ context.Context, search string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountGroups", search)
	if f.FailWith != nil {
		return 0, f.FailWith
	}
	var n int64
	for _, g := range f.groups {
		if search == "" || strings.Contains(strings.ToLower(g.Name), strings.ToLower(search)) {
			n++
		}
	}
	return n, nil
}

func (f *FakeDirectory) ListGroupMembers(_ context.Context, groupID string, offset, limit int) ([]directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListGroupMembers", groupID)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []directory.User
	for _, uid := range f.membership[groupID] {
		if u, ok := f.users[uid]; ok {
			out = append(out, *copyUser(u))
		}
	}
	return pageSlice(out, offset, limit), nil
}

func (f *FakeDirectory) AddGroupMember(_ context.Context, userID, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddGroupMember", userID, groupID)
	if f.FailWith != nil {
		return f.FailWith
	}
	if _, ok := f.users[userID]; !ok {
		return fault.NoTarget("user %s not found", userID)
	}
	if _, ok := f.groups[groupID]; !ok {
		return fault.NoTarget("group %s not found", groupID)
	}
	for _, uid := range f.membership[groupID] {
		if uid == userID {
			return nil
		}
	}
	f.membership[groupID] = append(f.membership[groupID], userID)
	return nil
}

func (f *FakeDirectory) RemoveGroupMember(_ context.Context, userID, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveGroupMember", userID, groupID)
	if f.FailWith != nil {
		return f.FailWith
	}
	f.membership[groupID] = remove(f.membership[groupID], userID)
	return nil
}

func (f *FakeDirectory) ListUserGroups(_ context.Context, userID string) ([]directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListUserGroups", userID)
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []directory.Group
	for _, g := range f.sortedGroups() {
		for _, uid := range f.membership[g.ID] {
			if uid == userID {
				out = append(out, *copyGroup(g))
				break
			}
		}
	}
	return out, nil
}

// MemberIDs returns the ordered member ids of a group.
func (f *FakeDirectory) MemberIDs(groupID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.membership[groupID]...)
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func pageSlice[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
