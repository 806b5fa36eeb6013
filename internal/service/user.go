// Package service implements the SCIM resource operations on top of the
// backing identity store: uniqueness checks, mapping, patch application
// and pagination. Handlers stay thin; all provisioning semantics live here.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/mapper"
	"github.com/idgate/scim-bridge/internal/patch"
	"github.com/idgate/scim-bridge/internal/scim"
)

const (
	defaultPageSize = 100
	// maxPageSize caps the count parameter; the admin API degrades badly
	// on unbounded pages.
	maxPageSize = 200
)

// page normalizes SCIM pagination parameters into a store offset/limit.
// startIndex is 1-based per the protocol; anything below 1 is treated as 1.
func page(startIndex, count int) (offset, limit, normStart int) {
	if startIndex < 1 {
		startIndex = 1
	}
	if count <= 0 {
		count = defaultPageSize
	}
	if count > maxPageSize {
		count = maxPageSize
	}
	return startIndex - 1, count, startIndex
}

// UserService implements the SCIM user operations.
type UserService struct {
	dir    directory.Directory
	mapper *mapper.UserMapper
	engine *patch.Engine
	mode   patch.Mode
	logger *slog.Logger
}

// NewUserService creates the user service.
func NewUserService(dir directory.Directory, m *mapper.UserMapper, engine *patch.Engine, mode patch.Mode, logger *slog.Logger) *UserService {
	return &UserService{dir: dir, mapper: m, engine: engine, mode: mode, logger: logger}
}

// reread loads the persisted record after a mutation so the response
// reflects what the store actually holds, not what was sent.
func (s *UserService) reread(ctx context.Context, id string) (*scim.User, error) {
	user, err := s.dir.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.Internal("user "+id+" missing after write", nil)
	}
	return s.mapper.ToSCIM(ctx, user), nil
}

// Create provisions a new user. userName and, when present, the primary
// email must not collide with an existing user; conflicts are detected
// before any write is issued.
func (s *UserService) Create(ctx context.Context, su *scim.User) (*scim.User, error) {
	if strings.TrimSpace(su.UserName) == "" {
		return nil, fault.InvalidValue("userName is required")
	}

	existing, err := s.dir.GetUserByUsername(ctx, su.UserName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fault.Uniqueness("userName %s is already taken", su.UserName)
	}

	if email := mapper.PrimaryEmail(su); email != "" {
		matches, err := s.dir.FindUsersByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return nil, fault.Uniqueness("email %s is already taken", email)
		}
	}

	native := s.mapper.ToNative(su, nil)
	if strings.TrimSpace(su.Password) != "" {
		native.Credentials = []directory.Credential{directory.PasswordCredential(su.Password)}
	}

	id, err := s.dir.CreateUser(ctx, native)
	if err != nil {
		return nil, err
	}
	s.logger.Info("created user", "user_id", id, "username", su.UserName)

	return s.reread(ctx, id)
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, id string) (*scim.User, error) {
	user, err := s.dir.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.NoTarget("user %s not found", id)
	}
	return s.mapper.ToSCIM(ctx, user), nil
}

// Replace applies full-replacement semantics: the stored record is rebuilt
// from the request body and attributes the body omits are cleared.
func (s *UserService) Replace(ctx context.Context, id string, su *scim.User) (*scim.User, error) {
	existing, err := s.dir.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fault.NoTarget("user %s not found", id)
	}

	// Conflict checks only for identifying fields the request changes.
	if strings.TrimSpace(su.UserName) != "" && su.UserName != existing.Username {
		other, err := s.dir.GetUserByUsername(ctx, su.UserName)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, fault.Uniqueness("userName %s is already taken", su.UserName)
		}
	}
	if email := mapper.PrimaryEmail(su); email != "" && email != existing.Email {
		matches, err := s.dir.FindUsersByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if m.ID != id {
				return nil, fault.Uniqueness("email %s is already taken", email)
			}
		}
	}

	native := s.mapper.ToNative(su, existing)
	if err := s.dir.UpdateUser(ctx, id, native); err != nil {
		return nil, err
	}
	s.logger.Info("replaced user", "user_id", id)

	return s.reread(ctx, id)
}

// Patch applies a SCIM PATCH request. The record is persisted only when an
// operation actually changed it; the response is always re-read from the
// store.
func (s *UserService) Patch(ctx context.Context, id string, req scim.PatchRequest) (*scim.User, error) {
	ops, err := patch.ParseUserOps(req, s.mode)
	if err != nil {
		return nil, err
	}

	user, err := s.dir.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.NoTarget("user %s not found", id)
	}

	dirty, err := s.engine.ApplyUser(ctx, user, ops)
	if err != nil {
		return nil, err
	}
	if dirty {
		if err := s.dir.UpdateUser(ctx, id, user); err != nil {
			return nil, err
		}
		s.logger.Info("patched user", "user_id", id, "operations", len(ops))
	}

	return s.reread(ctx, id)
}

// Delete removes the user. Deleting an absent user reports noTarget; the
// operation is not idempotent at the protocol level.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.dir.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted user", "user_id", id)
	return nil
}

// List returns a page of users, optionally narrowed by a filter.
func (s *UserService) List(ctx context.Context, startIndex, count int, filter string) (*scim.ListResponse, error) {
	offset, limit, normStart := page(startIndex, count)
	term := userSearchTerm(filter)

	users, err := s.dir.ListUsers(ctx, offset, limit, term)
	if err != nil {
		return nil, err
	}
	total, err := s.dir.CountUsers(ctx, term)
	if err != nil {
		return nil, err
	}

	resources := make([]any, 0, len(users))
	for i := range users {
		resources = append(resources, s.mapper.ToSCIM(ctx, &users[i]))
	}
	return &scim.ListResponse{
		Schemas:      []string{scim.ListResponseSchema},
		TotalResults: total,
		StartIndex:   normStart,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}, nil
}
