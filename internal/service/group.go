package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/mapper"
	"github.com/idgate/scim-bridge/internal/patch"
	"github.com/idgate/scim-bridge/internal/reconcile"
	"github.com/idgate/scim-bridge/internal/scim"
)

// memberPreviewSize bounds how many members a group carries in list
// responses. Full membership is only resolved on single-group reads.
const memberPreviewSize = 10

// GroupService implements the SCIM group operations.
type GroupService struct {
	dir    directory.Directory
	mapper *mapper.GroupMapper
	engine *patch.Engine
	rec    *reconcile.Reconciler
	mode   patch.Mode
	logger *slog.Logger
}

// NewGroupService creates the group service.
func NewGroupService(dir directory.Directory, m *mapper.GroupMapper, engine *patch.Engine, rec *reconcile.Reconciler, mode patch.Mode, logger *slog.Logger) *GroupService {
	return &GroupService{dir: dir, mapper: m, engine: engine, rec: rec, mode: mode, logger: logger}
}

func memberValues(members []scim.Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if strings.TrimSpace(m.Value) != "" {
			ids = append(ids, m.Value)
		}
	}
	return ids
}

// reread loads the persisted group plus its full membership.
func (s *GroupService) reread(ctx context.Context, id string) (*scim.Group, error) {
	group, err := s.dir.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fault.Internal("group "+id+" missing after write", nil)
	}
	members, err := s.dir.ListGroupMembers(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToSCIM(group, members), nil
}

// Create provisions a new group and converges its membership onto the
// requested member list.
func (s *GroupService) Create(ctx context.Context, sg *scim.Group) (*scim.Group, error) {
	if strings.TrimSpace(sg.DisplayName) == "" {
		return nil, fault.InvalidValue("displayName is required")
	}

	existing, err := s.dir.GetGroupByName(ctx, sg.DisplayName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fault.Uniqueness("group displayName %s is already taken", sg.DisplayName)
	}

	id, err := s.dir.CreateGroup(ctx, s.mapper.ToNative(sg, nil))
	if err != nil {
		return nil, err
	}
	s.logger.Info("created group", "group_id", id, "display_name", sg.DisplayName)

	if ids := memberValues(sg.Members); len(ids) > 0 {
		if err := s.rec.ReplaceGroupMembers(ctx, id, nil, ids); err != nil {
			return nil, err
		}
	}

	return s.reread(ctx, id)
}

// Get returns the group with the given id, including full membership.
func (s *GroupService) Get(ctx context.Context, id string) (*scim.Group, error) {
	group, err := s.dir.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fault.NoTarget("group %s not found", id)
	}
	members, err := s.dir.ListGroupMembers(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToSCIM(group, members), nil
}

// Replace applies full-replacement semantics to the group record and
// reconciles membership toward the request's member list. An absent or
// empty members list clears the group.
func (s *GroupService) Replace(ctx context.Context, id string, sg *scim.Group) (*scim.Group, error) {
	existing, err := s.dir.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fault.NoTarget("group %s not found", id)
	}

	if strings.TrimSpace(sg.DisplayName) != "" && sg.DisplayName != existing.Name {
		other, err := s.dir.GetGroupByName(ctx, sg.DisplayName)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, fault.Uniqueness("group displayName %s is already taken", sg.DisplayName)
		}
	}

	if err := s.dir.UpdateGroup(ctx, id, s.mapper.ToNative(sg, existing)); err != nil {
		return nil, err
	}

	current, err := s.dir.ListGroupMembers(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	currentIDs := make([]string, 0, len(current))
	for _, u := range current {
		currentIDs = append(currentIDs, u.ID)
	}
	if err := s.rec.ReplaceGroupMembers(ctx, id, currentIDs, memberValues(sg.Members)); err != nil {
		return nil, err
	}
	s.logger.Info("replaced group", "group_id", id)

	return s.reread(ctx, id)
}

// Patch applies a SCIM PATCH request to the group. Membership operations
// hit the store as they are applied; record changes persist at most once.
func (s *GroupService) Patch(ctx context.Context, id string, req scim.PatchRequest) (*scim.Group, error) {
	ops, err := patch.ParseGroupOps(req, s.mode)
	if err != nil {
		return nil, err
	}

	group, err := s.dir.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fault.NoTarget("group %s not found", id)
	}

	dirty, err := s.engine.ApplyGroup(ctx, group, ops)
	if err != nil {
		return nil, err
	}
	if dirty {
		if err := s.dir.UpdateGroup(ctx, id, group); err != nil {
			return nil, err
		}
		s.logger.Info("patched group", "group_id", id, "operations", len(ops))
	}

	return s.reread(ctx, id)
}

// Delete removes the group. Membership links disappear with it; member
// users are untouched.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if err := s.dir.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted group", "group_id", id)
	return nil
}

// List returns a page of groups with a bounded member preview per group.
func (s *GroupService) List(ctx context.Context, startIndex, count int, filter string) (*scim.ListResponse, error) {
	offset, limit, normStart := page(startIndex, count)
	term := groupSearchTerm(filter)

	groups, err := s.dir.ListGroups(ctx, offset, limit, term)
	if err != nil {
		return nil, err
	}
	total, err := s.dir.CountGroups(ctx, term)
	if err != nil {
		return nil, err
	}

	resources := make([]any, 0, len(groups))
	for i := range groups {
		members, err := s.dir.ListGroupMembers(ctx, groups[i].ID, 0, memberPreviewSize)
		if err != nil {
			return nil, err
		}
		resources = append(resources, s.mapper.ToSCIM(&groups[i], members))
	}
	return &scim.ListResponse{
		Schemas:      []string{scim.ListResponseSchema},
		TotalResults: total,
		StartIndex:   normStart,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}, nil
}
