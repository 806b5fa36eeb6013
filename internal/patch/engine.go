package patch

import (
	"context"
	"log/slog"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/reconcile"
)

// Engine applies parsed operations to native records. Record mutations are
// accumulated in memory and reported through the dirty flag so the caller
// persists at most once; membership operations hit the store immediately.
type Engine struct {
	dir    directory.Directory
	rec    *reconcile.Reconciler
	logger *slog.Logger
}

// NewEngine creates a patch engine.
func NewEngine(dir directory.Directory, rec *reconcile.Reconciler, logger *slog.Logger) *Engine {
	return &Engine{dir: dir, rec: rec, logger: logger}
}

// ApplyUser applies user operations to the record in place and reports
// whether the record changed.
func (e *Engine) ApplyUser(ctx context.Context, user *directory.User, ops []Operation) (bool, error) {
	dirty := false
	for _, op := range ops {
		switch op.Kind {
		case OpSetActive:
			if user.Enabled != op.Active {
				user.Enabled = op.Active
				dirty = true
			}

		case OpSetUsername:
			if user.Username == op.Value {
				continue
			}
			other, err := e.dir.GetUserByUsername(ctx, op.Value)
			if err != nil {
				return dirty, err
			}
			if other != nil && other.ID != user.ID {
				return dirty, fault.Uniqueness("userName %s is already taken", op.Value)
			}
			user.Username = op.Value
			dirty = true

		case OpSetEmail:
			if user.Email != op.Value {
				user.Email = op.Value
				user.EmailVerified = op.Value != ""
				dirty = true
			}

		case OpSetAttr:
			if user.Attributes == nil {
				user.Attributes = directory.Attributes{}
			}
			if user.Attributes.First(op.Attr) != op.Value {
				user.Attributes.Set(op.Attr, op.Value)
				dirty = true
			}

		case OpClearAttr:
			if user.Attributes.Clear(op.Attr) {
				dirty = true
			}

		case OpAddGroups:
			for _, id := range op.Members {
				group, err := e.dir.GetGroupByID(ctx, id)
				if err != nil {
					return dirty, err
				}
				if group == nil {
					return dirty, fault.InvalidValue("group %s does not exist", id)
				}
				if err := e.dir.AddGroupMember(ctx, user.ID, id); err != nil {
					return dirty, err
				}
			}

		case OpRemoveGroups:
			for _, id := range op.Members {
				if err := e.dir.RemoveGroupMember(ctx, user.ID, id); err != nil {
					return dirty, err
				}
			}

		case OpUnsupported:
			e.logger.Debug("skipping unsupported patch operation", "user_id", user.ID, "op", op.Path)

		default:
			e.logger.Debug("skipping patch operation not applicable to users", "user_id", user.ID, "op", op.Path)
		}
	}
	return dirty, nil
}

// ApplyGroup applies group operations. Record field changes are reported
// through dirty; membership changes are issued against the store directly
// and do not mark the record dirty.
func (e *Engine) ApplyGroup(ctx context.Context, group *directory.Group, ops []Operation) (bool, error) {
	dirty := false
	for _, op := range ops {
		switch op.Kind {
		case OpReplaceDisplayName:
			if group.Name == op.Value {
				continue
			}
			other, err := e.dir.GetGroupByName(ctx, op.Value)
			if err != nil {
				return dirty, err
			}
			if other != nil && other.ID != group.ID {
				return dirty, fault.Uniqueness("group displayName %s is already taken", op.Value)
			}
			group.Name = op.Value
			dirty = true

		case OpSetAttr:
			if group.Attributes == nil {
				group.Attributes = directory.Attributes{}
			}
			if group.Attributes.First(op.Attr) != op.Value {
				group.Attributes.Set(op.Attr, op.Value)
				dirty = true
			}

		case OpClearAttr:
			if group.Attributes.Clear(op.Attr) {
				dirty = true
			}

		case OpAddMembers:
			for _, id := range op.Members {
				user, err := e.dir.GetUserByID(ctx, id)
				if err != nil {
					return dirty, err
				}
				if user == nil {
					return dirty, fault.InvalidValue("member %s does not reference an existing user", id)
				}
				if err := e.dir.AddGroupMember(ctx, id, group.ID); err != nil {
					return dirty, err
				}
			}

		case OpRemoveMembers:
			for _, id := range op.Members {
				if err := e.dir.RemoveGroupMember(ctx, id, group.ID); err != nil {
					return dirty, err
				}
			}

		case OpReplaceMembers:
			current, err := e.dir.ListGroupMembers(ctx, group.ID, 0, 0)
			if err != nil {
				return dirty, err
			}
			currentIDs := make([]string, 0, len(current))
			for _, u := range current {
				currentIDs = append(currentIDs, u.ID)
			}
			if err := e.rec.ReplaceGroupMembers(ctx, group.ID, currentIDs, op.Members); err != nil {
				return dirty, err
			}

		case OpUnsupported:
			e.logger.Debug("skipping unsupported patch operation", "group_id", group.ID, "op", op.Path)

		default:
			e.logger.Debug("skipping patch operation not applicable to groups", "group_id", group.ID, "op", op.Path)
		}
	}
	return dirty, nil
}
