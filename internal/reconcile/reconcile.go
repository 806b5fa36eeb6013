// Package reconcile converges group membership in the backing store toward
// a desired member set using the minimal number of membership calls.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
)

// Reconciler diffs and applies group membership changes.
type Reconciler struct {
	dir    directory.Directory
	logger *slog.Logger
}

// New creates a membership reconciler.
func New(dir directory.Directory, logger *slog.Logger) *Reconciler {
	return &Reconciler{dir: dir, logger: logger}
}

// ReplaceGroupMembers makes the group's membership equal to desired.
// Members present but not desired are removed first, then missing members
// are added. Each added user is looked up before the add; a reference to a
// nonexistent user aborts the run. Applied changes are not rolled back on a
// later failure, matching the store's lack of transactions.
func (r *Reconciler) ReplaceGroupMembers(ctx context.Context, groupID string, current, desired []string) error {
	want := make(map[string]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
	}

	for _, id := range current {
		if want[id] {
			continue
		}
		if err := r.dir.RemoveGroupMember(ctx, id, groupID); err != nil {
			return err
		}
		r.logger.Debug("removed group member", "group_id", groupID, "user_id", id)
	}

	for _, id := range desired {
		if have[id] {
			continue
		}
		user, err := r.dir.GetUserByID(ctx, id)
		if err != nil {
			return err
		}
		if user == nil {
			return fault.InvalidValue("member %s does not reference an existing user", id)
		}
		if err := r.dir.AddGroupMember(ctx, id, groupID); err != nil {
			return err
		}
		r.logger.Debug("added group member", "group_id", groupID, "user_id", id)
	}

	return nil
}
