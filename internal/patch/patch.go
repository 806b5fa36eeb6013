// Package patch parses SCIM PATCH requests into a closed set of operations
// and applies them to native records.
//
// Identity providers disagree wildly on PATCH dialects (filtered paths,
// whole-resource values, stringly-typed booleans), so parsing normalizes
// everything into the Operation variants below and the engine only ever
// deals with those.
package patch

import (
	"github.com/idgate/scim-bridge/internal/directory"
)

// Mode selects how unrecognized operation paths are handled.
type Mode string

const (
	// ModeLenient logs and skips operations the bridge cannot apply.
	// This is the default; large IdPs routinely send attributes the
	// backing store has no home for.
	ModeLenient Mode = "lenient"
	// ModeStrict rejects the whole request on the first unsupported
	// operation.
	ModeStrict Mode = "strict"
)

// OpKind enumerates the operations the bridge can apply.
type OpKind int

const (
	// OpUnsupported marks an operation the parser recognized as
	// well-formed but cannot apply. Only produced in lenient mode.
	OpUnsupported OpKind = iota
	OpSetActive
	OpSetUsername
	OpSetEmail
	OpSetAttr
	OpClearAttr
	OpReplaceDisplayName
	OpAddMembers
	OpRemoveMembers
	OpReplaceMembers
	// OpAddGroups and OpRemoveGroups are the user-side view of group
	// membership: some identity providers patch the user's groups
	// attribute instead of the group's members.
	OpAddGroups
	OpRemoveGroups
)

// Operation is one normalized patch operation.
type Operation struct {
	Kind OpKind

	// Attr is set for OpSetAttr and OpClearAttr.
	Attr directory.Attr
	// Value is set for OpSetUsername, OpSetEmail, OpSetAttr and
	// OpReplaceDisplayName.
	Value string
	// Active is set for OpSetActive.
	Active bool
	// Members carries user ids for the group membership operations and
	// group ids for the user-side OpAddGroups/OpRemoveGroups.
	Members []string

	// Path preserves the request path for diagnostics.
	Path string
}
