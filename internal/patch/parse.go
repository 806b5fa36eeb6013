package patch

import (
	"sort"
	"strings"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/mapper"
	"github.com/idgate/scim-bridge/internal/scim"
)

const enterprisePrefix = scim.EnterpriseUserSchema + ":"

// normalizeUserPath strips URN prefixes so enterprise and core paths
// resolve through the same attribute names.
func normalizeUserPath(path string) string {
	p := strings.TrimSpace(path)
	if len(p) >= len(enterprisePrefix) && strings.EqualFold(p[:len(enterprisePrefix)], enterprisePrefix) {
		return p[len(enterprisePrefix):]
	}
	const corePrefix = scim.UserSchema + ":"
	if len(p) >= len(corePrefix) && strings.EqualFold(p[:len(corePrefix)], corePrefix) {
		return p[len(corePrefix):]
	}
	return p
}

// boolValue coerces a patch value into a bool. Some identity providers
// send booleans as the strings "True" and "False".
func boolValue(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// unsupported either records a skippable operation (lenient) or rejects
// the request (strict).
func unsupported(mode Mode, ops []Operation, op, path string) ([]Operation, error) {
	if mode == ModeStrict {
		return nil, fault.InvalidPath("unsupported patch operation: %s %q", op, path)
	}
	return append(ops, Operation{Kind: OpUnsupported, Path: op + " " + path}), nil
}

// ParseUserOps normalizes a user PATCH request.
func ParseUserOps(req scim.PatchRequest, mode Mode) ([]Operation, error) {
	if len(req.Operations) == 0 {
		return nil, fault.InvalidSyntax("patch request contains no operations")
	}

	var ops []Operation
	for _, p := range req.Operations {
		opName := strings.ToLower(strings.TrimSpace(p.Op))
		path := normalizeUserPath(p.Path)

		var err error
		switch opName {
		case "add", "replace":
			ops, err = parseUserAssign(ops, opName, path, p.Value, mode)
		case "remove":
			ops, err = parseUserRemove(ops, path, mode)
		default:
			ops, err = unsupported(mode, ops, p.Op, p.Path)
		}
		if err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func parseUserAssign(ops []Operation, opName, path string, value any, mode Mode) ([]Operation, error) {
	lower := strings.ToLower(path)

	// A pathless assign carries a partial resource; expand it into one
	// operation per attribute. Keys are sorted so application order is
	// deterministic.
	if path == "" {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fault.InvalidSyntax("patch operation without path requires an object value")
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var err error
		for _, k := range keys {
			ops, err = parseUserAssign(ops, opName, normalizeUserPath(k), obj[k], mode)
			if err != nil {
				return nil, err
			}
		}
		return ops, nil
	}

	switch {
	case lower == "active":
		b, ok := boolValue(value)
		if !ok {
			return nil, fault.InvalidValue("active requires a boolean value")
		}
		return append(ops, Operation{Kind: OpSetActive, Active: b, Path: path}), nil

	case lower == "username":
		s, ok := stringValue(value)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fault.InvalidValue("userName requires a non-empty string value")
		}
		return append(ops, Operation{Kind: OpSetUsername, Value: s, Path: path}), nil

	case lower == "emails":
		email, err := foldEmails(value)
		if err != nil {
			return nil, err
		}
		return append(ops, Operation{Kind: OpSetEmail, Value: email, Path: path}), nil

	case strings.HasPrefix(lower, "emails["):
		// Filtered form, e.g. emails[type eq "work"].value. The store
		// keeps a single address, so any filter selects it.
		s, ok := stringValue(value)
		if !ok {
			return unsupported(mode, ops, "replace", path)
		}
		return append(ops, Operation{Kind: OpSetEmail, Value: s, Path: path}), nil

	case lower == "groups":
		// User-side membership add: each entry references a group the
		// user joins. A replace would demand the user's full group set,
		// which the bridge does not track; groups are replaced through
		// the group resource.
		if opName != "add" {
			return unsupported(mode, ops, opName, path)
		}
		ids, err := memberIDs(value)
		if err != nil {
			return nil, err
		}
		return append(ops, Operation{Kind: OpAddGroups, Members: ids, Path: path}), nil

	case lower == "name" || strings.HasPrefix(lower, "name."):
		return unsupported(mode, ops, "replace", path)

	case value == nil:
		return append(ops, Operation{Kind: OpClearAttr, Attr: mapper.AttrForPath(path), Path: path}), nil

	default:
		s, ok := stringValue(value)
		if !ok {
			return unsupported(mode, ops, "replace", path)
		}
		if strings.TrimSpace(s) == "" {
			return append(ops, Operation{Kind: OpClearAttr, Attr: mapper.AttrForPath(path), Path: path}), nil
		}
		return append(ops, Operation{Kind: OpSetAttr, Attr: mapper.AttrForPath(path), Value: s, Path: path}), nil
	}
}

func parseUserRemove(ops []Operation, path string, mode Mode) ([]Operation, error) {
	if path == "" {
		return nil, fault.InvalidSyntax("remove operation requires a path")
	}
	lower := strings.ToLower(path)
	switch {
	case lower == "active":
		// Removing active resets it to the attribute default, but a
		// deactivation intent is the only plausible reading here.
		return append(ops, Operation{Kind: OpSetActive, Active: false, Path: path}), nil
	case strings.HasPrefix(lower, "groups["):
		id, ok := memberFilterID(path)
		if !ok {
			return nil, fault.InvalidPath("unparseable groups filter %q", path)
		}
		return append(ops, Operation{Kind: OpRemoveGroups, Members: []string{id}, Path: path}), nil
	case lower == "username", lower == "groups", strings.HasPrefix(lower, "emails"), lower == "name", strings.HasPrefix(lower, "name."):
		return unsupported(mode, ops, "remove", path)
	default:
		return append(ops, Operation{Kind: OpClearAttr, Attr: mapper.AttrForPath(path), Path: path}), nil
	}
}

// foldEmails reduces an emails value (a list of address objects) to the
// primary or first non-blank address.
func foldEmails(value any) (string, error) {
	entries, ok := value.([]any)
	if !ok {
		if single, isObj := value.(map[string]any); isObj {
			entries = []any{single}
		} else {
			return "", fault.InvalidValue("emails requires a list of address objects")
		}
	}
	first := ""
	for _, e := range entries {
		obj, isObj := e.(map[string]any)
		if !isObj {
			continue
		}
		v, _ := stringValue(obj["value"])
		if strings.TrimSpace(v) == "" {
			continue
		}
		if primary, _ := boolValue(obj["primary"]); primary {
			return v, nil
		}
		if first == "" {
			first = v
		}
	}
	if first == "" {
		return "", fault.InvalidValue("emails contains no usable address")
	}
	return first, nil
}

// ParseGroupOps normalizes a group PATCH request.
func ParseGroupOps(req scim.PatchRequest, mode Mode) ([]Operation, error) {
	if len(req.Operations) == 0 {
		return nil, fault.InvalidSyntax("patch request contains no operations")
	}

	var ops []Operation
	for _, p := range req.Operations {
		opName := strings.ToLower(strings.TrimSpace(p.Op))
		path := strings.TrimSpace(p.Path)
		lower := strings.ToLower(path)

		var err error
		switch {
		case path == "" && (opName == "add" || opName == "replace"):
			ops, err = parseGroupResource(ops, p.Value, opName, mode)

		case lower == "displayname" && (opName == "add" || opName == "replace"):
			var s string
			var ok bool
			if s, ok = stringValue(p.Value); !ok || strings.TrimSpace(s) == "" {
				return nil, fault.InvalidValue("displayName requires a non-empty string value")
			}
			ops = append(ops, Operation{Kind: OpReplaceDisplayName, Value: s, Path: path})

		case lower == "externalid" && (opName == "add" || opName == "replace"):
			if p.Value == nil {
				ops = append(ops, Operation{Kind: OpClearAttr, Attr: directory.AttrExternalID, Path: path})
				break
			}
			s, ok := stringValue(p.Value)
			if !ok {
				return nil, fault.InvalidValue("externalId requires a string value")
			}
			ops = append(ops, Operation{Kind: OpSetAttr, Attr: directory.AttrExternalID, Value: s, Path: path})

		case lower == "externalid" && opName == "remove":
			ops = append(ops, Operation{Kind: OpClearAttr, Attr: directory.AttrExternalID, Path: path})

		case lower == "members":
			// A null value clears the attribute: the group keeps no
			// members.
			if p.Value == nil && (opName == "replace" || opName == "remove") {
				ops = append(ops, Operation{Kind: OpReplaceMembers, Path: path})
				break
			}
			var ids []string
			if ids, err = memberIDs(p.Value); err != nil {
				return nil, err
			}
			switch opName {
			case "add":
				ops = append(ops, Operation{Kind: OpAddMembers, Members: ids, Path: path})
			case "remove":
				ops = append(ops, Operation{Kind: OpRemoveMembers, Members: ids, Path: path})
			case "replace":
				ops = append(ops, Operation{Kind: OpReplaceMembers, Members: ids, Path: path})
			default:
				ops, err = unsupported(mode, ops, p.Op, p.Path)
			}

		case strings.HasPrefix(lower, "members[") && opName == "remove":
			id, ok := memberFilterID(path)
			if !ok {
				return nil, fault.InvalidPath("unparseable members filter %q", path)
			}
			ops = append(ops, Operation{Kind: OpRemoveMembers, Members: []string{id}, Path: path})

		default:
			ops, err = unsupported(mode, ops, p.Op, p.Path)
		}
		if err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func parseGroupResource(ops []Operation, value any, opName string, mode Mode) ([]Operation, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fault.InvalidSyntax("patch operation without path requires an object value")
	}
	if v, present := obj["displayName"]; present {
		s, isStr := stringValue(v)
		if !isStr || strings.TrimSpace(s) == "" {
			return nil, fault.InvalidValue("displayName requires a non-empty string value")
		}
		ops = append(ops, Operation{Kind: OpReplaceDisplayName, Value: s, Path: "displayName"})
	}
	if v, present := obj["externalId"]; present {
		if s, isStr := stringValue(v); isStr {
			ops = append(ops, Operation{Kind: OpSetAttr, Attr: directory.AttrExternalID, Value: s, Path: "externalId"})
		}
	}
	if v, present := obj["members"]; present {
		ids, err := memberIDs(v)
		if err != nil {
			return nil, err
		}
		kind := OpReplaceMembers
		if opName == "add" {
			kind = OpAddMembers
		}
		ops = append(ops, Operation{Kind: kind, Members: ids, Path: "members"})
	}
	return ops, nil
}

// memberIDs extracts user ids from a members value: a list of
// {"value": "<id>"} objects, or a single such object.
func memberIDs(value any) ([]string, error) {
	entries, ok := value.([]any)
	if !ok {
		if single, isObj := value.(map[string]any); isObj {
			entries = []any{single}
		} else {
			return nil, fault.InvalidValue("members requires a list of member objects")
		}
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		obj, isObj := e.(map[string]any)
		if !isObj {
			return nil, fault.InvalidValue("member entries must be objects")
		}
		id, _ := stringValue(obj["value"])
		if strings.TrimSpace(id) == "" {
			return nil, fault.InvalidValue("member entries require a value")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// memberFilterID extracts the id from a filtered members path of the form
// members[value eq "<id>"].
func memberFilterID(path string) (string, bool) {
	open := strings.Index(path, "[")
	end := strings.LastIndex(path, "]")
	if open < 0 || end < open {
		return "", false
	}
	expr := path[open+1 : end]
	parts := strings.Fields(expr)
	if len(parts) != 3 || !strings.EqualFold(parts[0], "value") || !strings.EqualFold(parts[1], "eq") {
		return "", false
	}
	id := strings.Trim(parts[2], `"'`)
	if id == "" {
		return "", false
	}
	return id, true
}
