package service

import "strings"

// Filter handling is deliberately shallow: the backing store's list
// endpoints accept a single free-text search term, so the supported
// single-clause filters are folded down to their value and everything else
// is passed through verbatim as a search term rather than rejected.

// userSearchTerm folds a SCIM user filter into a store search term.
func userSearchTerm(filter string) string {
	attr, op, value, ok := splitFilter(filter)
	if !ok {
		return strings.TrimSpace(filter)
	}
	switch strings.ToLower(attr) {
	case "username", "email", "emails.value", "externalid", "displayname":
		if op == "eq" || op == "co" || op == "sw" {
			return value
		}
	}
	return strings.TrimSpace(filter)
}

// groupSearchTerm folds a SCIM group filter into a store search term.
func groupSearchTerm(filter string) string {
	attr, op, value, ok := splitFilter(filter)
	if !ok {
		return strings.TrimSpace(filter)
	}
	switch strings.ToLower(attr) {
	case "displayname", "externalid":
		if op == "eq" || op == "co" || op == "sw" {
			return value
		}
	}
	return strings.TrimSpace(filter)
}

// splitFilter parses a single-clause filter of the form
//
//	attr op "value"
//
// and reports whether the input had that shape.
func splitFilter(filter string) (attr, op, value string, ok bool) {
	f := strings.TrimSpace(filter)
	if f == "" {
		return "", "", "", false
	}
	fields := strings.SplitN(f, " ", 3)
	if len(fields) != 3 {
		return "", "", "", false
	}
	attr = fields[0]
	op = strings.ToLower(fields[1])
	value = strings.TrimSpace(fields[2])
	value = strings.Trim(value, `"`)
	if attr == "" || value == "" {
		return "", "", "", false
	}
	return attr, op, value, true
}
