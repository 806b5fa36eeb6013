// Package fault defines the domain fault taxonomy for the bridge.
//
// The core raises typed faults only; the HTTP layer owns the single table
// translating a fault kind into a status code and SCIM error body.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a fault.
type Kind int

const (
	// KindInternal covers backing-store call failures and re-read misses.
	KindInternal Kind = iota
	// KindInvalidSyntax covers malformed request bodies, e.g. a patch
	// request without Operations.
	KindInvalidSyntax
	// KindInvalidValue covers wrong value types for a targeted attribute
	// and references to resources that do not exist.
	KindInvalidValue
	// KindUniqueness covers duplicate userName, displayName or primary email.
	KindUniqueness
	// KindNoTarget covers a missing resource id on get/replace/patch/delete.
	KindNoTarget
)

// Fault is a typed domain error carrying a SCIM error classification.
type Fault struct {
	Kind   Kind
	Detail string

	// scimType overrides the kind's default SCIM error type when set.
	scimType string
	err      error
}

func (f *Fault) Error() string {
	if f.err != nil {
		return f.Detail + ": " + f.err.Error()
	}
	return f.Detail
}

func (f *Fault) Unwrap() error { return f.err }

// ScimType returns the SCIM error type string for this fault.
func (f *Fault) ScimType() string {
	if f.scimType != "" {
		return f.scimType
	}
	switch f.Kind {
	case KindInvalidSyntax:
		return "invalidSyntax"
	case KindInvalidValue:
		return "invalidValue"
	case KindUniqueness:
		return "uniqueness"
	case KindNoTarget:
		return "noTarget"
	default:
		return "internalServerError"
	}
}

// InvalidSyntax returns a fault for a malformed request body.
func InvalidSyntax(detail string) *Fault {
	return &Fault{Kind: KindInvalidSyntax, Detail: detail}
}

// InvalidValue returns a fault for a bad attribute value or missing referent.
func InvalidValue(format string, args ...any) *Fault {
	return &Fault{Kind: KindInvalidValue, Detail: fmt.Sprintf(format, args...)}
}

// InvalidPath returns a 400-class fault with the invalidPath SCIM type,
// raised in strict patch mode for unrecognized operation paths.
func InvalidPath(format string, args ...any) *Fault {
	return &Fault{Kind: KindInvalidValue, Detail: fmt.Sprintf(format, args...), scimType: "invalidPath"}
}

// Uniqueness returns a conflict fault for a duplicate identifying field.
func Uniqueness(format string, args ...any) *Fault {
	return &Fault{Kind: KindUniqueness, Detail: fmt.Sprintf(format, args...)}
}

// NoTarget returns a not-found fault for a missing resource id.
func NoTarget(format string, args ...any) *Fault {
	return &Fault{Kind: KindNoTarget, Detail: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected backing-store failure.
func Internal(detail string, err error) *Fault {
	return &Fault{Kind: KindInternal, Detail: detail, err: err}
}

// KindOf extracts the fault kind from an error chain.
// Errors that are not faults classify as internal.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// As extracts a Fault from an error chain, wrapping non-fault errors
// as internal so callers always get a usable fault.
func As(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Kind: KindInternal, Detail: "internal error", err: err}
}
