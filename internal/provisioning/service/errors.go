package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a provisioning or deprovisioning failure; the handler maps
// kinds to HTTP statuses.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindConflictRepairFailure Kind = "conflict_repair_failure"
	KindPermission            Kind = "permission"
	KindIdentityService       Kind = "identity_service"
	KindProfileWrite          Kind = "profile_write"
	KindProfileDelete         Kind = "profile_delete"
	KindIdentityDelete        Kind = "identity_delete"
	KindNotFound              Kind = "not_found"
)

// Sentinel errors matched with errors.Is against an *Error of the same kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrConflictRepairFailure = &Error{Kind: KindConflictRepairFailure}
	ErrPermission            = &Error{Kind: KindPermission}
	ErrIdentityService       = &Error{Kind: KindIdentityService}
	ErrProfileWrite          = &Error{Kind: KindProfileWrite}
	ErrProfileDelete         = &Error{Kind: KindProfileDelete}
	ErrIdentityDelete        = &Error{Kind: KindIdentityDelete}
	ErrNotFound              = &Error{Kind: KindNotFound}
)

// Error is a classified engine failure. Target is the email or id the
// operation was acting on. IdentityID is set when an identity is known to
// exist at the point of failure (partial success).
type Error struct {
	Kind       Kind
	Op         string
	Target     string
	Message    string
	IdentityID string
	// Missing lists absent required fields for KindValidation.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " [%s]", e.Target)
	}
	if msg := e.message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func (e *Error) message() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Detail is the human readable reason without kind or op prefixes.
func (e *Error) Detail() string { return e.message() }

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
