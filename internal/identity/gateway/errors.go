package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an identity service failure.
type Kind string

const (
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindNotPermitted Kind = "not_permitted"
	KindUnavailable  Kind = "unavailable"
	KindUnknown      Kind = "unknown"
)

// Error is a classified identity service failure. Message is the service's
// own message, kept verbatim.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("identity: %s: %s (status=%d)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("identity: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, KindUnknown if err is not an *Error, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUnknown
}

// MessageOf returns the service message carried by err, falling back to err.Error().
func MessageOf(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsNotPermitted(err error) bool { return KindOf(err) == KindNotPermitted }

// classify maps a service response to a Kind. Explicit error codes win, then
// the HTTP status; message matching is the last resort for older service
// versions that only return prose.
func classify(status int, code, message string) Kind {
	switch code {
	case "email_exists", "user_already_exists", "phone_exists", "identity_already_exists":
		return KindConflict
	case "user_not_found", "identity_not_found":
		return KindNotFound
	case "not_admin", "no_authorization", "bad_jwt", "user_banned":
		return KindNotPermitted
	case "over_request_rate_limit", "request_timeout":
		return KindUnavailable
	}
	switch {
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindNotPermitted
	case status == http.StatusTooManyRequests || status >= 500:
		return KindUnavailable
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "already registered"),
		strings.Contains(lower, "already been registered"),
		strings.Contains(lower, "already exists"):
		return KindConflict
	case strings.Contains(lower, "not allowed"), strings.Contains(lower, "permission"):
		return KindNotPermitted
	case strings.Contains(lower, "not found"):
		return KindNotFound
	}
	return KindUnknown
}
