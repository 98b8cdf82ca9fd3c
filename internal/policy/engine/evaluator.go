package engine

import (
	"context"
)

// AccessInput describes an incoming provisioning request for the access policy.
type AccessInput struct {
	// Authenticated is true when the caller presented a token matching the configured secret.
	Authenticated bool
	// TokenConfigured is true when a caller secret is configured at all.
	TokenConfigured bool
	Environment     string
	Path            string
	Method          string
}

// Evaluator decides whether a caller may reach a provisioning endpoint.
type Evaluator interface {
	// Allow evaluates the access policy for in. A non-nil error means the policy
	// could not be evaluated; callers deny in that case.
	Allow(ctx context.Context, in AccessInput) (bool, error)
}
