// Package gateway is the adapter over the external identity service. It owns
// the wire format, the classification of service failures, and the bounded
// lookup of identities by email.
package gateway

import (
	"context"

	"driver-provisioning/backend/internal/identity/domain"
)

// CreateParams is the input for creating an identity. The email is
// confirmed on creation.
type CreateParams struct {
	Email       string
	Password    string
	Metadata    domain.Metadata
	AppMetadata domain.AppMetadata
}

// UpdateParams overwrites the credential and metadata of an existing identity.
type UpdateParams struct {
	Password    string
	Metadata    domain.Metadata
	AppMetadata domain.AppMetadata
}

// Gateway defines the operations the provisioning engines need from the identity service.
// Failures are returned as *Error so callers can branch on Kind.
type Gateway interface {
	Create(ctx context.Context, p CreateParams) (*domain.Identity, error)
	// FindByEmail returns the identity whose email matches case-insensitively, or nil if
	// none was found within the search bound.
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	Update(ctx context.Context, id string, p UpdateParams) error
	Delete(ctx context.Context, id string) error
	// GenerateCredentialLink returns a single-use, time-limited credential setup link.
	GenerateCredentialLink(ctx context.Context, email string) (string, error)
	// CheckAccess verifies that the configured key can use the admin API.
	CheckAccess(ctx context.Context) error
}
