package repository

import (
	"context"
	"errors"

	"driver-provisioning/backend/internal/driver/domain"
)

// ErrDuplicate is returned when a write collides with an existing profile for
// the same auth_user_id. Stores with an atomic upsert never return it from Upsert.
var ErrDuplicate = errors.New("driver profile already exists for auth user")

// Repository defines persistence for driver profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Driver, error)
	GetByAuthUserID(ctx context.Context, authUserID string) (*domain.Driver, error)
	// Upsert inserts the profile, or updates every descriptive field of the existing
	// profile with the same AuthUserID. Returns the stored row.
	Upsert(ctx context.Context, d *domain.Driver) (*domain.Driver, error)
	// DeleteByAuthUserID and DeleteByID succeed when no row matches.
	DeleteByAuthUserID(ctx context.Context, authUserID string) error
	DeleteByID(ctx context.Context, id string) error
}
