package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceRole is the role claim carried by an identity service admin key.
const ServiceRole = "service_role"

var (
	// ErrServiceKeyMalformed is returned when the key is not a parseable JWT.
	ErrServiceKeyMalformed = errors.New("service key is not a valid JWT")
	// ErrServiceKeyRole is returned when the key does not carry the service role.
	ErrServiceKeyRole = errors.New("service key does not carry the service_role role")
	// ErrServiceKeyExpired is returned when the key's exp claim is in the past.
	ErrServiceKeyExpired = errors.New("service key has expired")
)

// ServiceKeyClaims are the claims read from an identity service admin key.
type ServiceKeyClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CheckServiceKey inspects the admin key the identity gateway authenticates with.
// The signature belongs to the identity service and is not verified here; the
// check catches a public (anon) key configured by mistake before any request is made.
func CheckServiceKey(key string, now time.Time) (*ServiceKeyClaims, error) {
	claims := &ServiceKeyClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceKeyMalformed, err)
	}
	if claims.Role != ServiceRole {
		return claims, fmt.Errorf("%w: got %q", ErrServiceKeyRole, claims.Role)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return claims, ErrServiceKeyExpired
	}
	return claims, nil
}
