package domain

import "time"

// Role and provider tags stamped on every driver identity.
const (
	RoleDriver     = "driver"
	ProviderDriver = "driver"
	ProviderEmail  = "email"
)

// Identity is a driver's login identity as held by the identity service.
// The ID is assigned by the service and never changes.
type Identity struct {
	ID          string
	Email       string
	Metadata    Metadata
	AppMetadata AppMetadata
	CreatedAt   time.Time
}

// Metadata is the user_metadata bag kept on the identity. Optional fields are
// nil when not provided so they serialize as JSON null.
type Metadata struct {
	Provider      string  `json:"provider"`
	Role          string  `json:"role"`
	FullName      string  `json:"full_name"`
	Phone         *string `json:"phone"`
	LicenseNumber string  `json:"license_number"`
	Company       *string `json:"company"`
	Vehicle       *string `json:"vehicle"`
	Registration  *string `json:"registration"`
	EmailVerified bool    `json:"email_verified"`
}

// AppMetadata is the provider/linking tag written to app_metadata.
type AppMetadata struct {
	Provider  string   `json:"provider"`
	Providers []string `json:"providers"`
}

// Attributes are the descriptive driver fields shared by the identity
// metadata and the profile row.
type Attributes struct {
	FullName      string
	Phone         string
	LicenseNumber string
	Company       string
	Vehicle       string
	Registration  string
}

// NewDriverMetadata builds the fixed metadata shape for a driver. Email
// verification is always forced true.
func NewDriverMetadata(a Attributes) Metadata {
	return Metadata{
		Provider:      ProviderDriver,
		Role:          RoleDriver,
		FullName:      a.FullName,
		Phone:         optional(a.Phone),
		LicenseNumber: a.LicenseNumber,
		Company:       optional(a.Company),
		Vehicle:       optional(a.Vehicle),
		Registration:  optional(a.Registration),
		EmailVerified: true,
	}
}

// DriverAppMetadata returns the provider tags linking the identity to the driver product.
func DriverAppMetadata() AppMetadata {
	return AppMetadata{Provider: ProviderEmail, Providers: []string{ProviderEmail, ProviderDriver}}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
