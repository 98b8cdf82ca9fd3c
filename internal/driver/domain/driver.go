package domain

import (
	"errors"
	"time"
)

// RoleDriver is the role stored on every driver profile.
const RoleDriver = "driver"

// Driver is the product-side driver profile. AuthUserID links it to exactly
// one identity; at most one profile exists per identity.
type Driver struct {
	ID            string
	AuthUserID    string
	FullName      string
	Email         string
	Phone         string // optional
	LicenseNumber string
	Company       string // optional
	Vehicle       string // optional
	Registration  string // optional
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate validates the profile for persistence. Returns an error describing the first validation failure.
func (d *Driver) Validate() error {
	if d.AuthUserID == "" {
		return errors.New("auth_user_id is required")
	}
	if d.Email == "" {
		return errors.New("email is required")
	}
	if d.FullName == "" {
		return errors.New("full_name is required")
	}
	if d.LicenseNumber == "" {
		return errors.New("license_number is required")
	}
	if d.Role == "" {
		d.Role = RoleDriver
	}
	return nil
}
