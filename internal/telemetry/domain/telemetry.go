package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted for driver account lifecycle changes.
const (
	EventDriverProvisioned   = "driver.provisioned"
	EventDriverDeprovisioned = "driver.deprovisioned"
)

// Source is the producer name stamped on every event.
const Source = "driver-provisioning"

// Event is a driver lifecycle event (JSON on Kafka, attributes on OTel logs).
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Source     string `json:"source"`
	AuthUserID string `json:"auth_user_id,omitempty"`
	DriverID   string `json:"driver_id,omitempty"`
	Email      string `json:"email,omitempty"`
	// Repaired is true when provisioning reused an identity found through conflict repair.
	Repaired   bool      `json:"repaired,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent returns an event of type eventType with a fresh id and the current UTC time.
func NewEvent(eventType, authUserID, driverID, email string) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Source:     Source,
		AuthUserID: authUserID,
		DriverID:   driverID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}
