package domain

import "time"

// Outcome values recorded on audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditLog represents an audit event against a driver account.
type AuditLog struct {
	ID        string
	Actor     string
	Action    string
	Resource  string
	TargetID  string
	Outcome   string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
