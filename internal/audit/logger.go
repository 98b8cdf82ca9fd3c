package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"driver-provisioning/backend/internal/audit/domain"
	auditrepo "driver-provisioning/backend/internal/audit/repository"
)

// SystemActor is recorded when no authenticated caller is present on the context.
const SystemActor = "_system"

// ResourceDriver is the resource name for driver account events.
const ResourceDriver = "driver"

// ContextExtractor returns a value (caller name or client IP) from the request context.
type ContextExtractor func(context.Context) string

// AuditLogger writes a single audit event for a driver account.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, action, targetID, outcome, metadata string)
}

// Logger implements AuditLogger using the audit repository and optional extractors.
type Logger struct {
	repo  auditrepo.Repository
	actor ContextExtractor
	ip    ContextExtractor
}

// NewLogger returns an AuditLogger that persists to repo. actor and ip may be
// nil; then the actor is SystemActor and the IP "unknown".
func NewLogger(repo auditrepo.Repository, actor, ip ContextExtractor) *Logger {
	return &Logger{repo: repo, actor: actor, ip: ip}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, action, targetID, outcome, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ip != nil {
		if v := l.ip(ctx); v != "" {
			ip = v
		}
	}
	actor := SystemActor
	if l.actor != nil {
		if v := l.actor(ctx); v != "" {
			actor = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		Actor:     actor,
		Action:    action,
		Resource:  ResourceDriver,
		TargetID:  targetID,
		Outcome:   outcome,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	// Detach from request cancellation so a client hang-up does not drop the entry.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, targetID, err)
	}
}
