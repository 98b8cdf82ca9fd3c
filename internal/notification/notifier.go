// Package notification runs the credential-setup step after a driver is
// provisioned. It never fails the provisioning call.
package notification

import (
	"context"
	"log/slog"

	"driver-provisioning/backend/internal/audit"
	auditdomain "driver-provisioning/backend/internal/audit/domain"
	"driver-provisioning/backend/internal/mailer"
)

// LinkGenerator produces a single-use credential setup link for an email.
type LinkGenerator interface {
	GenerateCredentialLink(ctx context.Context, email string) (string, error)
}

// Mailer delivers an email message.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Notifier generates the link and, when a mailer is configured, emails it.
type Notifier struct {
	links  LinkGenerator
	mail   Mailer
	audit  audit.AuditLogger
	logger *slog.Logger
}

// NewNotifier returns a Notifier. mail and auditLogger may be nil.
func NewNotifier(links LinkGenerator, mail Mailer, auditLogger audit.AuditLogger, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{links: links, mail: mail, audit: auditLogger, logger: logger}
}

// NotifyCredentialSetup returns the generated link, or "" if generation failed.
// A mail failure is logged and the link is still returned.
func (n *Notifier) NotifyCredentialSetup(ctx context.Context, email, fullName, identityID string) string {
	if n == nil || n.links == nil {
		return ""
	}
	link, err := n.links.GenerateCredentialLink(ctx, email)
	if err != nil {
		n.logger.Warn("credential link generation failed", "auth_user_id", identityID, "email", email, "error", err)
		n.record(ctx, identityID, auditdomain.OutcomeFailure)
		return ""
	}
	if n.mail != nil {
		if err := n.mail.Send(ctx, mailer.CredentialSetupMessage(email, fullName, link)); err != nil {
			n.logger.Warn("credential setup email failed", "auth_user_id", identityID, "email", email, "error", err)
		}
	}
	n.record(ctx, identityID, auditdomain.OutcomeSuccess)
	return link
}

func (n *Notifier) record(ctx context.Context, identityID, outcome string) {
	if n.audit != nil {
		n.audit.LogEvent(ctx, audit.ActionCredential, identityID, outcome, "")
	}
}
