package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"driver-provisioning/backend/internal/audit"
	auditdomain "driver-provisioning/backend/internal/audit/domain"
	"driver-provisioning/backend/internal/identity/gateway"
	"driver-provisioning/backend/internal/telemetry"
	eventdomain "driver-provisioning/backend/internal/telemetry/domain"
)

// Stages reported on deprovisioning failures.
const (
	StageProfile  = "profile"
	StageIdentity = "identity"
)

// DeprovisionInput names the driver to remove. At least one id is required;
// IdentityID wins when both are set.
type DeprovisionInput struct {
	IdentityID string
	ProfileID  string
}

// DeprovisionResult is the outcome of a successful Deprovision.
type DeprovisionResult struct {
	IdentityID string
	// IdentityAlreadyAbsent is true when the identity service no longer had the identity.
	IdentityAlreadyAbsent bool
}

// Deprovisioner removes a driver's profile and then the identity.
type Deprovisioner struct {
	deps    Deps
	metrics *instruments
}

// NewDeprovisioner returns a Deprovisioner with the given dependencies. Notifier and
// PermissionErrors are not used.
func NewDeprovisioner(deps Deps) *Deprovisioner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Deprovisioner{deps: deps, metrics: newInstruments()}
}

// Deprovision deletes the profile first, then the identity. The profile delete
// is fatal on failure; an identity that is already gone counts as deleted. An
// identity delete failure leaves the profile deleted.
func (d *Deprovisioner) Deprovision(ctx context.Context, in DeprovisionInput) (res *DeprovisionResult, err error) {
	ctx, span := tracer.Start(ctx, "Deprovisioner.Deprovision")
	defer func() {
		d.metrics.record(ctx, "deprovision", err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	identityID := strings.TrimSpace(in.IdentityID)
	profileID := strings.TrimSpace(in.ProfileID)
	if identityID == "" && profileID == "" {
		return nil, &Error{
			Kind:    KindValidation,
			Op:      "deprovision",
			Message: "Missing auth_user_id or driver_id",
			Missing: []string{"auth_user_id", "driver_id"},
		}
	}

	resolved := identityID == ""
	if resolved {
		identityID, err = d.resolveIdentity(ctx, profileID)
		if err != nil {
			logAudit(d.deps.Audit, ctx, audit.ActionDeprovision, "", auditdomain.OutcomeFailure, map[string]any{"driver_id": profileID, "kind": KindOf(err)})
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("driver.auth_user_id", identityID))

	if err := d.deleteProfile(ctx, identityID, profileID, resolved); err != nil {
		d.deps.Logger.Error("driver profile delete failed", "auth_user_id", identityID, "error", err)
		err = &Error{Kind: KindProfileDelete, Op: "delete_profile", Target: identityID, Message: "Failed to delete driver record: " + err.Error(), Err: err}
		logAudit(d.deps.Audit, ctx, audit.ActionDeprovision, identityID, auditdomain.OutcomeFailure, map[string]any{"stage": StageProfile})
		return nil, err
	}

	res = &DeprovisionResult{IdentityID: identityID}
	if err := d.deps.Identities.Delete(ctx, identityID); err != nil {
		if !gateway.IsNotFound(err) {
			d.deps.Logger.Error("identity delete failed after profile delete", "auth_user_id", identityID, "error", err)
			err = &Error{
				Kind:       KindIdentityDelete,
				Op:         "delete_identity",
				Target:     identityID,
				IdentityID: identityID,
				Message:    "Driver record deleted but failed to delete auth user: " + gateway.MessageOf(err),
				Err:        err,
			}
			logAudit(d.deps.Audit, ctx, audit.ActionDeprovision, identityID, auditdomain.OutcomeFailure, map[string]any{"stage": StageIdentity})
			return nil, err
		}
		d.deps.Logger.Info("identity already absent", "auth_user_id", identityID)
		res.IdentityAlreadyAbsent = true
	}

	d.deps.Logger.Info("driver deprovisioned", "auth_user_id", identityID, "identity_already_absent", res.IdentityAlreadyAbsent)
	logAudit(d.deps.Audit, ctx, audit.ActionDeprovision, identityID, auditdomain.OutcomeSuccess, map[string]any{"identity_already_absent": res.IdentityAlreadyAbsent})
	telemetry.EmitAsync(d.deps.Events, ctx, eventdomain.NewEvent(eventdomain.EventDriverDeprovisioned, identityID, profileID, ""))
	return res, nil
}

// deleteProfile removes the resolved profile row by its own id, or every
// profile linked to identityID when the caller named the identity.
func (d *Deprovisioner) deleteProfile(ctx context.Context, identityID, profileID string, resolved bool) error {
	if resolved {
		return d.deps.Profiles.DeleteByID(ctx, profileID)
	}
	return d.deps.Profiles.DeleteByAuthUserID(ctx, identityID)
}

// resolveIdentity looks up the identity id through the profile. A lookup
// failure is reported at the profile stage.
func (d *Deprovisioner) resolveIdentity(ctx context.Context, profileID string) (string, error) {
	profile, err := d.deps.Profiles.GetByID(ctx, profileID)
	if err != nil {
		d.deps.Logger.Error("driver profile lookup failed", "driver_id", profileID, "error", err)
		return "", &Error{Kind: KindProfileDelete, Op: "lookup_profile", Target: profileID, Message: "Failed to look up driver record: " + err.Error(), Err: err}
	}
	if profile == nil || profile.AuthUserID == "" {
		return "", &Error{Kind: KindNotFound, Op: "lookup_profile", Target: profileID, Message: "Driver not found"}
	}
	return profile.AuthUserID, nil
}
