package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"driver-provisioning/backend/internal/audit"
	auditdomain "driver-provisioning/backend/internal/audit/domain"
	driverdomain "driver-provisioning/backend/internal/driver/domain"
	driverrepo "driver-provisioning/backend/internal/driver/repository"
	identitydomain "driver-provisioning/backend/internal/identity/domain"
	"driver-provisioning/backend/internal/identity/gateway"
	"driver-provisioning/backend/internal/telemetry"
	eventdomain "driver-provisioning/backend/internal/telemetry/domain"
)

const msgRepairNotFound = "Driver user not found and could not be created"

// IdentityGateway is the minimal identity service surface needed by the engines.
type IdentityGateway interface {
	Create(ctx context.Context, p gateway.CreateParams) (*identitydomain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*identitydomain.Identity, error)
	Update(ctx context.Context, id string, p gateway.UpdateParams) error
	Delete(ctx context.Context, id string) error
}

// ProfileRepo is the minimal driver profile repository needed by the engines.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*driverdomain.Driver, error)
	Upsert(ctx context.Context, d *driverdomain.Driver) (*driverdomain.Driver, error)
	DeleteByAuthUserID(ctx context.Context, authUserID string) error
	DeleteByID(ctx context.Context, id string) error
}

// CredentialNotifier sends the credential-setup notification for a new or
// repaired identity and returns the generated link, or "" when none was produced.
type CredentialNotifier interface {
	NotifyCredentialSetup(ctx context.Context, email, fullName, identityID string) string
}

// Deps are the collaborators shared by Provisioner and Deprovisioner.
// Identities and Profiles are required; the rest may be nil.
type Deps struct {
	Identities IdentityGateway
	Profiles   ProfileRepo
	Notifier   CredentialNotifier
	Audit      audit.AuditLogger
	Events     telemetry.EventEmitter
	Logger     *slog.Logger
	// PermissionErrors reports a not-permitted identity service response as
	// KindPermission instead of KindIdentityService.
	PermissionErrors bool
}

// ProvisionInput is the driver payload. Email, Password, FullName and
// LicenseNumber are required.
type ProvisionInput struct {
	Email         string
	Password      string
	FullName      string
	Phone         string
	LicenseNumber string
	Company       string
	Vehicle       string
	Registration  string
}

// ProvisionResult is the outcome of a successful Provision.
type ProvisionResult struct {
	IdentityID string
	ProfileID  string
	Email      string
	// CredentialLink is the credential setup link, empty if notification was skipped or failed.
	CredentialLink string
	// Repaired is true when the identity already existed and was overwritten.
	Repaired bool
}

// Provisioner creates or repairs a driver's identity and profile.
type Provisioner struct {
	deps    Deps
	metrics *instruments
}

// NewProvisioner returns a Provisioner with the given dependencies.
func NewProvisioner(deps Deps) *Provisioner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Provisioner{deps: deps, metrics: newInstruments()}
}

// Provision makes sure exactly one identity and one profile exist for in.Email,
// carrying the payload's fields. It is safe to repeat and to run concurrently
// for the same email.
func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (res *ProvisionResult, err error) {
	ctx, span := tracer.Start(ctx, "Provisioner.Provision")
	defer func() {
		p.metrics.record(ctx, "provision", err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	in.Email = strings.TrimSpace(in.Email)
	if missing := in.missing(); len(missing) > 0 {
		return nil, &Error{
			Kind:    KindValidation,
			Op:      "provision",
			Message: "Missing required fields: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}
	span.SetAttributes(attribute.String("driver.email", in.Email))

	attrs := identitydomain.Attributes{
		FullName:      in.FullName,
		Phone:         in.Phone,
		LicenseNumber: in.LicenseNumber,
		Company:       in.Company,
		Vehicle:       in.Vehicle,
		Registration:  in.Registration,
	}
	identityID, repaired, err := p.ensureIdentity(ctx, in.Email, in.Password, attrs)
	if err != nil {
		p.auditFailure(ctx, audit.ActionProvision, "", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("driver.auth_user_id", identityID), attribute.Bool("driver.repaired", repaired))

	profile, err := p.upsertProfile(ctx, identityID, in)
	if err != nil {
		p.deps.Logger.Error("driver profile write failed after identity was ensured",
			"auth_user_id", identityID, "email", in.Email, "error", err)
		err = &Error{Kind: KindProfileWrite, Op: "upsert_profile", Target: identityID, IdentityID: identityID, Err: err}
		p.auditFailure(ctx, audit.ActionProvision, identityID, err)
		return nil, err
	}

	res = &ProvisionResult{
		IdentityID: identityID,
		ProfileID:  profile.ID,
		Email:      in.Email,
		Repaired:   repaired,
	}
	if p.deps.Notifier != nil {
		res.CredentialLink = p.deps.Notifier.NotifyCredentialSetup(ctx, in.Email, in.FullName, identityID)
	}

	p.deps.Logger.Info("driver provisioned",
		"auth_user_id", identityID, "driver_id", profile.ID, "repaired", repaired)
	p.auditSuccess(ctx, audit.ActionProvision, identityID, map[string]any{"driver_id": profile.ID, "repaired": repaired})
	event := eventdomain.NewEvent(eventdomain.EventDriverProvisioned, identityID, profile.ID, in.Email)
	event.Repaired = repaired
	telemetry.EmitAsync(p.deps.Events, ctx, event)
	return res, nil
}

// ensureIdentity creates the identity, or on conflict locates and overwrites
// the existing one. It returns the authoritative identity id.
func (p *Provisioner) ensureIdentity(ctx context.Context, email, password string, attrs identitydomain.Attributes) (string, bool, error) {
	meta := identitydomain.NewDriverMetadata(attrs)
	appMeta := identitydomain.DriverAppMetadata()

	created, err := p.deps.Identities.Create(ctx, gateway.CreateParams{
		Email:       email,
		Password:    password,
		Metadata:    meta,
		AppMetadata: appMeta,
	})
	if err == nil {
		return created.ID, false, nil
	}

	if !gateway.IsConflict(err) {
		p.deps.Logger.Error("identity create failed", "email", email, "kind", gateway.KindOf(err), "error", err)
		return "", false, p.identityError("create", email, err)
	}
	p.deps.Logger.Info("driver identity already exists, repairing", "email", email)

	existing, err := p.deps.Identities.FindByEmail(ctx, email)
	if err != nil {
		p.deps.Logger.Error("identity search failed during conflict repair", "email", email, "error", err)
		return "", false, &Error{Kind: KindIdentityService, Op: "search", Target: email, Message: gateway.MessageOf(err), Err: err}
	}
	if existing == nil {
		p.deps.Logger.Warn("conflicting identity not found within search bound", "email", email)
		return "", false, &Error{Kind: KindConflictRepairFailure, Op: "search", Target: email, Message: msgRepairNotFound}
	}

	err = p.deps.Identities.Update(ctx, existing.ID, gateway.UpdateParams{
		Password:    password,
		Metadata:    meta,
		AppMetadata: appMeta,
	})
	if err != nil {
		p.deps.Logger.Error("identity repair failed", "auth_user_id", existing.ID, "email", email, "error", err)
		return "", false, &Error{Kind: KindIdentityService, Op: "repair", Target: existing.ID, Message: gateway.MessageOf(err), Err: err}
	}
	return existing.ID, true, nil
}

// identityError maps a create failure to KindPermission or KindIdentityService,
// keeping the service's message verbatim.
func (p *Provisioner) identityError(op, target string, err error) error {
	kind := KindIdentityService
	if p.deps.PermissionErrors && gateway.IsNotPermitted(err) {
		kind = KindPermission
	}
	return &Error{Kind: kind, Op: op, Target: target, Message: gateway.MessageOf(err), Err: err}
}

// upsertProfile writes the profile keyed by identityID. A duplicate-key report
// from a non-atomic store is retried once, which then takes the update path.
func (p *Provisioner) upsertProfile(ctx context.Context, identityID string, in ProvisionInput) (*driverdomain.Driver, error) {
	profile := &driverdomain.Driver{
		AuthUserID:    identityID,
		FullName:      in.FullName,
		Email:         in.Email,
		Phone:         in.Phone,
		LicenseNumber: in.LicenseNumber,
		Company:       in.Company,
		Vehicle:       in.Vehicle,
		Registration:  in.Registration,
		Role:          driverdomain.RoleDriver,
	}
	stored, err := p.deps.Profiles.Upsert(ctx, profile)
	if errors.Is(err, driverrepo.ErrDuplicate) {
		p.deps.Logger.Warn("profile upsert raced, retrying", "auth_user_id", identityID)
		stored, err = p.deps.Profiles.Upsert(ctx, profile)
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (in *ProvisionInput) missing() []string {
	var missing []string
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if in.FullName == "" {
		missing = append(missing, "fullName")
	}
	if in.LicenseNumber == "" {
		missing = append(missing, "licenseNumber")
	}
	return missing
}

func (p *Provisioner) auditSuccess(ctx context.Context, action, targetID string, meta map[string]any) {
	logAudit(p.deps.Audit, ctx, action, targetID, auditdomain.OutcomeSuccess, meta)
}

func (p *Provisioner) auditFailure(ctx context.Context, action, targetID string, err error) {
	logAudit(p.deps.Audit, ctx, action, targetID, auditdomain.OutcomeFailure, map[string]any{"kind": KindOf(err), "error": err.Error()})
}

func logAudit(l audit.AuditLogger, ctx context.Context, action, targetID, outcome string, meta map[string]any) {
	if l == nil {
		return
	}
	var metadata string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metadata = string(b)
		}
	}
	l.LogEvent(ctx, action, targetID, outcome, metadata)
}
