package repository

import (
	"context"
	"database/sql"
	"errors"

	"driver-provisioning/backend/internal/audit/domain"
)

const auditColumns = `id, actor, action, resource, target_id, outcome, ip, metadata, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id)
	a, err := scanAuditLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListByTarget returns audit logs for the given target (auth user id), newest first.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByTarget(ctx context.Context, targetID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE target_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		targetID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log to the database. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	target := sql.NullString{String: a.TargetID, Valid: a.TargetID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Actor, a.Action, a.Resource, target, a.Outcome, a.IP, meta, a.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s rowScanner) (*domain.AuditLog, error) {
	var (
		a      domain.AuditLog
		target sql.NullString
		meta   sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Actor, &a.Action, &a.Resource, &target, &a.Outcome, &a.IP, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.TargetID = target.String
	a.Metadata = meta.String
	return &a, nil
}
