package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"driver-provisioning/backend/internal/driver/domain"
)

const uniqueViolation = "23505"

const driverColumns = `id, auth_user_id, full_name, email, phone, license_number, company, vehicle, registration, role, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a driver repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the driver for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	d, err := scanDriver(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting driver: %w", err)
	}
	return d, nil
}

// GetByAuthUserID returns the driver linked to authUserID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*domain.Driver, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE auth_user_id = $1`, authUserID)
	d, err := scanDriver(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting driver by auth user: %w", err)
	}
	return d, nil
}

// Upsert writes the profile in one statement keyed on the unique auth_user_id,
// so concurrent calls for the same identity converge on a single row. The id
// of an existing row is kept.
func (r *PostgresRepository) Upsert(ctx context.Context, d *domain.Driver) (*domain.Driver, error) {
	const query = `
		INSERT INTO drivers (` + driverColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (auth_user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			license_number = EXCLUDED.license_number,
			company = EXCLUDED.company,
			vehicle = EXCLUDED.vehicle,
			registration = EXCLUDED.registration,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + driverColumns

	if err := d.Validate(); err != nil {
		return nil, err
	}
	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, query,
		id,
		d.AuthUserID,
		d.FullName,
		d.Email,
		nullString(d.Phone),
		d.LicenseNumber,
		nullString(d.Company),
		nullString(d.Vehicle),
		nullString(d.Registration),
		d.Role,
		now,
		now,
	)
	stored, err := scanDriver(row)
	if err != nil {
		if isPgError(err, uniqueViolation) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("upserting driver: %w", err)
	}
	return stored, nil
}

// DeleteByAuthUserID removes the profile linked to authUserID.
func (r *PostgresRepository) DeleteByAuthUserID(ctx context.Context, authUserID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drivers WHERE auth_user_id = $1`, authUserID); err != nil {
		return fmt.Errorf("deleting driver by auth user: %w", err)
	}
	return nil
}

// DeleteByID removes the profile with the given id.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drivers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting driver: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	var phone, company, vehicle, registration sql.NullString
	err := row.Scan(
		&d.ID,
		&d.AuthUserID,
		&d.FullName,
		&d.Email,
		&phone,
		&d.LicenseNumber,
		&company,
		&vehicle,
		&registration,
		&d.Role,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Phone = phone.String
	d.Company = company.String
	d.Vehicle = vehicle.String
	d.Registration = registration.String
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
