package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetworks/fleet-api/internal/domain"
)

type DriverRepository interface {
	// EnsureForUser creates the driver profile owned by the user when none
	// exists yet. Safe to call repeatedly; the user_id unique constraint
	// keeps the relation 1:1.
	EnsureForUser(ctx context.Context, userID int64) (*domain.Driver, error)
	FindByUserID(ctx context.Context, userID int64) (*domain.Driver, error)
	Update(ctx context.Context, userID int64, patch DriverPatch) (*domain.Driver, error)
	AssignVehicle(ctx context.Context, driverUserID, vehicleID, assignedBy int64) (*domain.Driver, error)
	List(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error)
}

type DriverPatch struct {
	LicenseNumber  *string
	LicenseExpiry  *time.Time
	Address        *string
	Experience     *string
	LicenseFileURL *string
}

type driverRepository struct {
	pool *pgxpool.Pool
}

func NewDriverRepository(pool *pgxpool.Pool) DriverRepository {
	return &driverRepository{pool: pool}
}

const driverCols = `id, user_id, license_number, license_expiry, address, experience, license_file, assigned_vehicle, assigned_by`

func scanDriver(row pgx.Row) (*domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(
		&d.ID, &d.UserID, &d.LicenseNumber, &d.LicenseExpiry, &d.Address,
		&d.Experience, &d.LicenseFileURL, &d.AssignedVehicleID, &d.AssignedByID,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *driverRepository) EnsureForUser(ctx context.Context, userID int64) (*domain.Driver, error) {
	const q = `
		INSERT INTO drivers (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return nil, err
	}

	return r.FindByUserID(ctx, userID)
}

func (r *driverRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Driver, error) {
	const q = `SELECT ` + driverCols + ` FROM drivers WHERE user_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDriver(r.pool.QueryRow(ctx, q, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *driverRepository) Update(ctx context.Context, userID int64, patch DriverPatch) (*domain.Driver, error) {
	const q = `
		UPDATE drivers
		SET
			license_number = COALESCE($2, license_number),
			license_expiry = COALESCE($3, license_expiry),
			address = COALESCE($4, address),
			experience = COALESCE($5, experience),
			license_file = COALESCE($6, license_file)
		WHERE user_id = $1
		RETURNING ` + driverCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDriver(r.pool.QueryRow(ctx, q, userID,
		patch.LicenseNumber, patch.LicenseExpiry, patch.Address, patch.Experience, patch.LicenseFileURL,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *driverRepository) AssignVehicle(ctx context.Context, driverUserID, vehicleID, assignedBy int64) (*domain.Driver, error) {
	// The driver is located by its owning user id, not the driver row id.
	const q = `
		UPDATE drivers
		SET assigned_vehicle = $2, assigned_by = $3
		WHERE user_id = $1
		RETURNING ` + driverCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDriver(r.pool.QueryRow(ctx, q, driverUserID, vehicleID, assignedBy))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *driverRepository) List(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT u.id, u.first_name, u.last_name, u.email, u.mobile, u.dob, u.profile_pic, u.roles,
		       d.license_number, d.license_expiry, d.address, d.experience, d.license_file, d.assigned_vehicle
		FROM drivers d
		JOIN users u ON u.id = d.user_id
		ORDER BY d.id
		LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.DriverProfile
	for rows.Next() {
		var p domain.DriverProfile
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Mobile, &p.DOB, &p.ProfilePicURL, &p.Roles,
			&p.LicenseNumber, &p.LicenseExpiry, &p.Address, &p.Experience, &p.LicenseFileURL, &p.AssignedVehicleID,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}
