package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetworks/fleet-api/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, id int64, patch UserPatch) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	ListWithDrivers(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error)
}

// UserPatch carries partial updates; nil fields keep the stored value.
type UserPatch struct {
	FirstName     *string
	LastName      *string
	Email         *string
	Mobile        *string
	DOB           *time.Time
	ProfilePicURL *string
	Roles         []string
	PasswordHash  *string
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, first_name, last_name, email, password_hash, mobile, dob, profile_pic, roles, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Mobile, &u.DOB, &u.ProfilePicURL, &u.Roles, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	const q = `
		INSERT INTO users (first_name, last_name, email, password_hash, mobile, dob, profile_pic, roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := scanUser(r.pool.QueryRow(ctx, q,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Mobile, u.DOB, u.ProfilePicURL, u.Roles,
	))
	if err != nil {
		if uniqueViolation(err, "users_email") {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	return created, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, email))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) Update(ctx context.Context, id int64, patch UserPatch) (*domain.User, error) {
	const q = `
		UPDATE users
		SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			email = COALESCE($4, email),
			mobile = COALESCE($5, mobile),
			dob = COALESCE($6, dob),
			profile_pic = COALESCE($7, profile_pic),
			roles = COALESCE($8, roles),
			password_hash = COALESCE($9, password_hash),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, id,
		patch.FirstName, patch.LastName, patch.Email, patch.Mobile,
		patch.DOB, patch.ProfilePicURL, patch.Roles, patch.PasswordHash,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil && uniqueViolation(err, "users_email") {
		return nil, domain.ErrEmailTaken
	}
	return u, err
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, passwordHash)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	// The driver row, if any, goes with the user via ON DELETE CASCADE.
	const q = `DELETE FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *userRepository) ListWithDrivers(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT u.id, u.first_name, u.last_name, u.email, u.mobile, u.dob, u.profile_pic, u.roles,
		       d.license_number, d.license_expiry, d.address, d.experience, d.license_file, d.assigned_vehicle
		FROM users u
		LEFT JOIN drivers d ON d.user_id = u.id
		ORDER BY u.created_at DESC
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
		var licenseNumber, address, experience, licenseFile *string
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Mobile, &p.DOB, &p.ProfilePicURL, &p.Roles,
			&licenseNumber, &p.LicenseExpiry, &address, &experience, &licenseFile, &p.AssignedVehicleID,
		); err != nil {
			return nil, err
		}
		if licenseNumber != nil {
			p.LicenseNumber = *licenseNumber
		}
		if address != nil {
			p.Address = *address
		}
		if experience != nil {
			p.Experience = *experience
		}
		if licenseFile != nil {
			p.LicenseFileURL = *licenseFile
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}
