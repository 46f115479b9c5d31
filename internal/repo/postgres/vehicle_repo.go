package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetworks/fleet-api/internal/domain"
)

type VehicleRepository interface {
	Create(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error)
	FindByID(ctx context.Context, id int64) (*domain.Vehicle, error)
	List(ctx context.Context, limit, offset int) ([]domain.Vehicle, error)
	Update(ctx context.Context, id int64, patch VehiclePatch) (*domain.Vehicle, error)
	Delete(ctx context.Context, id int64) error
}

type VehiclePatch struct {
	Name               *string
	Model              *string
	Year               *int
	Type               *string
	Photos             []string
	ChassisNumber      *string
	RegistrationNumber *string
	Description        *string
	Status             *string
	UpdatedBy          *int64
}

type vehicleRepository struct {
	pool *pgxpool.Pool
}

func NewVehicleRepository(pool *pgxpool.Pool) VehicleRepository {
	return &vehicleRepository{pool: pool}
}

const vehicleCols = `id, name, model, year, type, photos, chassis_number, registration_number, description, status, created_by, updated_by, created_at, updated_at`

func scanVehicle(row pgx.Row) (*domain.Vehicle, error) {
	var v domain.Vehicle
	err := row.Scan(
		&v.ID, &v.Name, &v.Model, &v.Year, &v.Type, &v.Photos,
		&v.ChassisNumber, &v.RegistrationNumber, &v.Description, &v.Status,
		&v.CreatedBy, &v.UpdatedBy, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vehicleRepository) Create(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	const q = `
		INSERT INTO vehicles (name, model, year, type, photos, chassis_number, registration_number, description, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + vehicleCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := scanVehicle(r.pool.QueryRow(ctx, q,
		v.Name, v.Model, v.Year, v.Type, v.Photos,
		v.ChassisNumber, v.RegistrationNumber, v.Description, v.Status, v.CreatedBy,
	))
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, domain.ErrDuplicateVehicle
		}
		return nil, err
	}

	return created, nil
}

func (r *vehicleRepository) FindByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	const q = `SELECT ` + vehicleCols + ` FROM vehicles WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVehicle(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *vehicleRepository) List(ctx context.Context, limit, offset int) ([]domain.Vehicle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT ` + vehicleCols + `
		FROM vehicles
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Model, &v.Year, &v.Type, &v.Photos,
			&v.ChassisNumber, &v.RegistrationNumber, &v.Description, &v.Status,
			&v.CreatedBy, &v.UpdatedBy, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}

	return vehicles, rows.Err()
}

func (r *vehicleRepository) Update(ctx context.Context, id int64, patch VehiclePatch) (*domain.Vehicle, error) {
	const q = `
		UPDATE vehicles
		SET
			name = COALESCE($2, name),
			model = COALESCE($3, model),
			year = COALESCE($4, year),
			type = COALESCE($5, type),
			photos = COALESCE($6, photos),
			chassis_number = COALESCE($7, chassis_number),
			registration_number = COALESCE($8, registration_number),
			description = COALESCE($9, description),
			status = COALESCE($10, status),
			updated_by = COALESCE($11, updated_by),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + vehicleCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVehicle(r.pool.QueryRow(ctx, q, id,
		patch.Name, patch.Model, patch.Year, patch.Type, patch.Photos,
		patch.ChassisNumber, patch.RegistrationNumber, patch.Description, patch.Status, patch.UpdatedBy,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil && uniqueViolation(err, "") {
		return nil, domain.ErrDuplicateVehicle
	}
	return v, err
}

func (r *vehicleRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM vehicles WHERE id = $1`
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
