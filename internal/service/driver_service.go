package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/events"
	"github.com/fleetworks/fleet-api/internal/repo/postgres"
	"github.com/fleetworks/fleet-api/pkg/logger"
)

type DriverService interface {
	List(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error)
	// AssignVehicle links a vehicle to the driver profile owned by
	// driverUserID. Nothing prevents the same vehicle being assigned to
	// several drivers; exclusivity is left to caller discipline.
	AssignVehicle(ctx context.Context, driverUserID, vehicleID, assignedBy int64) (*domain.Driver, error)
	UpdateProfile(ctx context.Context, driverUserID int64, req *domain.UpdateDriverRequest) (*domain.Driver, error)
}

type driverService struct {
	driverRepo  postgres.DriverRepository
	vehicleRepo postgres.VehicleRepository
	publisher   events.Publisher
}

func NewDriverService(
	driverRepo postgres.DriverRepository,
	vehicleRepo postgres.VehicleRepository,
	publisher events.Publisher,
) DriverService {
	return &driverService{
		driverRepo:  driverRepo,
		vehicleRepo: vehicleRepo,
		publisher:   publisher,
	}
}

func (s *driverService) List(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error) {
	profiles, err := s.driverRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return profiles, nil
}

func (s *driverService) AssignVehicle(ctx context.Context, driverUserID, vehicleID, assignedBy int64) (*domain.Driver, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, domain.ErrNotFound
	}

	driver, err := s.driverRepo.AssignVehicle(ctx, driverUserID, vehicleID, assignedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to assign vehicle: %w", err)
	}
	if driver == nil {
		return nil, domain.ErrNotFound
	}

	if err := s.publisher.Publish(ctx, events.VehicleAssigned, events.VehicleAssignedEvent{
		VehicleID:    vehicleID,
		DriverUserID: driverUserID,
		AssignedBy:   assignedBy,
		AssignedAt:   time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish vehicle.assigned", "error", err, "vehicle_id", vehicleID)
	}

	return driver, nil
}

func (s *driverService) UpdateProfile(ctx context.Context, driverUserID int64, req *domain.UpdateDriverRequest) (*domain.Driver, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	patch := postgres.DriverPatch{
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
		Experience:    req.Experience,
	}
	if req.LicenseExpiry != nil {
		expiry, err := domain.ParseDOB(*req.LicenseExpiry)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
		}
		patch.LicenseExpiry = expiry
	}

	driver, err := s.driverRepo.Update(ctx, driverUserID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update driver: %w", err)
	}
	if driver == nil {
		return nil, domain.ErrNotFound
	}

	return driver, nil
}
