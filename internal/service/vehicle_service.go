package service

import (
	"context"
	"fmt"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/events"
	"github.com/fleetworks/fleet-api/internal/platform/storage"
	"github.com/fleetworks/fleet-api/internal/repo/postgres"
	"github.com/fleetworks/fleet-api/pkg/logger"
)

type VehicleService interface {
	Add(ctx context.Context, req *domain.CreateVehicleRequest, photos []*Upload, createdBy int64) (*domain.Vehicle, error)
	List(ctx context.Context, limit, offset int) ([]domain.Vehicle, error)
	Get(ctx context.Context, id int64) (*domain.Vehicle, error)
	Update(ctx context.Context, id int64, req *domain.UpdateVehicleRequest, photos []*Upload, updatedBy int64) (*domain.Vehicle, error)
	Delete(ctx context.Context, id int64) error
}

type vehicleService struct {
	vehicleRepo postgres.VehicleRepository
	store       storage.ObjectStore
	publisher   events.Publisher
}

func NewVehicleService(
	vehicleRepo postgres.VehicleRepository,
	store storage.ObjectStore,
	publisher events.Publisher,
) VehicleService {
	return &vehicleService{
		vehicleRepo: vehicleRepo,
		store:       store,
		publisher:   publisher,
	}
}

func (s *vehicleService) Add(ctx context.Context, req *domain.CreateVehicleRequest, photos []*Upload, createdBy int64) (*domain.Vehicle, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	photoURLs, err := s.uploadPhotos(ctx, photos)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.vehicleRepo.Create(ctx, &domain.Vehicle{
		Name:               req.Name,
		Model:              req.Model,
		Year:               req.Year,
		Type:               req.Type,
		Photos:             photoURLs,
		ChassisNumber:      req.ChassisNumber,
		RegistrationNumber: req.RegistrationNumber,
		Description:        req.Description,
		Status:             req.Status,
		CreatedBy:          &createdBy,
	})
	if err != nil {
		cleanupObjects(ctx, s.store, photoURLs...)
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.VehicleCreated, events.VehicleCreatedEvent{
		VehicleID:          vehicle.ID,
		ChassisNumber:      vehicle.ChassisNumber,
		RegistrationNumber: vehicle.RegistrationNumber,
		CreatedBy:          createdBy,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish vehicle.created", "error", err, "vehicle_id", vehicle.ID)
	}

	return vehicle, nil
}

func (s *vehicleService) List(ctx context.Context, limit, offset int) ([]domain.Vehicle, error) {
	vehicles, err := s.vehicleRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

func (s *vehicleService) Get(ctx context.Context, id int64) (*domain.Vehicle, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, domain.ErrNotFound
	}
	return vehicle, nil
}

func (s *vehicleService) Update(ctx context.Context, id int64, req *domain.UpdateVehicleRequest, photos []*Upload, updatedBy int64) (*domain.Vehicle, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	photoURLs, err := s.uploadPhotos(ctx, photos)
	if err != nil {
		return nil, err
	}

	patch := postgres.VehiclePatch{
		Name:               req.Name,
		Model:              req.Model,
		Year:               req.Year,
		Type:               req.Type,
		Photos:             photoURLs,
		ChassisNumber:      req.ChassisNumber,
		RegistrationNumber: req.RegistrationNumber,
		Description:        req.Description,
		Status:             req.Status,
		UpdatedBy:          &updatedBy,
	}

	vehicle, err := s.vehicleRepo.Update(ctx, id, patch)
	if err != nil {
		cleanupObjects(ctx, s.store, photoURLs...)
		return nil, err
	}
	if vehicle == nil {
		cleanupObjects(ctx, s.store, photoURLs...)
		return nil, domain.ErrNotFound
	}

	return vehicle, nil
}

func (s *vehicleService) Delete(ctx context.Context, id int64) error {
	if err := s.vehicleRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.VehicleDeleted, map[string]int64{"vehicle_id": id}); err != nil {
		logger.WarnContext(ctx, "Failed to publish vehicle.deleted", "error", err, "vehicle_id", id)
	}

	return nil
}

func (s *vehicleService) uploadPhotos(ctx context.Context, photos []*Upload) ([]string, error) {
	if len(photos) == 0 {
		return nil, nil
	}

	urls := make([]string, 0, len(photos))
	for _, photo := range photos {
		url, err := uploadObject(ctx, s.store, "vehicles", photo)
		if err != nil {
			cleanupObjects(ctx, s.store, urls...)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
