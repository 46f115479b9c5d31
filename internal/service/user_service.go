package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/events"
	"github.com/fleetworks/fleet-api/internal/platform/storage"
	"github.com/fleetworks/fleet-api/internal/repo/postgres"
	"github.com/fleetworks/fleet-api/pkg/logger"
)

// UpdateUploads carries the optional multipart files accepted on profile
// updates.
type UpdateUploads struct {
	ProfilePic     *Upload
	DrivingLicense *Upload
}

type UserService interface {
	List(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, id int64, req *domain.UpdateUserRequest, uploads *UpdateUploads) (*domain.User, error)
	Delete(ctx context.Context, id, deletedBy int64) error
}

type userService struct {
	userRepo   postgres.UserRepository
	driverRepo postgres.DriverRepository
	store      storage.ObjectStore
	publisher  events.Publisher
}

func NewUserService(
	userRepo postgres.UserRepository,
	driverRepo postgres.DriverRepository,
	store storage.ObjectStore,
	publisher events.Publisher,
) UserService {
	return &userService{
		userRepo:   userRepo,
		driverRepo: driverRepo,
		store:      store,
		publisher:  publisher,
	}
}

func (s *userService) List(ctx context.Context, limit, offset int) ([]domain.DriverProfile, error) {
	profiles, err := s.userRepo.ListWithDrivers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return profiles, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id int64, req *domain.UpdateUserRequest, uploads *UpdateUploads) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	patch := postgres.UserPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Mobile:    req.Mobile,
		Roles:     req.Roles,
	}

	if req.DOB != nil {
		dob, err := domain.ParseDOB(*req.DOB)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
		}
		patch.DOB = dob
	}

	// Hashing happens here, unconditionally, whenever the password field
	// changes; the repository never sees a plaintext password.
	if req.Password != nil {
		hash, err := argon2id.CreateHash(*req.Password, argon2id.DefaultParams)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}

	var profileURL, licenseURL string
	var err error
	if uploads != nil && uploads.ProfilePic != nil {
		profileURL, err = uploadObject(ctx, s.store, "profiles", uploads.ProfilePic)
		if err != nil {
			return nil, err
		}
		patch.ProfilePicURL = &profileURL
	}
	if uploads != nil && uploads.DrivingLicense != nil {
		licenseURL, err = uploadObject(ctx, s.store, "licenses", uploads.DrivingLicense)
		if err != nil {
			cleanupObjects(ctx, s.store, profileURL)
			return nil, err
		}
	}

	user, err := s.userRepo.Update(ctx, id, patch)
	if err != nil {
		cleanupObjects(ctx, s.store, profileURL, licenseURL)
		return nil, err
	}
	if user == nil {
		cleanupObjects(ctx, s.store, profileURL, licenseURL)
		return nil, domain.ErrNotFound
	}

	// Adding the driver role retroactively provisions the profile.
	if user.HasRole(domain.RoleDriver) {
		if _, err := s.driverRepo.EnsureForUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to provision driver profile: %w", err)
		}
		if licenseURL != "" {
			if _, err := s.driverRepo.Update(ctx, user.ID, postgres.DriverPatch{LicenseFileURL: &licenseURL}); err != nil {
				return nil, fmt.Errorf("failed to store license file: %w", err)
			}
		}
	} else if licenseURL != "" {
		// No driver profile to hang the license on; drop the object.
		cleanupObjects(ctx, s.store, licenseURL)
	}

	return user, nil
}

func (s *userService) Delete(ctx context.Context, id, deletedBy int64) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.UserDeleted, events.UserDeletedEvent{
		UserID:    id,
		DeletedBy: deletedBy,
		DeletedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish user.deleted", "error", err, "user_id", id)
	}

	return nil
}
