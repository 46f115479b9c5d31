package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/events"
	"github.com/fleetworks/fleet-api/internal/platform/auth"
	"github.com/fleetworks/fleet-api/internal/platform/mailer"
	"github.com/fleetworks/fleet-api/internal/platform/storage"
	"github.com/fleetworks/fleet-api/internal/repo/postgres"
	"github.com/fleetworks/fleet-api/pkg/config"
	"github.com/fleetworks/fleet-api/pkg/logger"
)

// RegisterUploads carries the optional multipart files accepted on
// registration.
type RegisterUploads struct {
	ProfilePic     *Upload
	DrivingLicense *Upload
}

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest, uploads *RegisterUploads) (*domain.LoginResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, userID int64, req *domain.ChangePasswordRequest) error
}

type authService struct {
	userRepo   postgres.UserRepository
	driverRepo postgres.DriverRepository
	resetRepo  postgres.ResetCodeRepository
	store      storage.ObjectStore
	mailer     mailer.Service
	publisher  events.Publisher
	config     *config.Config
}

func NewAuthService(
	userRepo postgres.UserRepository,
	driverRepo postgres.DriverRepository,
	resetRepo postgres.ResetCodeRepository,
	store storage.ObjectStore,
	mailer mailer.Service,
	publisher events.Publisher,
	config *config.Config,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		driverRepo: driverRepo,
		resetRepo:  resetRepo,
		store:      store,
		mailer:     mailer,
		publisher:  publisher,
		config:     config,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest, uploads *RegisterUploads) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	// The hash, never the plaintext, is persisted.
	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	dob, err := domain.ParseDOB(req.DOB)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	// Uploads go out before the record is persisted; a failed insert
	// triggers best-effort cleanup of what was already stored.
	var profileURL, licenseURL string
	if uploads != nil && uploads.ProfilePic != nil {
		profileURL, err = uploadObject(ctx, s.store, "profiles", uploads.ProfilePic)
		if err != nil {
			return nil, err
		}
	}
	// A license only lands on a driver profile; without the driver role
	// the object would sit in storage unreferenced.
	if uploads != nil && uploads.DrivingLicense != nil && hasRole(req.Roles, domain.RoleDriver) {
		licenseURL, err = uploadObject(ctx, s.store, "licenses", uploads.DrivingLicense)
		if err != nil {
			cleanupObjects(ctx, s.store, profileURL)
			return nil, err
		}
	}

	user, err := s.userRepo.Create(ctx, &domain.User{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PasswordHash:  passwordHash,
		Mobile:        req.Mobile,
		DOB:           dob,
		ProfilePicURL: profileURL,
		Roles:         req.Roles,
	})
	if err != nil {
		cleanupObjects(ctx, s.store, profileURL, licenseURL)
		return nil, err
	}

	// Users carrying the driver role own exactly one driver profile.
	if user.HasRole(domain.RoleDriver) {
		if _, err := s.driverRepo.EnsureForUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to create driver profile: %w", err)
		}
		if licenseURL != "" {
			if _, err := s.driverRepo.Update(ctx, user.ID, postgres.DriverPatch{LicenseFileURL: &licenseURL}); err != nil {
				return nil, fmt.Errorf("failed to store license file: %w", err)
			}
		}
	}

	token, err := auth.Issue(user.ID, s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		Roles:        user.Roles,
		RegisteredAt: user.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish user.registered", "error", err, "user_id", user.ID)
	}

	return &domain.LoginResponse{Token: token, User: user.ToUserInfo()}, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	// Unknown email and wrong password answer identically.
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := auth.Issue(user.ID, s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &domain.LoginResponse{Token: token, User: user.ToUserInfo()}, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	req := domain.ForgotPasswordRequest{Email: email}
	req.Normalize()

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return domain.ErrNotFound
	}

	code, err := domain.NewResetCode()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.config.Auth.OTPTTL)
	if err := s.resetRepo.Create(ctx, user.ID, domain.DigestResetCode(code), expiresAt); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?otp=%s", s.config.Auth.ResetBaseURL, code)
	if err := s.mailer.SendPasswordReset(user.Email, user.FirstName, code, resetURL); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	// Consuming deletes the code, so it works exactly once.
	userID, err := s.resetRepo.Consume(ctx, domain.DigestResetCode(req.OTP))
	if err != nil {
		return fmt.Errorf("failed to consume reset code: %w", err)
	}
	if userID == 0 {
		return domain.ErrInvalidOTP
	}

	passwordHash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.PasswordReset, events.PasswordResetEvent{
		UserID:  userID,
		ResetAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish password reset", "error", err, "user_id", userID)
	}

	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID int64, req *domain.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return domain.ErrNotFound
	}

	valid, err := argon2id.ComparePasswordAndHash(req.OldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return domain.ErrInvalidCredentials
	}

	passwordHash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, userID, passwordHash)
}
