package domain

import "errors"

// Sentinel errors shared by services and repositories. Handlers map these
// onto the HTTP error taxonomy; anything else is an internal failure.
var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid or expired passcode")
	ErrDuplicateVehicle   = errors.New("vehicle with this chassis or registration number already exists")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrValidation         = errors.New("validation failed")
)
