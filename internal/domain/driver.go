package domain

import (
	"fmt"
	"time"
)

// Driver is the profile owned 1:1 by a user carrying the driver role. The
// owning user id is unique at the store level.
type Driver struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"userId"`
	LicenseNumber     string     `json:"licenseNumber,omitempty"`
	LicenseExpiry     *time.Time `json:"licenseExpiry,omitempty"`
	Address           string     `json:"address,omitempty"`
	Experience        string     `json:"experience,omitempty"`
	LicenseFileURL    string     `json:"licenseFile,omitempty"`
	AssignedVehicleID *int64     `json:"assignedVehicle,omitempty"`
	AssignedByID      *int64     `json:"assignedBy,omitempty"`
}

// DriverProfile is a user row merged with its driver fields, the shape
// returned by the user and driver listings.
type DriverProfile struct {
	UserInfo
	LicenseNumber     string     `json:"licenseNumber,omitempty"`
	LicenseExpiry     *time.Time `json:"licenseExpiry,omitempty"`
	Address           string     `json:"address,omitempty"`
	Experience        string     `json:"experience,omitempty"`
	LicenseFileURL    string     `json:"licenseFile,omitempty"`
	AssignedVehicleID *int64     `json:"assignedVehicle,omitempty"`
}

type UpdateDriverRequest struct {
	LicenseNumber *string `json:"licenseNumber,omitempty"`
	LicenseExpiry *string `json:"licenseExpiry,omitempty"`
	Address       *string `json:"address,omitempty"`
	Experience    *string `json:"experience,omitempty"`
}

type AssignVehicleRequest struct {
	VehicleID int64 `json:"vehicleId"`
}

func (r *UpdateDriverRequest) Validate() error {
	if r.LicenseExpiry != nil && *r.LicenseExpiry != "" {
		if _, err := time.Parse(dobLayout, *r.LicenseExpiry); err != nil {
			return fmt.Errorf("licenseExpiry must be formatted as %s", dobLayout)
		}
	}
	return nil
}

func (r *AssignVehicleRequest) Validate() error {
	if r.VehicleID <= 0 {
		return fmt.Errorf("vehicleId is required")
	}
	return nil
}
