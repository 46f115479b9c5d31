package domain

import (
	"fmt"
	"strings"
	"time"
)

type Vehicle struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"vehicleName"`
	Model              string    `json:"vehicleModel"`
	Year               int       `json:"vehicleYear"`
	Type               string    `json:"vehicleType"`
	Photos             []string  `json:"vehiclePhotos"`
	ChassisNumber      string    `json:"chassiNumber"`
	RegistrationNumber string    `json:"registrationNumber"`
	Description        string    `json:"vehicleDescription,omitempty"`
	Status             string    `json:"status"`
	CreatedBy          *int64    `json:"created_by,omitempty"`
	UpdatedBy          *int64    `json:"updated_by,omitempty"`
	CreatedAt          time.Time `json:"created_on"`
	UpdatedAt          time.Time `json:"updated_on"`
}

type CreateVehicleRequest struct {
	Name               string `json:"vehicleName"`
	Model              string `json:"vehicleModel"`
	Year               int    `json:"vehicleYear"`
	Type               string `json:"vehicleType"`
	ChassisNumber      string `json:"chassiNumber"`
	RegistrationNumber string `json:"registrationNumber"`
	Description        string `json:"vehicleDescription"`
	Status             string `json:"status"`
}

type UpdateVehicleRequest struct {
	Name               *string `json:"vehicleName,omitempty"`
	Model              *string `json:"vehicleModel,omitempty"`
	Year               *int    `json:"vehicleYear,omitempty"`
	Type               *string `json:"vehicleType,omitempty"`
	ChassisNumber      *string `json:"chassiNumber,omitempty"`
	RegistrationNumber *string `json:"registrationNumber,omitempty"`
	Description        *string `json:"vehicleDescription,omitempty"`
	Status             *string `json:"status,omitempty"`
}

// Vehicle types and statuses
const (
	VehicleTypeLTV = "LTV"
	VehicleTypeHTV = "HTV"

	VehicleStatusActive   = "Active"
	VehicleStatusInactive = "Inactive"
)

var validVehicleTypes = map[string]bool{
	VehicleTypeLTV: true,
	VehicleTypeHTV: true,
}

var validVehicleStatuses = map[string]bool{
	VehicleStatusActive:   true,
	VehicleStatusInactive: true,
}

func (r *CreateVehicleRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("vehicleName is required")
	}
	if r.Model == "" {
		return fmt.Errorf("vehicleModel is required")
	}
	if r.Year < 1900 || r.Year > time.Now().Year()+1 {
		return fmt.Errorf("vehicleYear is out of range")
	}
	if !validVehicleTypes[r.Type] {
		return fmt.Errorf("vehicleType must be LTV or HTV")
	}
	if r.ChassisNumber == "" {
		return fmt.Errorf("chassiNumber is required")
	}
	if r.RegistrationNumber == "" {
		return fmt.Errorf("registrationNumber is required")
	}
	if r.Status != "" && !validVehicleStatuses[r.Status] {
		return fmt.Errorf("status must be Active or Inactive")
	}
	return nil
}

func (r *CreateVehicleRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Model = strings.TrimSpace(r.Model)
	r.ChassisNumber = strings.TrimSpace(r.ChassisNumber)
	r.RegistrationNumber = strings.TrimSpace(r.RegistrationNumber)
	r.Description = strings.TrimSpace(r.Description)
	if r.Status == "" {
		r.Status = VehicleStatusActive
	}
}

func (r *UpdateVehicleRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("vehicleName cannot be empty")
	}
	if r.Year != nil && (*r.Year < 1900 || *r.Year > time.Now().Year()+1) {
		return fmt.Errorf("vehicleYear is out of range")
	}
	if r.Type != nil && !validVehicleTypes[*r.Type] {
		return fmt.Errorf("vehicleType must be LTV or HTV")
	}
	if r.ChassisNumber != nil && *r.ChassisNumber == "" {
		return fmt.Errorf("chassiNumber cannot be empty")
	}
	if r.RegistrationNumber != nil && *r.RegistrationNumber == "" {
		return fmt.Errorf("registrationNumber cannot be empty")
	}
	if r.Status != nil && !validVehicleStatuses[*r.Status] {
		return fmt.Errorf("status must be Active or Inactive")
	}
	return nil
}
