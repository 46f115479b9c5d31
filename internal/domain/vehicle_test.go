package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetworks/fleet-api/internal/domain"
)

func validVehicle() domain.CreateVehicleRequest {
	return domain.CreateVehicleRequest{
		Name:               "Hauler",
		Model:              "FH16",
		Year:               2021,
		Type:               domain.VehicleTypeHTV,
		ChassisNumber:      "CH-0001",
		RegistrationNumber: "REG-0001",
	}
}

func TestCreateVehicleRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CreateVehicleRequest)
		wantOK bool
	}{
		{"valid", func(r *domain.CreateVehicleRequest) {}, true},
		{"missing name", func(r *domain.CreateVehicleRequest) { r.Name = "" }, false},
		{"missing model", func(r *domain.CreateVehicleRequest) { r.Model = "" }, false},
		{"year too old", func(r *domain.CreateVehicleRequest) { r.Year = 1850 }, false},
		{"year in the future", func(r *domain.CreateVehicleRequest) { r.Year = time.Now().Year() + 5 }, false},
		{"bad type", func(r *domain.CreateVehicleRequest) { r.Type = "SUV" }, false},
		{"missing chassis", func(r *domain.CreateVehicleRequest) { r.ChassisNumber = "" }, false},
		{"missing registration", func(r *domain.CreateVehicleRequest) { r.RegistrationNumber = "" }, false},
		{"bad status", func(r *domain.CreateVehicleRequest) { r.Status = "Retired" }, false},
		{"inactive status", func(r *domain.CreateVehicleRequest) { r.Status = domain.VehicleStatusInactive }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validVehicle()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreateVehicleRequest_Normalize_DefaultsStatus(t *testing.T) {
	req := validVehicle()
	req.Normalize()
	assert.Equal(t, domain.VehicleStatusActive, req.Status)
}
