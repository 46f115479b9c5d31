package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/http/response"
	"github.com/fleetworks/fleet-api/internal/service"
)

type DriverHandler struct {
	Drivers service.DriverService
	Users   service.UserService
}

func NewDriverHandler(drivers service.DriverService, users service.UserService) *DriverHandler {
	return &DriverHandler{Drivers: drivers, Users: users}
}

func (h *DriverHandler) List(w http.ResponseWriter, r *http.Request) {
	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	if !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	limit, offset := parsePagination(r)
	drivers, err := h.Drivers.List(r.Context(), limit, offset)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// AssignVehicle links a vehicle to a driver, addressed by the driver's user
// id.
func (h *DriverHandler) AssignVehicle(w http.ResponseWriter, r *http.Request) {
	driverUserID, err := idParam(r, "driverId")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	if !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	var req domain.AssignVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	driver, err := h.Drivers.AssignVehicle(r.Context(), driverUserID, req.VehicleID, cu.ID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

func (h *DriverHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	driverUserID, err := idParam(r, "driverId")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	if !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	var req domain.UpdateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	driver, err := h.Drivers.UpdateProfile(r.Context(), driverUserID, &req)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}
