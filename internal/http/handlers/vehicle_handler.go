package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/http/response"
	"github.com/fleetworks/fleet-api/internal/service"
)

type VehicleHandler struct {
	Vehicles service.VehicleService
	Users    service.UserService
}

func NewVehicleHandler(vehicles service.VehicleService, users service.UserService) *VehicleHandler {
	return &VehicleHandler{Vehicles: vehicles, Users: users}
}

// Add accepts JSON or multipart form-data; the multipart form may carry
// repeated vehiclePhotos files.
func (h *VehicleHandler) Add(w http.ResponseWriter, r *http.Request) {
	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}

	var req domain.CreateVehicleRequest
	var photos []*service.Upload

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.BadRequest(w, "malformed multipart form")
			return
		}
		year, _ := strconv.Atoi(r.FormValue("vehicleYear"))
		req = domain.CreateVehicleRequest{
			Name:               r.FormValue("vehicleName"),
			Model:              r.FormValue("vehicleModel"),
			Year:               year,
			Type:               r.FormValue("vehicleType"),
			ChassisNumber:      r.FormValue("chassiNumber"),
			RegistrationNumber: r.FormValue("registrationNumber"),
			Description:        r.FormValue("vehicleDescription"),
			Status:             r.FormValue("status"),
		}
		var err error
		photos, err = formUploads(r, "vehiclePhotos")
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	}

	vehicle, err := h.Vehicles.Add(r.Context(), &req, photos, cu.ID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	if !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	limit, offset := parsePagination(r)
	vehicles, err := h.Vehicles.List(r.Context(), limit, offset)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if cu := currentUser(w, r, h.Users); cu == nil {
		return
	}

	vehicle, err := h.Vehicles.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
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

	var req domain.UpdateVehicleRequest
	var photos []*service.Upload

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.BadRequest(w, "malformed multipart form")
			return
		}
		req = domain.UpdateVehicleRequest{
			Name:               formValue(r, "vehicleName"),
			Model:              formValue(r, "vehicleModel"),
			Type:               formValue(r, "vehicleType"),
			ChassisNumber:      formValue(r, "chassiNumber"),
			RegistrationNumber: formValue(r, "registrationNumber"),
			Description:        formValue(r, "vehicleDescription"),
			Status:             formValue(r, "status"),
		}
		if v := formValue(r, "vehicleYear"); v != nil {
			year, convErr := strconv.Atoi(*v)
			if convErr != nil {
				response.BadRequest(w, "vehicleYear must be a number")
				return
			}
			req.Year = &year
		}
		photos, err = formUploads(r, "vehiclePhotos")
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	}

	vehicle, err := h.Vehicles.Update(r.Context(), id, &req, photos, cu.ID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
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

	if err := h.Vehicles.Delete(r.Context(), id); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "vehicle " + strconv.FormatInt(id, 10) + " deleted",
	})
}
