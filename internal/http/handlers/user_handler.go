package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/http/response"
	"github.com/fleetworks/fleet-api/internal/service"
)

type UserHandler struct {
	Users service.UserService
}

func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	if !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	limit, offset := parsePagination(r)
	users, err := h.Users.List(r.Context(), limit, offset)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	// Users may read their own record; everyone else's needs a staff role.
	if cu.ID != id && !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	user, err := h.Users.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	cu := currentUser(w, r, h.Users)
	if cu == nil {
		return
	}
	if cu.ID != id && !domain.Authorize(cu, domain.RoleAdmin, domain.RoleManager) {
		response.Forbidden(w, domain.ErrForbidden.Error())
		return
	}

	var req domain.UpdateUserRequest
	var uploads *service.UpdateUploads

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.BadRequest(w, "malformed multipart form")
			return
		}
		req = domain.UpdateUserRequest{
			FirstName: formValue(r, "firstName"),
			LastName:  formValue(r, "lastName"),
			Email:     formValue(r, "email"),
			Password:  formValue(r, "password"),
			Mobile:    formValue(r, "mobile"),
			DOB:       formValue(r, "dob"),
			Roles:     r.Form["role"],
		}
		pic, err := formUpload(r, "profilePic")
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		license, err := formUpload(r, "drivingLicense")
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		uploads = &service.UpdateUploads{ProfilePic: pic, DrivingLicense: license}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	}

	// Granting or revoking roles is an admin action.
	if len(req.Roles) > 0 && !domain.Authorize(cu, domain.RoleAdmin) {
		response.Forbidden(w, "only admins can change roles")
		return
	}

	user, err := h.Users.Update(r.Context(), id, &req, uploads)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Users.Delete(r.Context(), id, cu.ID); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "user " + strconv.FormatInt(id, 10) + " deleted",
	})
}
