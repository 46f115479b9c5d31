package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/http/middleware"
	"github.com/fleetworks/fleet-api/internal/http/response"
	"github.com/fleetworks/fleet-api/internal/service"
)

type AuthHandler struct {
	Auth service.AuthService
}

func NewAuthHandler(auth service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register accepts JSON or multipart form-data; the multipart form may carry
// profilePic and drivingLicense files.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	var uploads *service.RegisterUploads

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.BadRequest(w, "malformed multipart form")
			return
		}
		req = domain.RegisterRequest{
			FirstName: r.FormValue("firstName"),
			LastName:  r.FormValue("lastName"),
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			Mobile:    r.FormValue("mobile"),
			DOB:       r.FormValue("dob"),
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
		uploads = &service.RegisterUploads{ProfilePic: pic, DrivingLicense: license}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	}

	out, err := h.Auth.Register(r.Context(), &req, uploads)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	out, err := h.Auth.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			response.BadRequest(w, "invalid email or password")
			return
		}
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "email is required")
		return
	}

	if err := h.Auth.ForgotPassword(r.Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "no account with this email")
			return
		}
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset code sent"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), &req); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), claims.UserID, &req); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			response.Unauthorized(w, "old password is incorrect")
			return
		}
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
