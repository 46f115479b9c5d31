package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/http/middleware"
	"github.com/fleetworks/fleet-api/internal/http/response"
	"github.com/fleetworks/fleet-api/internal/service"
)

// maxUploadBytes caps multipart request parsing.
const maxUploadBytes = 10 << 20

var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serviceError maps domain sentinels onto the HTTP error taxonomy. Anything
// unmapped answers 500 with a generic message; internals never leak to the
// client.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		response.WriteError(w, http.StatusBadRequest, domain.ErrEmailTaken.Error(), response.CodeEmailExists)
	case errors.Is(err, domain.ErrInvalidOTP):
		response.WriteError(w, http.StatusBadRequest, domain.ErrInvalidOTP.Error(), response.CodeInvalidOTP)
	case errors.Is(err, domain.ErrDuplicateVehicle):
		response.WriteError(w, http.StatusBadRequest, domain.ErrDuplicateVehicle.Error(), response.CodeConflict)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "record not found")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, domain.ErrForbidden.Error())
	default:
		response.InternalError(w, "something went wrong")
	}
}

// currentUser resolves the authenticated user behind the bearer token. A
// token whose user no longer exists answers 401; the caller gets nil and
// must return.
func currentUser(w http.ResponseWriter, r *http.Request, users service.UserService) *domain.User {
	claims := middleware.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return nil
	}
	user, err := users.Get(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.Unauthorized(w, "account no longer exists")
		} else {
			response.InternalError(w, "something went wrong")
		}
		return nil
	}
	return user
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		// Caps at the largest page the repositories accept.
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > 100 {
				n = 100
			}
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formValue returns a pointer to the form field, nil when absent. Partial
// updates need the absent/empty distinction.
func formValue(r *http.Request, name string) *string {
	if vs, ok := r.Form[name]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}

func newUpload(file multipart.File, header *multipart.FileHeader) (*service.Upload, error) {
	if header.Size > maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds the 10MB upload limit", header.Filename)
	}
	ct := header.Header.Get("Content-Type")
	if !allowedUploadTypes[ct] {
		return nil, fmt.Errorf("unsupported file type %q", ct)
	}
	return &service.Upload{
		Filename:    header.Filename,
		ContentType: ct,
		Size:        header.Size,
		Reader:      file,
	}, nil
}

func formUpload(r *http.Request, field string) (*service.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return newUpload(file, header)
}

func formUploads(r *http.Request, field string) ([]*service.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	uploads := make([]*service.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, err
		}
		up, err := newUpload(f, h)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}
