package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/fleet-api/internal/domain"
)

func validRegister() domain.RegisterRequest {
	return domain.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "supersecret",
		Mobile:    "+1 555 123 4567",
		DOB:       "1990-12-10",
	}
}

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.RegisterRequest)
		wantOK bool
	}{
		{"valid", func(r *domain.RegisterRequest) {}, true},
		{"missing first name", func(r *domain.RegisterRequest) { r.FirstName = "" }, false},
		{"missing last name", func(r *domain.RegisterRequest) { r.LastName = "" }, false},
		{"bad email", func(r *domain.RegisterRequest) { r.Email = "not-an-email" }, false},
		{"short password", func(r *domain.RegisterRequest) { r.Password = "short" }, false},
		{"bad mobile", func(r *domain.RegisterRequest) { r.Mobile = "abc" }, false},
		{"bad dob format", func(r *domain.RegisterRequest) { r.DOB = "10/12/1990" }, false},
		{"no dob is fine", func(r *domain.RegisterRequest) { r.DOB = "" }, true},
		{"unknown role", func(r *domain.RegisterRequest) { r.Roles = []string{"superuser"} }, false},
		{"known roles", func(r *domain.RegisterRequest) { r.Roles = []string{"admin", "driver"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegister()
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

func TestRegisterRequest_Normalize(t *testing.T) {
	req := validRegister()
	req.Email = "  ADA@Example.COM "
	req.Roles = nil
	req.Normalize()

	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, []string{domain.RoleDriver}, req.Roles, "missing role defaults to driver")

	req2 := validRegister()
	req2.Roles = []string{"driver", "admin", "driver"}
	req2.Normalize()
	assert.Equal(t, []string{"driver", "admin"}, req2.Roles, "duplicate roles collapse")
}

func TestAuthorize(t *testing.T) {
	admin := &domain.User{Roles: []string{domain.RoleAdmin}}
	driver := &domain.User{Roles: []string{domain.RoleDriver}}
	both := &domain.User{Roles: []string{domain.RoleManager, domain.RoleDriver}}

	assert.True(t, domain.Authorize(admin, domain.RoleAdmin, domain.RoleManager))
	assert.False(t, domain.Authorize(driver, domain.RoleAdmin, domain.RoleManager))
	assert.True(t, domain.Authorize(both, domain.RoleManager))
	assert.False(t, domain.Authorize(nil, domain.RoleAdmin))
}

func TestResetCode(t *testing.T) {
	code, err := domain.NewResetCode()
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9')
	}

	d1 := domain.DigestResetCode(code)
	d2 := domain.DigestResetCode(code)
	assert.Equal(t, d1, d2, "digest is deterministic")
	assert.NotEqual(t, code, d1)
	assert.Len(t, d1, 64)
}

func TestResetPasswordRequest_Validate(t *testing.T) {
	ok := domain.ResetPasswordRequest{OTP: "123456", NewPassword: "longenough"}
	assert.NoError(t, ok.Validate())

	bad := []domain.ResetPasswordRequest{
		{OTP: "12345", NewPassword: "longenough"},
		{OTP: "12345a", NewPassword: "longenough"},
		{OTP: "123456", NewPassword: "short"},
	}
	for _, req := range bad {
		assert.Error(t, req.Validate())
	}
}
