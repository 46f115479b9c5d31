package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID            int64      `json:"id"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Mobile        string     `json:"mobile"`
	DOB           *time.Time `json:"dob,omitempty"`
	ProfilePicURL string     `json:"profilePic,omitempty"`
	Roles         []string   `json:"role"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type RegisterRequest struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Mobile    string   `json:"mobile"`
	DOB       string   `json:"dob,omitempty"`
	Roles     []string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// UserInfo is the public view of a user, without credential material.
type UserInfo struct {
	ID            int64      `json:"userId"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	Mobile        string     `json:"mobile"`
	DOB           *time.Time `json:"dob,omitempty"`
	ProfilePicURL string     `json:"profilePic,omitempty"`
	Roles         []string   `json:"role"`
}

type UpdateUserRequest struct {
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	Email     *string  `json:"email,omitempty"`
	Password  *string  `json:"password,omitempty"`
	Mobile    *string  `json:"mobile,omitempty"`
	DOB       *string  `json:"dob,omitempty"`
	Roles     []string `json:"role,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Valid user roles
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleDriver  = "driver"
)

var validRoles = map[string]bool{
	RoleAdmin:   true,
	RoleManager: true,
	RoleDriver:  true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize is the role-based access predicate: true iff the user's role
// set intersects the required roles. The self-service exception (a user
// acting on their own record) is decided at the call site, not here.
func Authorize(u *User, required ...string) bool {
	if u == nil {
		return false
	}
	for _, role := range required {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

const dobLayout = "2006-01-02"

// Validation methods
func (r *RegisterRequest) Validate() error {
	if r.FirstName == "" {
		return fmt.Errorf("firstName is required")
	}
	if r.LastName == "" {
		return fmt.Errorf("lastName is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.Mobile == "" {
		return fmt.Errorf("mobile is required")
	}
	if !isValidPhone(r.Mobile) {
		return fmt.Errorf("invalid mobile format")
	}
	if r.DOB != "" {
		if _, err := time.Parse(dobLayout, r.DOB); err != nil {
			return fmt.Errorf("dob must be formatted as %s", dobLayout)
		}
	}
	for _, role := range r.Roles {
		if !validRoles[role] {
			return fmt.Errorf("invalid role: %s", role)
		}
	}
	return nil
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func (r *UpdateUserRequest) Validate() error {
	if r.Email != nil && !isValidEmail(*r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password != nil && len(*r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.Mobile != nil && !isValidPhone(*r.Mobile) {
		return fmt.Errorf("invalid mobile format")
	}
	if r.DOB != nil && *r.DOB != "" {
		if _, err := time.Parse(dobLayout, *r.DOB); err != nil {
			return fmt.Errorf("dob must be formatted as %s", dobLayout)
		}
	}
	for _, role := range r.Roles {
		if !validRoles[role] {
			return fmt.Errorf("invalid role: %s", role)
		}
	}
	return nil
}

func (r *ResetPasswordRequest) Validate() error {
	if len(r.OTP) != 6 {
		return fmt.Errorf("otp must be a 6-digit code")
	}
	for _, c := range r.OTP {
		if c < '0' || c > '9' {
			return fmt.Errorf("otp must be a 6-digit code")
		}
	}
	if len(r.NewPassword) < 8 {
		return fmt.Errorf("newPassword must be at least 8 characters")
	}
	return nil
}

func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return fmt.Errorf("oldPassword is required")
	}
	if len(r.NewPassword) < 8 {
		return fmt.Errorf("newPassword must be at least 8 characters")
	}
	return nil
}

// Normalize methods
func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Mobile = strings.TrimSpace(r.Mobile)
	if len(r.Roles) == 0 {
		r.Roles = []string{RoleDriver}
	}
	r.Roles = dedupeRoles(r.Roles)
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *UpdateUserRequest) Normalize() {
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &email
	}
	if len(r.Roles) > 0 {
		r.Roles = dedupeRoles(r.Roles)
	}
}

func (r *ForgotPasswordRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func dedupeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	out := roles[:0]
	for _, role := range roles {
		if !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}
	return out
}

// ParseDOB converts a validated dob string to a time value.
func ParseDOB(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dobLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ToUserInfo converts User to UserInfo (without sensitive data)
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Mobile:        u.Mobile,
		DOB:           u.DOB,
		ProfilePicURL: u.ProfilePicURL,
		Roles:         u.Roles,
	}
}

// Helper functions
func isValidEmail(email string) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}

func isValidPhone(phone string) bool {
	phoneRegex := regexp.MustCompile(`^[\+]?[\d\s\-\(\)]+$`)
	return phoneRegex.MatchString(phone) && len(phone) >= 7
}
