// Package auth provides NTUGo accounts: registration, password login, and
// bearer access tokens.
package auth

import (
	"strings"
	"time"
)

// Provider is how an account signs in.
type Provider string

// Account providers.
const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// User represents an account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Provider     Provider  `json:"provider"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CanResetPassword reports whether the account has a password to reset.
// Google-only accounts do not.
func (u *User) CanResetPassword() bool {
	return u.PasswordHash != ""
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate validates the registration request.
func (r *RegisterRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required", Code: "REQUIRED"})
	} else if !emailPattern.MatchString(normalizeEmail(r.Email)) {
		errs = append(errs, FieldError{Field: "email", Message: "email is malformed", Code: "INVALID_FORMAT"})
	}

	if len(r.Password) < MinPasswordLength {
		errs = append(errs, FieldError{
			Field:   "password",
			Message: "password must be at least 6 characters",
			Code:    "TOO_SHORT",
		})
	}

	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required", Code: "REQUIRED"})
	}

	return errs
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the login request.
func (r *LoginRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required", Code: "REQUIRED"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required", Code: "REQUIRED"})
	}

	return errs
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// TokenResponse is returned after a successful register or login.
type TokenResponse struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        *User     `json:"user"`
}
