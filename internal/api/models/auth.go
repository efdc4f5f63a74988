package models

import "github.com/ntugo/ntugo/internal/auth"

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success   bool       `json:"success"`
	Token     string     `json:"token"`
	ExpiresAt Timestamp  `json:"expiresAt"`
	User      *auth.User `json:"user"`
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	User *auth.User `json:"user"`
}

// SendCodeInput is the body of POST /api/auth/forgot-password/send.
type SendCodeInput struct {
	Email string `json:"email"`
}

// SendCodeResponse is returned when a code was (or appears to be) sent.
type SendCodeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
}

// VerifyCodeInput is the body of POST /api/auth/forgot-password/verify.
type VerifyCodeInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCodeResponse carries the reset token.
type VerifyCodeResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Verified   bool   `json:"verified"`
	ResetToken string `json:"resetToken"`
}

// ResetPasswordInput is the body of POST /api/auth/forgot-password/reset.
type ResetPasswordInput struct {
	Email           string `json:"email"`
	ResetToken      string `json:"resetToken"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
