// Package verification implements the password-reset flow: e-mailed
// six-digit codes, bounded verification attempts, and a short window in
// which a verified code can be exchanged for a new password.
package verification

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a verification record.
type State string

// Record states. Pending → Verified → Consumed.
const (
	StatePending  State = "pending"
	StateVerified State = "verified"
	StateConsumed State = "consumed"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidCode       = errors.New("verification code must be 6 digits")
	ErrCodeMismatch      = errors.New("verification code incorrect or no longer valid")
	ErrCodeExpired       = errors.New("verification code expired")
	ErrTooManyAttempts   = errors.New("too many verification attempts")
	ErrNotPending        = errors.New("verification record is not pending")
	ErrNotVerified       = errors.New("verification record is not verified")
	ErrResetTokenExpired = errors.New("reset token expired")
	ErrInvalidResetToken = errors.New("invalid reset token")
	ErrMissingFields     = errors.New("missing required fields")
	ErrPasswordTooShort  = errors.New("password too short")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrUserCannotReset   = errors.New("user does not exist or cannot reset password")
	ErrSendRateLimited   = errors.New("too many verification codes requested")
	ErrMailDelivery      = errors.New("sending verification e-mail failed")
	ErrNotFound          = errors.New("verification record not found")
)

// Record is one issued verification code.
type Record struct {
	ID         string
	Email      string
	Code       string
	State      State
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
}

// NewRecord creates a Pending record for email that expires ttl after now.
func NewRecord(email, code string, now time.Time, ttl time.Duration) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Verify checks code against the record. The attempt limit is checked before
// the counter is incremented: once Attempts reaches maxAttempts every further
// call fails with ErrTooManyAttempts and leaves the record untouched. Any
// other call consumes one attempt, whether or not the code matches.
func (r *Record) Verify(code string, now time.Time, maxAttempts int) error {
	if r.State != StatePending {
		return ErrNotPending
	}
	if r.Attempts >= maxAttempts {
		return ErrTooManyAttempts
	}

	r.Attempts++

	if !now.Before(r.ExpiresAt) {
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(r.Code)) != 1 {
		return ErrCodeMismatch
	}

	verifiedAt := now
	r.State = StateVerified
	r.VerifiedAt = &verifiedAt
	return nil
}

// Consume marks a Verified record as used. It fails once more than window has
// passed since verification.
func (r *Record) Consume(now time.Time, window time.Duration) error {
	if r.State != StateVerified || r.VerifiedAt == nil {
		return ErrNotVerified
	}
	if now.Sub(*r.VerifiedAt) > window {
		return ErrResetTokenExpired
	}
	r.State = StateConsumed
	return nil
}

// GenerateCode returns a uniformly random six-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
