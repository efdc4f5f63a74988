package verification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/auth"
	"github.com/ntugo/ntugo/internal/mail"
)

// Defaults for the reset flow.
const (
	DefaultCodeTTL         = 10 * time.Minute
	DefaultMaxAttempts     = 5
	DefaultMaxSendsPerHour = 5
	DefaultResetWindow     = 30 * time.Minute
	MinPasswordLength      = 6
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// UserStore is the slice of the account service the reset flow needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	UpdatePassword(ctx context.Context, userID, password string) error
}

// ServiceConfig holds configuration for the verification service.
type ServiceConfig struct {
	Repository Repository
	Users      UserStore
	Mailer     mail.Mailer

	// CodeTTL is how long a code can be verified (default: 10 minutes).
	CodeTTL time.Duration

	// MaxAttempts bounds verification attempts per code (default: 5).
	MaxAttempts int

	// MaxSendsPerHour bounds codes issued per e-mail address (default: 5).
	MaxSendsPerHour int

	// ResetWindow is how long a verified code stays usable (default: 30 minutes).
	ResetWindow time.Duration

	// GenerateCode defaults to GenerateCode.
	GenerateCode func() (string, error)

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger
}

// Service runs the send → verify → reset flow.
type Service struct {
	repo            Repository
	users           UserStore
	mailer          mail.Mailer
	codeTTL         time.Duration
	maxAttempts     int
	maxSendsPerHour int
	resetWindow     time.Duration
	generateCode    func() (string, error)
	clock           func() time.Time
	logger          zerolog.Logger
}

// NewService creates a new verification service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:            cfg.Repository,
		users:           cfg.Users,
		mailer:          cfg.Mailer,
		codeTTL:         cfg.CodeTTL,
		maxAttempts:     cfg.MaxAttempts,
		maxSendsPerHour: cfg.MaxSendsPerHour,
		resetWindow:     cfg.ResetWindow,
		generateCode:    cfg.GenerateCode,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = DefaultCodeTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.maxSendsPerHour <= 0 {
		s.maxSendsPerHour = DefaultMaxSendsPerHour
	}
	if s.resetWindow <= 0 {
		s.resetWindow = DefaultResetWindow
	}
	if s.generateCode == nil {
		s.generateCode = GenerateCode
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// MaxSendsPerHour returns the configured per-address send limit.
func (s *Service) MaxSendsPerHour() int {
	return s.maxSendsPerHour
}

// SendResult is returned by SendCode.
type SendResult struct {
	// ExpiresIn is the code lifetime in seconds.
	ExpiresIn int
}

// SendCode issues a code for email and mails it. Unknown addresses and
// accounts without a password get the same result without any mail being sent.
func (s *Service) SendCode(ctx context.Context, email string) (*SendResult, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	result := &SendResult{ExpiresIn: int(s.codeTTL / time.Second)}

	user, err := s.lookupResettable(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return result, nil
	}

	now := s.clock()
	sent, err := s.repo.CountSince(ctx, email, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("counting recent codes: %w", err)
	}
	if sent >= s.maxSendsPerHour {
		return nil, ErrSendRateLimited
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	rec := NewRecord(email, code, now, s.codeTTL)
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing verification code: %w", err)
	}

	msg, err := mail.VerificationCodeMessage(email, code, s.codeTTL, mail.PurposeForgotPassword)
	if err != nil {
		return nil, fmt.Errorf("rendering verification e-mail: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("record_id", rec.ID).Msg("verification e-mail not sent")
		return nil, fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}

	s.logger.Info().Str("record_id", rec.ID).Msg("verification code sent")
	return result, nil
}

// VerifyResult is returned by VerifyCode.
type VerifyResult struct {
	// ResetToken authorises one ResetPassword call.
	ResetToken string
}

// VerifyCode checks code against the newest pending code for email.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, ErrMissingFields
	}
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}

	user, err := s.lookupResettable(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrCodeMismatch
	}

	rec, err := s.repo.Latest(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCodeMismatch
		}
		return nil, fmt.Errorf("loading verification code: %w", err)
	}

	verifyErr := rec.Verify(code, s.clock(), s.maxAttempts)
	if !errors.Is(verifyErr, ErrTooManyAttempts) {
		if err := s.repo.Update(ctx, rec); err != nil {
			return nil, fmt.Errorf("saving verification attempt: %w", err)
		}
	}
	if verifyErr != nil {
		s.logger.Info().
			Str("record_id", rec.ID).
			Int("attempts", rec.Attempts).
			Str("reason", verifyErr.Error()).
			Msg("verification rejected")
		return nil, verifyErr
	}

	return &VerifyResult{ResetToken: rec.ID}, nil
}

// ResetRequest carries the fields of a password reset.
type ResetRequest struct {
	Email           string
	ResetToken      string
	NewPassword     string
	ConfirmPassword string
}

// ResetPassword sets a new password using a reset token from VerifyCode.
// Input is fully validated before the token is looked at.
func (s *Service) ResetPassword(ctx context.Context, req ResetRequest) error {
	email := NormalizeEmail(req.Email)
	if email == "" || req.ResetToken == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return ErrMissingFields
	}
	if len(req.NewPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if _, err := uuid.Parse(req.ResetToken); err != nil {
		return ErrInvalidResetToken
	}

	rec, err := s.repo.FindVerified(ctx, req.ResetToken, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("loading reset token: %w", err)
	}

	if err := rec.Consume(s.clock(), s.resetWindow); err != nil {
		return err
	}

	user, err := s.lookupResettable(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserCannotReset
	}

	if err := s.users.UpdatePassword(ctx, user.ID, req.NewPassword); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		s.logger.Warn().Err(err).Str("record_id", rec.ID).Msg("consumed verification record not deleted")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

// lookupResettable returns the account for email, or nil when it does not
// exist or cannot reset its password.
func (s *Service) lookupResettable(ctx context.Context, email string) (*auth.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.CanResetPassword() {
		return nil, nil
	}
	return user, nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
