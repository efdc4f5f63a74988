package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Predefined service errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation failed")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken if the address is in use.
	Create(ctx context.Context, user *User) error

	// FindByID finds a user by their ID.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail finds a user by their normalised e-mail address.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePasswordHash replaces a user's password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error
}

// ValidationError carries the field errors of a rejected request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.Fields[0].Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Service provides account operations.
type Service struct {
	jwtService *JWTService
	userRepo   UserRepository
	clock      func() time.Time
	logger     zerolog.Logger
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService *JWTService
	UserRepo   UserRepository
	Clock      func() time.Time
	Logger     zerolog.Logger
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		jwtService: cfg.JWTService,
		userRepo:   cfg.UserRepo,
		clock:      clock,
		logger:     cfg.Logger,
	}
}

// Register creates a local account and signs it in.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	email := normalizeEmail(req.Email)
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	user := &User{
		ID:           generateUserID(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Provider:     ProviderLocal,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return s.issue(user)
}

// Login checks credentials and returns a new access token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// ValidateAccessToken validates an access token and returns the user ID.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// FindByEmail retrieves a user by e-mail address.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.userRepo.FindByEmail(ctx, normalizeEmail(email))
}

// UpdatePassword hashes and stores a new password for the user.
func (s *Service) UpdatePassword(ctx context.Context, userID, password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Fields: []FieldError{{
			Field:   "password",
			Message: "password must be at least 6 characters",
			Code:    "TOO_SHORT",
		}}}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePasswordHash(ctx, userID, hash, s.clock())
}

func (s *Service) issue(user *User) (*TokenResponse, error) {
	token, expiresAt, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	return &TokenResponse{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// generateUserID generates a unique user ID.
func generateUserID() string {
	return "usr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
