package verification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/auth"
	"github.com/ntugo/ntugo/internal/mail"
	"github.com/ntugo/ntugo/internal/verification"
)

// recordingMailer captures sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	svc    *verification.Service
	users  *auth.Service
	repo   *auth.InMemoryUserRepository
	mailer *recordingMailer
	now    time.Time
	code   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:   auth.NewInMemoryUserRepository(),
		mailer: &recordingMailer{},
		now:    time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		code:   "482913",
	}
	f.users = auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{SigningKey: "test-key"}),
		UserRepo:   f.repo,
		Logger:     zerolog.Nop(),
	})
	f.svc = verification.NewService(verification.ServiceConfig{
		Repository:   verification.NewMemoryRepository(),
		Users:        f.users,
		Mailer:       f.mailer,
		GenerateCode: func() (string, error) { return f.code, nil },
		Clock:        func() time.Time { return f.now },
		Logger:       zerolog.Nop(),
	})

	_, err := f.users.Register(context.Background(), &auth.RegisterRequest{
		Email:    "b10901001@ntu.edu.tw",
		Password: "oldpass1",
		Name:     "Lin",
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.Create(context.Background(), &auth.User{
		ID:       "usr_google",
		Email:    "google@ntu.edu.tw",
		Provider: auth.ProviderGoogle,
	}))
	return f
}

func (f *fixture) sendAndVerify(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	require.NoError(t, err)
	res, err := f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", f.code)
	require.NoError(t, err)
	return res.ResetToken
}

func TestService_FullResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.SendCode(ctx, " B10901001@NTU.edu.tw ")
	require.NoError(t, err)
	assert.Equal(t, 600, sent.ExpiresIn)
	require.Equal(t, 1, f.mailer.count())
	assert.Contains(t, f.mailer.sent[0].Text, f.code)
	assert.Equal(t, "b10901001@ntu.edu.tw", f.mailer.sent[0].To)

	f.now = f.now.Add(2 * time.Minute)
	res, err := f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", f.code)
	require.NoError(t, err)
	require.NotEmpty(t, res.ResetToken)

	f.now = f.now.Add(5 * time.Minute)
	err = f.svc.ResetPassword(ctx, verification.ResetRequest{
		Email:           "b10901001@ntu.edu.tw",
		ResetToken:      res.ResetToken,
		NewPassword:     "newpass1",
		ConfirmPassword: "newpass1",
	})
	require.NoError(t, err)

	_, err = f.users.Login(ctx, &auth.LoginRequest{Email: "b10901001@ntu.edu.tw", Password: "newpass1"})
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, verification.ResetRequest{
		Email:           "b10901001@ntu.edu.tw",
		ResetToken:      res.ResetToken,
		NewPassword:     "another1",
		ConfirmPassword: "another1",
	})
	assert.ErrorIs(t, err, verification.ErrInvalidResetToken, "token is single use")
}

func TestService_VerifyCode_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", "000000")
		assert.ErrorIs(t, err, verification.ErrCodeMismatch)
	}

	_, err = f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", f.code)
	assert.ErrorIs(t, err, verification.ErrTooManyAttempts)
}

func TestService_VerifyCode_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyCode(ctx, "", "123456")
	assert.ErrorIs(t, err, verification.ErrMissingFields)

	_, err = f.svc.VerifyCode(ctx, "not-an-email", "123456")
	assert.ErrorIs(t, err, verification.ErrInvalidEmail)

	_, err = f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", "12345a")
	assert.ErrorIs(t, err, verification.ErrInvalidCode)

	_, err = f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", "123456")
	assert.ErrorIs(t, err, verification.ErrCodeMismatch, "no code issued")
}

func TestService_VerifyCode_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	_, err = f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", f.code)
	assert.ErrorIs(t, err, verification.ErrCodeExpired)
}

func TestService_ResetPassword_WindowExpired(t *testing.T) {
	f := newFixture(t)
	token := f.sendAndVerify(t)

	f.now = f.now.Add(31 * time.Minute)
	err := f.svc.ResetPassword(context.Background(), verification.ResetRequest{
		Email:           "b10901001@ntu.edu.tw",
		ResetToken:      token,
		NewPassword:     "newpass1",
		ConfirmPassword: "newpass1",
	})
	assert.ErrorIs(t, err, verification.ErrResetTokenExpired)
}

func TestService_ResetPassword_ValidatesBeforeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  verification.ResetRequest
		want error
	}{
		{
			name: "missing fields",
			req:  verification.ResetRequest{Email: "b10901001@ntu.edu.tw", ResetToken: "x"},
			want: verification.ErrMissingFields,
		},
		{
			name: "too short",
			req:  verification.ResetRequest{Email: "b10901001@ntu.edu.tw", ResetToken: "x", NewPassword: "abc", ConfirmPassword: "abc"},
			want: verification.ErrPasswordTooShort,
		},
		{
			name: "mismatch with bogus token",
			req:  verification.ResetRequest{Email: "b10901001@ntu.edu.tw", ResetToken: "x", NewPassword: "newpass1", ConfirmPassword: "newpass2"},
			want: verification.ErrPasswordMismatch,
		},
		{
			name: "bogus token",
			req:  verification.ResetRequest{Email: "b10901001@ntu.edu.tw", ResetToken: "x", NewPassword: "newpass1", ConfirmPassword: "newpass1"},
			want: verification.ErrInvalidResetToken,
		},
		{
			name: "unknown token",
			req:  verification.ResetRequest{Email: "b10901001@ntu.edu.tw", ResetToken: "0b7c6a52-9c61-4d4b-9a3b-0e8f6f6f6f6f", NewPassword: "newpass1", ConfirmPassword: "newpass1"},
			want: verification.ErrInvalidResetToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.svc.ResetPassword(ctx, tt.req), tt.want)
		})
	}
}

func TestService_ResetPassword_TokenBoundToEmail(t *testing.T) {
	f := newFixture(t)
	token := f.sendAndVerify(t)

	err := f.svc.ResetPassword(context.Background(), verification.ResetRequest{
		Email:           "someone@ntu.edu.tw",
		ResetToken:      token,
		NewPassword:     "newpass1",
		ConfirmPassword: "newpass1",
	})
	assert.ErrorIs(t, err, verification.ErrInvalidResetToken)
}

func TestService_SendCode_EnumerationResistant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	known, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	require.NoError(t, err)

	unknown, err := f.svc.SendCode(ctx, "nobody@ntu.edu.tw")
	require.NoError(t, err)

	google, err := f.svc.SendCode(ctx, "google@ntu.edu.tw")
	require.NoError(t, err)

	assert.Equal(t, known, unknown)
	assert.Equal(t, known, google)
	assert.Equal(t, 1, f.mailer.count())

	_, err = f.svc.SendCode(ctx, "nope")
	assert.ErrorIs(t, err, verification.ErrInvalidEmail)
}

func TestService_SendCode_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < f.svc.MaxSendsPerHour(); i++ {
		_, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
		require.NoError(t, err)
		f.now = f.now.Add(time.Minute)
	}

	_, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	assert.ErrorIs(t, err, verification.ErrSendRateLimited)

	f.now = f.now.Add(time.Hour)
	_, err = f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	assert.NoError(t, err)
}

func TestService_SendCode_MailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp: connection refused")

	_, err := f.svc.SendCode(context.Background(), "b10901001@ntu.edu.tw")
	assert.ErrorIs(t, err, verification.ErrMailDelivery)
}

func TestService_NewestCodeWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	require.NoError(t, err)

	first := f.code
	f.code = "111222"
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.SendCode(ctx, "b10901001@ntu.edu.tw")
	require.NoError(t, err)

	_, err = f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", first)
	assert.ErrorIs(t, err, verification.ErrCodeMismatch)

	_, err = f.svc.VerifyCode(ctx, "b10901001@ntu.edu.tw", "111222")
	assert.NoError(t, err)
}
