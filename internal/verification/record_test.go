package verification_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/verification"
)

func TestRecord_Verify(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := verification.NewRecord("a@ntu.edu.tw", "123456", now, 10*time.Minute)

	assert.ErrorIs(t, rec.Verify("654321", now, 5), verification.ErrCodeMismatch)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, verification.StatePending, rec.State)

	require.NoError(t, rec.Verify("123456", now.Add(time.Minute), 5))
	assert.Equal(t, verification.StateVerified, rec.State)
	require.NotNil(t, rec.VerifiedAt)
	assert.Equal(t, 2, rec.Attempts)

	assert.ErrorIs(t, rec.Verify("123456", now, 5), verification.ErrNotPending)
}

func TestRecord_Verify_AttemptLimit(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := verification.NewRecord("a@ntu.edu.tw", "123456", now, 10*time.Minute)

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, rec.Verify("000000", now, 5), verification.ErrCodeMismatch)
	}
	assert.ErrorIs(t, rec.Verify("123456", now, 5), verification.ErrTooManyAttempts)
	assert.Equal(t, 5, rec.Attempts)
	assert.Equal(t, verification.StatePending, rec.State)
}

func TestRecord_Verify_ExpiresAtBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := verification.NewRecord("a@ntu.edu.tw", "123456", now, 10*time.Minute)

	assert.ErrorIs(t, rec.Verify("123456", now.Add(10*time.Minute), 5), verification.ErrCodeExpired)
	assert.Equal(t, 1, rec.Attempts)
}

func TestRecord_Consume(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	pending := verification.NewRecord("a@ntu.edu.tw", "123456", now, 10*time.Minute)
	assert.ErrorIs(t, pending.Consume(now, 30*time.Minute), verification.ErrNotVerified)

	rec := verification.NewRecord("a@ntu.edu.tw", "123456", now, 10*time.Minute)
	require.NoError(t, rec.Verify("123456", now, 5))
	assert.ErrorIs(t, rec.Consume(now.Add(31*time.Minute), 30*time.Minute), verification.ErrResetTokenExpired)

	require.NoError(t, rec.Consume(now.Add(30*time.Minute), 30*time.Minute))
	assert.Equal(t, verification.StateConsumed, rec.State)
	assert.ErrorIs(t, rec.Consume(now, 30*time.Minute), verification.ErrNotVerified)
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := verification.GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
