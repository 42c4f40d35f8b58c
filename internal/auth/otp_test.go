package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/multipanel/internal/cache"
)

func newOTP(t *testing.T) *OTPManager {
	t.Helper()
	return NewOTPManager(cache.NewMemory("test", 0))
}

func TestOTP_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	m := newOTP(t)

	code, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, m.Verify(ctx, "acme", "9812345678", code))
}

func TestOTP_SingleUse(t *testing.T) {
	ctx := context.Background()
	m := newOTP(t)

	code, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)

	require.NoError(t, m.Verify(ctx, "acme", "9812345678", code))
	// El mismo código ya fue consumido.
	assert.ErrorIs(t, m.Verify(ctx, "acme", "9812345678", code), ErrOTPInvalid)
}

func TestOTP_WrongCodeThenCorrect(t *testing.T) {
	ctx := context.Background()
	m := newOTP(t)

	code, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Verify(ctx, "acme", "9812345678", "000000"), ErrOTPInvalid)
	require.NoError(t, m.Verify(ctx, "acme", "9812345678", code))
}

func TestOTP_AttemptBudget(t *testing.T) {
	ctx := context.Background()
	m := newOTP(t)

	code, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)

	for i := 0; i < otpMaxAttempts; i++ {
		assert.ErrorIs(t, m.Verify(ctx, "acme", "9812345678", "000000"), ErrOTPInvalid)
	}
	// Presupuesto agotado: incluso el código correcto ya no sirve.
	assert.ErrorIs(t, m.Verify(ctx, "acme", "9812345678", code), ErrTooManyAttempts)
}

func TestOTP_ReissueResetsBudget(t *testing.T) {
	ctx := context.Background()
	m := newOTP(t)

	_, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)
	for i := 0; i < otpMaxAttempts+1; i++ {
		_ = m.Verify(ctx, "acme", "9812345678", "000000")
	}

	code, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)
	require.NoError(t, m.Verify(ctx, "acme", "9812345678", code))
}

func TestOTP_TenantsIndependent(t *testing.T) {
	ctx := context.Background()
	m := newOTP(t)

	codeA, err := m.Issue(ctx, "acme", "9812345678")
	require.NoError(t, err)
	codeB, err := m.Issue(ctx, "globex", "9812345678")
	require.NoError(t, err)

	require.NoError(t, m.Verify(ctx, "acme", "9812345678", codeA))
	require.NoError(t, m.Verify(ctx, "globex", "9812345678", codeB))
}

func TestGenerateCode_SixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}
