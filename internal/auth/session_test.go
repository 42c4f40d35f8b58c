package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/multipanel/internal/cache"
)

func TestSession_Roundtrip(t *testing.T) {
	ctx := context.Background()
	m := NewSessionManager(cache.NewMemory("test", 0), time.Hour)

	raw, exp, err := m.Create(ctx, Session{UserID: "u1", TenantKey: "acme", Guard: "acme"})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.True(t, exp.After(time.Now()))

	got, err := m.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "acme", got.TenantKey)
	assert.Equal(t, "acme", got.Guard)
}

func TestSession_UnknownToken(t *testing.T) {
	m := NewSessionManager(cache.NewMemory("test", 0), time.Hour)
	_, err := m.Resolve(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSession_Destroy(t *testing.T) {
	ctx := context.Background()
	m := NewSessionManager(cache.NewMemory("test", 0), time.Hour)

	raw, _, err := m.Create(ctx, Session{UserID: "u1", TenantKey: "acme", Guard: "acme"})
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, raw))
	_, err = m.Resolve(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Destroy es idempotente.
	require.NoError(t, m.Destroy(ctx, raw))
}

func TestEmailVerifier_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	v := NewEmailVerifier(cache.NewMemory("test", 0))

	raw, err := v.Issue(ctx, "acme", "u1")
	require.NoError(t, err)

	tenantKey, userID, err := v.Consume(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "acme", tenantKey)
	assert.Equal(t, "u1", userID)

	_, _, err = v.Consume(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
