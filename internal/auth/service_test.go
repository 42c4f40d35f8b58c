package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/multipanel/internal/cache"
	"github.com/dropDatabas3/multipanel/internal/guard"
	"github.com/dropDatabas3/multipanel/internal/rate"
	"github.com/dropDatabas3/multipanel/internal/tenant"
)

type fakeBindings struct {
	bindings map[string]*guard.Binding
	err      error
}

func (f *fakeBindings) BindingFor(key string, s guard.Surface) (*guard.Binding, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bindings[key+":"+string(s)]
	if !ok {
		return nil, guard.ErrUnknownTenant
	}
	return b, nil
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
	resets     int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (rate.Result, error) {
	return rate.Result{Allowed: f.allowed, RetryAfter: f.retryAfter}, nil
}

func (f *fakeLimiter) Reset(ctx context.Context, key string) error {
	f.resets++
	return nil
}

func newTestService(bindings Bindings, loginLimit, otpLimit Limiter) *Service {
	mem := cache.NewMemory("test", 0)
	return NewService(
		bindings,
		NewSessionManager(mem, time.Hour),
		NewOTPManager(mem),
		NewEmailVerifier(mem),
		NewIssuer("multipanel", []byte("test-secret")),
		loginLimit, otpLimit,
		nil, nil,
		Config{BaseURL: "https://panel.test"},
	)
}

func TestAuthenticate_UnknownTenant(t *testing.T) {
	s := newTestService(&fakeBindings{}, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	_, err := s.Authenticate(context.Background(), "ghost", guard.SurfaceWeb, "a@b.com", "pw")
	assert.ErrorIs(t, err, guard.ErrUnknownTenant)
}

func TestAuthenticate_TenantInactive(t *testing.T) {
	s := newTestService(&fakeBindings{err: guard.ErrTenantInactive}, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	_, err := s.Authenticate(context.Background(), "acme", guard.SurfaceWeb, "a@b.com", "pw")
	assert.ErrorIs(t, err, guard.ErrTenantInactive)
}

func TestAuthenticate_MethodNotEnabled(t *testing.T) {
	fb := &fakeBindings{bindings: map[string]*guard.Binding{
		"acme:web": {
			TenantKey:   "acme",
			Surface:     guard.SurfaceWeb,
			AuthMethods: []tenant.AuthMethod{tenant.AuthSMS},
		},
	}}
	s := newTestService(fb, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	_, err := s.Authenticate(context.Background(), "acme", guard.SurfaceWeb, "a@b.com", "pw")
	assert.ErrorIs(t, err, ErrMethodNotEnabled)
}

func TestAuthenticate_RateLimited(t *testing.T) {
	fb := &fakeBindings{bindings: map[string]*guard.Binding{
		"acme:web": {
			TenantKey:   "acme",
			Surface:     guard.SurfaceWeb,
			AuthMethods: []tenant.AuthMethod{tenant.AuthEmail},
		},
	}}
	s := newTestService(fb, &fakeLimiter{allowed: false, retryAfter: 9 * time.Minute}, &fakeLimiter{allowed: true})

	_, err := s.Authenticate(context.Background(), "acme", guard.SurfaceWeb, "a@b.com", "pw")
	rl, ok := IsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 9*time.Minute, rl.RetryAfter)
}

func TestSendOtp_MethodNotEnabled(t *testing.T) {
	fb := &fakeBindings{bindings: map[string]*guard.Binding{
		"acme:web": {
			TenantKey:   "acme",
			Surface:     guard.SurfaceWeb,
			AuthMethods: []tenant.AuthMethod{tenant.AuthEmail},
		},
	}}
	s := newTestService(fb, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	err := s.SendOtp(context.Background(), "acme", "9812345678")
	assert.ErrorIs(t, err, ErrMethodNotEnabled)
}

func TestSendOtp_BadPhone(t *testing.T) {
	fb := &fakeBindings{bindings: map[string]*guard.Binding{
		"acme:web": {
			TenantKey:   "acme",
			Surface:     guard.SurfaceWeb,
			AuthMethods: []tenant.AuthMethod{tenant.AuthSMS},
		},
	}}
	s := newTestService(fb, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	err := s.SendOtp(context.Background(), "acme", "abc")
	assert.ErrorIs(t, err, ErrCredentialsInvalid)
}

func TestVerifyOtp_BadCode(t *testing.T) {
	fb := &fakeBindings{bindings: map[string]*guard.Binding{
		"acme:web": {
			TenantKey:   "acme",
			Surface:     guard.SurfaceWeb,
			AuthMethods: []tenant.AuthMethod{tenant.AuthSMS},
		},
	}}
	s := newTestService(fb, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	_, err := s.VerifyOtp(context.Background(), "acme", guard.SurfaceWeb, "9812345678", "000000")
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestVerifyEmail_BadToken(t *testing.T) {
	s := newTestService(&fakeBindings{}, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})
	err := s.VerifyEmail(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResolveSession_TenantGoneInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBindings{bindings: map[string]*guard.Binding{}}
	s := newTestService(fb, &fakeLimiter{allowed: true}, &fakeLimiter{allowed: true})

	raw, _, err := s.sessions.Create(ctx, Session{UserID: "u1", TenantKey: "acme", Guard: "acme"})
	require.NoError(t, err)

	_, err = s.ResolveSession(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
