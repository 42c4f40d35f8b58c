package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/multipanel/internal/cache"
	token "github.com/dropDatabas3/multipanel/internal/security/token"
)

const verifyTokenTTL = 30 * time.Minute

// EmailVerifier emite tokens de verificación de email de un solo uso.
type EmailVerifier struct {
	cache cache.Client
	ttl   time.Duration
}

func NewEmailVerifier(c cache.Client) *EmailVerifier {
	return &EmailVerifier{cache: c, ttl: verifyTokenTTL}
}

func (v *EmailVerifier) TTL() time.Duration { return v.ttl }

func verifyKey(tokenHash string) string {
	return "email_verify:" + tokenHash
}

// Issue genera un token opaco ligado al usuario y tenant dados.
func (v *EmailVerifier) Issue(ctx context.Context, tenantKey, userID string) (string, error) {
	raw, err := token.GenerateOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("auth: generate verify token: %w", err)
	}
	value := tenantKey + ":" + userID
	if err := v.cache.Set(ctx, verifyKey(token.SHA256Base64URL(raw)), value, v.ttl); err != nil {
		return "", fmt.Errorf("auth: store verify token: %w", err)
	}
	return raw, nil
}

// Consume valida y consume el token, devolviendo tenant y usuario.
func (v *EmailVerifier) Consume(ctx context.Context, raw string) (tenantKey, userID string, err error) {
	if raw == "" {
		return "", "", ErrTokenInvalid
	}
	value, err := v.cache.GetDel(ctx, verifyKey(token.SHA256Base64URL(raw)))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", "", ErrTokenInvalid
		}
		return "", "", fmt.Errorf("auth: consume verify token: %w", err)
	}
	for i := 0; i < len(value); i++ {
		if value[i] == ':' {
			return value[:i], value[i+1:], nil
		}
	}
	return "", "", ErrTokenInvalid
}
