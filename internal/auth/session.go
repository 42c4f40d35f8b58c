package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/multipanel/internal/cache"
	token "github.com/dropDatabas3/multipanel/internal/security/token"
)

// Session es el estado de una sesión web viva. Se guarda en cache
// bajo el hash del token opaco, nunca bajo el token mismo.
type Session struct {
	UserID    string    `json:"user_id"`
	TenantKey string    `json:"tenant_key"`
	Guard     string    `json:"guard"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionManager emite y resuelve tokens de sesión opacos.
type SessionManager struct {
	cache cache.Client
	ttl   time.Duration
}

func NewSessionManager(c cache.Client, ttl time.Duration) *SessionManager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{cache: c, ttl: ttl}
}

func sessionKey(tokenHash string) string {
	return "session:" + tokenHash
}

// Create emite un token opaco y persiste la sesión.
func (m *SessionManager) Create(ctx context.Context, s Session) (string, time.Time, error) {
	raw, err := token.GenerateOpaqueToken(32)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: generate session token: %w", err)
	}
	s.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(s)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: marshal session: %w", err)
	}
	if err := m.cache.Set(ctx, sessionKey(token.SHA256Base64URL(raw)), string(payload), m.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: store session: %w", err)
	}
	return raw, s.CreatedAt.Add(m.ttl), nil
}

// Resolve valida un token opaco y devuelve la sesión asociada.
func (m *SessionManager) Resolve(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	payload, err := m.cache.Get(ctx, sessionKey(token.SHA256Base64URL(raw)))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("auth: resolve session: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, ErrTokenInvalid
	}
	return &s, nil
}

// Destroy invalida el token. Idempotente.
func (m *SessionManager) Destroy(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return m.cache.Delete(ctx, sessionKey(token.SHA256Base64URL(raw)))
}
