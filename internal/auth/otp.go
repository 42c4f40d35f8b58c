package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dropDatabas3/multipanel/internal/cache"
)

const (
	otpDigits      = 6
	otpDefaultTTL  = 5 * time.Minute
	otpMaxAttempts = 5
)

// OTPManager emite y verifica códigos de un solo uso.
// El código se consume atómicamente: a lo sumo una verificación exitosa
// por código emitido, incluso bajo requests concurrentes.
type OTPManager struct {
	cache       cache.Client
	ttl         time.Duration
	maxAttempts int
}

func NewOTPManager(c cache.Client) *OTPManager {
	return &OTPManager{cache: c, ttl: otpDefaultTTL, maxAttempts: otpMaxAttempts}
}

// TTL del código vigente.
func (m *OTPManager) TTL() time.Duration { return m.ttl }

func otpKey(tenant, phone string) string {
	return "otp:" + tenant + ":" + phone
}

func otpAttemptsKey(tenant, phone string) string {
	return "otp_attempts:" + tenant + ":" + phone
}

// GenerateCode produce un código numérico de 6 dígitos con crypto/rand.
func GenerateCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("auth: generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// Issue genera y guarda un código para el teléfono dado. Emitir de nuevo
// reemplaza el código anterior y reinicia el presupuesto de intentos.
func (m *OTPManager) Issue(ctx context.Context, tenant, phone string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := m.cache.Set(ctx, otpKey(tenant, phone), code, m.ttl); err != nil {
		return "", fmt.Errorf("auth: store otp: %w", err)
	}
	if err := m.cache.Delete(ctx, otpAttemptsKey(tenant, phone)); err != nil {
		return "", fmt.Errorf("auth: reset otp attempts: %w", err)
	}
	return code, nil
}

// Verify valida el código. Un intento fallido descuenta presupuesto;
// superado el máximo el código se invalida aunque todavía no expiró.
func (m *OTPManager) Verify(ctx context.Context, tenant, phone, code string) error {
	attempts, err := m.cache.Incr(ctx, otpAttemptsKey(tenant, phone), m.ttl)
	if err != nil {
		return fmt.Errorf("auth: count otp attempt: %w", err)
	}
	if attempts > int64(m.maxAttempts) {
		_ = m.cache.Delete(ctx, otpKey(tenant, phone))
		return ErrTooManyAttempts
	}

	stored, err := m.cache.Get(ctx, otpKey(tenant, phone))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return ErrOTPInvalid
		}
		return fmt.Errorf("auth: read otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrOTPInvalid
	}

	// Consumo single-use: si otro request llegó primero, GetDel ya no
	// encuentra la key y este intento pierde.
	consumed, err := m.cache.GetDel(ctx, otpKey(tenant, phone))
	if err != nil || consumed != code {
		return ErrOTPInvalid
	}
	_ = m.cache.Delete(ctx, otpAttemptsKey(tenant, phone))
	return nil
}
