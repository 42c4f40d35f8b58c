package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCredentialsInvalid cubre usuario inexistente y password incorrecta.
	// Nunca se distingue entre ambos casos hacia afuera.
	ErrCredentialsInvalid = errors.New("auth: invalid credentials")

	// ErrAccountInactive indica cuenta desactivada.
	ErrAccountInactive = errors.New("auth: account inactive")

	// ErrMethodNotEnabled indica que el tenant no expone el método pedido.
	ErrMethodNotEnabled = errors.New("auth: auth method not enabled for tenant")

	// ErrOTPInvalid cubre código incorrecto, expirado o ya consumido.
	ErrOTPInvalid = errors.New("auth: invalid or expired code")

	// ErrTooManyAttempts indica presupuesto de intentos de OTP agotado.
	ErrTooManyAttempts = errors.New("auth: too many verification attempts")

	// ErrTokenInvalid indica token de sesión o verificación inválido.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrDeliveryFailed indica que el canal de entrega (SMS/email) falló.
	ErrDeliveryFailed = errors.New("auth: delivery failed")
)

// RateLimitedError indica que el caller excedió la ventana de intentos.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("auth: rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// IsRateLimited reporta si err es un RateLimitedError y lo devuelve.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
