// Package auth implementa los flujos de autenticación por tenant:
// login con password, login por OTP vía SMS y verificación de email.
// Cada operación resuelve primero el binding del tenant y opera solo
// a través de su conexión y su política de scope.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/multipanel/internal/email"
	"github.com/dropDatabas3/multipanel/internal/guard"
	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/rate"
	"github.com/dropDatabas3/multipanel/internal/security/password"
	"github.com/dropDatabas3/multipanel/internal/sms"
	"github.com/dropDatabas3/multipanel/internal/tenant"
	"github.com/dropDatabas3/multipanel/internal/users"
	"github.com/dropDatabas3/multipanel/internal/validation"
)

// Bindings resuelve el binding activo de un tenant para una superficie.
// Implementado por guard.Binder.
type Bindings interface {
	BindingFor(key string, s guard.Surface) (*guard.Binding, error)
}

// Limiter es la ventana de intentos por identificador.
// Implementado por rate.CacheLimiter y rate.RedisLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (rate.Result, error)
	Reset(ctx context.Context, key string) error
}

// TokenType distingue la forma del credential emitido.
type TokenType string

const (
	TokenSession TokenType = "session" // opaco, superficie web
	TokenJWT     TokenType = "jwt"     // firmado, superficie api
)

// Result es el resultado de un login exitoso.
type Result struct {
	User      *users.User
	Token     string
	TokenType TokenType
	ExpiresAt time.Time
	Guard     string
}

// Config del servicio de autenticación.
type Config struct {
	// BaseURL para armar links de verificación (ej: https://panel.example.com).
	BaseURL string
}

// Service orquesta login, OTP y verificación de email.
type Service struct {
	bindings Bindings
	sessions *SessionManager
	otp      *OTPManager
	verifier *EmailVerifier
	issuer   *Issuer

	loginLimit Limiter
	otpLimit   Limiter

	sms   sms.Sender
	email email.Sender

	baseURL string
}

func NewService(
	bindings Bindings,
	sessions *SessionManager,
	otp *OTPManager,
	verifier *EmailVerifier,
	issuer *Issuer,
	loginLimit, otpLimit Limiter,
	smsSender sms.Sender,
	emailSender email.Sender,
	cfg Config,
) *Service {
	return &Service{
		bindings:   bindings,
		sessions:   sessions,
		otp:        otp,
		verifier:   verifier,
		issuer:     issuer,
		loginLimit: loginLimit,
		otpLimit:   otpLimit,
		sms:        smsSender,
		email:      emailSender,
		baseURL:    cfg.BaseURL,
	}
}

// dummyHash absorbe el tiempo de verificación cuando el usuario no existe,
// para que el error no delate existencia por timing.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Authenticate valida credenciales contra el almacén del tenant y emite
// el credential de la superficie: token de sesión opaco para web, JWT
// para api. Usuario inexistente y password incorrecta devuelven el mismo
// error.
func (s *Service) Authenticate(ctx context.Context, tenantKey string, surface guard.Surface, identifier, plainPassword string) (*Result, error) {
	log := logger.From(ctx).With(logger.Component("auth.Service"), logger.Tenant(tenantKey), logger.Surface(string(surface)))

	b, err := s.bindings.BindingFor(tenantKey, surface)
	if err != nil {
		return nil, err
	}
	if !hasMethod(b.AuthMethods, tenant.AuthEmail) {
		return nil, ErrMethodNotEnabled
	}

	limitKey := "login:" + tenantKey + ":" + identifier
	res, err := s.loginLimit.Allow(ctx, limitKey)
	if err != nil {
		return nil, fmt.Errorf("auth: rate check: %w", err)
	}
	if !res.Allowed {
		log.Warn("login rate limited", logger.Int("hits", int(res.CurrentHits)))
		return nil, &RateLimitedError{RetryAfter: res.RetryAfter}
	}

	store := users.NewStore(b.Conn, b.Policy)
	u, err := s.lookup(ctx, store, identifier)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			password.Verify(plainPassword, dummyHash)
			return nil, ErrCredentialsInvalid
		}
		return nil, err
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		log.Info("login failed", logger.UserID(u.ID.String()))
		return nil, ErrCredentialsInvalid
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}

	if err := s.loginLimit.Reset(ctx, limitKey); err != nil {
		log.Warn("rate reset failed", logger.Err(err))
	}
	if err := store.TouchLogin(ctx, u.ID); err != nil {
		log.Warn("touch login failed", logger.Err(err))
	}

	out, err := s.issueFor(ctx, b, u)
	if err != nil {
		return nil, err
	}
	log.Info("login ok", logger.UserID(u.ID.String()), logger.String("guard", b.GuardName()))
	return out, nil
}

// SendOtp genera un código y lo entrega por SMS al teléfono de un usuario
// existente del tenant. Un teléfono desconocido devuelve el mismo error
// que credenciales inválidas.
func (s *Service) SendOtp(ctx context.Context, tenantKey, phone string) error {
	log := logger.From(ctx).With(logger.Component("auth.Service"), logger.Tenant(tenantKey), logger.Phone(phone))

	b, err := s.bindings.BindingFor(tenantKey, guard.SurfaceWeb)
	if err != nil {
		return err
	}
	if !hasMethod(b.AuthMethods, tenant.AuthSMS) {
		return ErrMethodNotEnabled
	}

	phone = validation.NormalizePhone(phone)
	if !validation.ValidPhone(phone) {
		return ErrCredentialsInvalid
	}

	limitKey := "otp_send:" + tenantKey + ":" + phone
	res, err := s.otpLimit.Allow(ctx, limitKey)
	if err != nil {
		return fmt.Errorf("auth: rate check: %w", err)
	}
	if !res.Allowed {
		return &RateLimitedError{RetryAfter: res.RetryAfter}
	}

	store := users.NewStore(b.Conn, b.Policy)
	u, err := store.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ErrCredentialsInvalid
		}
		return err
	}
	if !u.Active {
		return ErrAccountInactive
	}

	code, err := s.otp.Issue(ctx, tenantKey, phone)
	if err != nil {
		return err
	}
	minutes := int(s.otp.TTL().Minutes())
	if _, err := s.sms.Send(ctx, phone, sms.OTPMessage(b.DisplayName, code, minutes)); err != nil {
		log.Error("otp delivery failed", logger.Err(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	log.Info("otp sent", logger.UserID(u.ID.String()))
	return nil
}

// VerifyOtp consume el código y, si es válido, loguea al usuario en la
// superficie pedida. Marca el teléfono como verificado.
func (s *Service) VerifyOtp(ctx context.Context, tenantKey string, surface guard.Surface, phone, code string) (*Result, error) {
	log := logger.From(ctx).With(logger.Component("auth.Service"), logger.Tenant(tenantKey), logger.Phone(phone))

	b, err := s.bindings.BindingFor(tenantKey, surface)
	if err != nil {
		return nil, err
	}
	if !hasMethod(b.AuthMethods, tenant.AuthSMS) {
		return nil, ErrMethodNotEnabled
	}

	phone = validation.NormalizePhone(phone)
	if err := s.otp.Verify(ctx, tenantKey, phone, code); err != nil {
		return nil, err
	}

	store := users.NewStore(b.Conn, b.Policy)
	u, err := store.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrCredentialsInvalid
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}

	if u.PhoneVerifiedAt == nil {
		if err := store.MarkPhoneVerified(ctx, u.ID); err != nil {
			log.Warn("mark phone verified failed", logger.Err(err))
		}
	}
	if err := store.TouchLogin(ctx, u.ID); err != nil {
		log.Warn("touch login failed", logger.Err(err))
	}

	out, err := s.issueFor(ctx, b, u)
	if err != nil {
		return nil, err
	}
	log.Info("otp login ok", logger.UserID(u.ID.String()))
	return out, nil
}

// SendEmailVerification emite un token de verificación y lo envía por
// correo al usuario del tenant.
func (s *Service) SendEmailVerification(ctx context.Context, tenantKey, address string) error {
	log := logger.From(ctx).With(logger.Component("auth.Service"), logger.Tenant(tenantKey), logger.Email(address))

	b, err := s.bindings.BindingFor(tenantKey, guard.SurfaceWeb)
	if err != nil {
		return err
	}
	store := users.NewStore(b.Conn, b.Policy)
	u, err := store.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ErrCredentialsInvalid
		}
		return err
	}

	raw, err := s.verifier.Issue(ctx, tenantKey, u.ID.String())
	if err != nil {
		return err
	}
	verifyURL := fmt.Sprintf("%s/v1/auth/%s/verify-email?token=%s", s.baseURL, tenantKey, raw)
	minutes := int(s.verifier.TTL().Minutes())
	html, text, err := email.RenderVerification(b.DisplayName, verifyURL, minutes)
	if err != nil {
		return err
	}
	subject := b.DisplayName + ": verify your email"
	if err := s.email.Send(ctx, u.Email, subject, html, text); err != nil {
		log.Error("verification email failed", logger.Err(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	log.Info("verification email sent", logger.UserID(u.ID.String()))
	return nil
}

// VerifyEmail consume el token y marca el email del usuario como
// verificado en el almacén de su tenant.
func (s *Service) VerifyEmail(ctx context.Context, raw string) error {
	tenantKey, userID, err := s.verifier.Consume(ctx, raw)
	if err != nil {
		return err
	}
	b, err := s.bindings.BindingFor(tenantKey, guard.SurfaceWeb)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrTokenInvalid
	}
	store := users.NewStore(b.Conn, b.Policy)
	if err := store.MarkEmailVerified(ctx, id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	logger.From(ctx).Info("email verified", logger.Tenant(tenantKey), logger.UserID(userID))
	return nil
}

// Logout destruye la sesión web. Idempotente; un token ya vencido no es error.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.sessions.Destroy(ctx, rawToken)
}

// ResolveSession valida un token de sesión web y devuelve su estado.
func (s *Service) ResolveSession(ctx context.Context, rawToken string) (*Session, error) {
	sess, err := s.sessions.Resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	// La sesión sobrevive en cache, pero el tenant pudo desactivarse después.
	if _, err := s.bindings.BindingFor(sess.TenantKey, guard.SurfaceWeb); err != nil {
		return nil, ErrTokenInvalid
	}
	return sess, nil
}

func (s *Service) issueFor(ctx context.Context, b *guard.Binding, u *users.User) (*Result, error) {
	switch b.Surface {
	case guard.SurfaceAPI:
		tok, exp, err := s.issuer.Issue(u.ID.String(), b.GuardName(), b.TenantKey)
		if err != nil {
			return nil, err
		}
		return &Result{User: u, Token: tok, TokenType: TokenJWT, ExpiresAt: exp, Guard: b.GuardName()}, nil
	default:
		tok, exp, err := s.sessions.Create(ctx, Session{
			UserID:    u.ID.String(),
			TenantKey: b.TenantKey,
			Guard:     b.GuardName(),
		})
		if err != nil {
			return nil, err
		}
		return &Result{User: u, Token: tok, TokenType: TokenSession, ExpiresAt: exp, Guard: b.GuardName()}, nil
	}
}

func (s *Service) lookup(ctx context.Context, store *users.Store, identifier string) (*users.User, error) {
	if norm := validation.NormalizePhone(identifier); validation.ValidPhone(norm) {
		return store.GetByPhone(ctx, norm)
	}
	return store.GetByEmail(ctx, identifier)
}

func hasMethod(methods []tenant.AuthMethod, m tenant.AuthMethod) bool {
	for _, am := range methods {
		if am == m {
			return true
		}
	}
	return false
}
