package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/multipanel/internal/auth"
	"github.com/dropDatabas3/multipanel/internal/guard"
	"github.com/dropDatabas3/multipanel/internal/metrics"
	"github.com/dropDatabas3/multipanel/internal/users"
)

// AuthHandler expone los flujos de login por panel.
type AuthHandler struct {
	svc      *auth.Service
	bindings auth.Bindings
}

func NewAuthHandler(svc *auth.Service, bindings auth.Bindings) *AuthHandler {
	return &AuthHandler{svc: svc, bindings: bindings}
}

func surfaceParam(r *http.Request) (guard.Surface, bool) {
	switch chi.URLParam(r, "surface") {
	case "web":
		return guard.SurfaceWeb, true
	case "api":
		return guard.SurfaceAPI, true
	}
	return "", false
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"` // alias de identifier
	Password   string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt int64       `json:"expires_at"`
	Guard     string      `json:"guard"`
	User      *users.User `json:"user"`
}

// Login autentica con identifier+password en la superficie pedida.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	surface, ok := surfaceParam(r)
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown_surface", "superficie desconocida")
		return
	}
	var req loginRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	ident := req.Identifier
	if ident == "" {
		ident = req.Email
	}
	key := chi.URLParam(r, "key")

	res, err := h.svc.Authenticate(r.Context(), key, surface, ident, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(string(surface), "failed").Inc()
		h.writeAuthError(w, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues(string(surface), "ok").Inc()
	WriteJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: string(res.TokenType),
		ExpiresAt: res.ExpiresAt.Unix(),
		Guard:     res.Guard,
		User:      res.User,
	})
}

type otpSendRequest struct {
	Phone string `json:"phone"`
}

// OtpSend dispara el envío del código. La respuesta es genérica: no
// revela si el teléfono existe en el panel.
func (h *AuthHandler) OtpSend(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")

	err := h.svc.SendOtp(r.Context(), key, req.Phone)
	if err != nil && !errors.Is(err, auth.ErrCredentialsInvalid) && !errors.Is(err, auth.ErrAccountInactive) {
		h.writeAuthError(w, err)
		return
	}
	if err == nil {
		metrics.OtpSent.Inc()
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"message": "si el teléfono está registrado, se envió un código",
	})
}

type otpVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// OtpVerify consume el código y loguea en la superficie pedida.
func (h *AuthHandler) OtpVerify(w http.ResponseWriter, r *http.Request) {
	surface, ok := surfaceParam(r)
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown_surface", "superficie desconocida")
		return
	}
	var req otpVerifyRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")

	res, err := h.svc.VerifyOtp(r.Context(), key, surface, req.Phone, req.Code)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(string(surface), "failed").Inc()
		h.writeAuthError(w, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues(string(surface), "ok").Inc()
	WriteJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: string(res.TokenType),
		ExpiresAt: res.ExpiresAt.Unix(),
		Guard:     res.Guard,
		User:      res.User,
	})
}

// Logout destruye la sesión web del Bearer token. Idempotente.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), bearerToken(r)); err != nil {
		WriteError(w, http.StatusInternalServerError, "logout_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendVerificationRequest struct {
	Email string `json:"email"`
}

// SendVerification dispara el mail de verificación. Respuesta genérica.
func (h *AuthHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	var req sendVerificationRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")

	err := h.svc.SendEmailVerification(r.Context(), key, req.Email)
	if err != nil && !errors.Is(err, auth.ErrCredentialsInvalid) {
		h.writeAuthError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"message": "si el email está registrado, se envió un link de verificación",
	})
}

// VerifyEmail consume el token del link y marca el email verificado.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := h.svc.VerifyEmail(r.Context(), token); err != nil {
		h.writeAuthError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"verified": true})
}

// Me resuelve la sesión web del Bearer token y retorna el usuario.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.ResolveSession(r.Context(), bearerToken(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	b, err := h.bindings.BindingFor(sess.TenantKey, guard.SurfaceWeb)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "token inválido")
		return
	}
	u, err := users.NewStore(b.Conn, b.Policy).GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "token inválido")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": u, "guard": sess.Guard, "tenant": sess.TenantKey})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	if rl, ok := auth.IsRateLimited(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		WriteError(w, http.StatusTooManyRequests, "rate_limited", rl.Error())
		return
	}
	switch {
	case errors.Is(err, guard.ErrUnknownTenant):
		WriteError(w, http.StatusNotFound, "unknown_tenant", err.Error())
	case errors.Is(err, guard.ErrTenantInactive):
		WriteError(w, http.StatusForbidden, "tenant_inactive", err.Error())
	case errors.Is(err, auth.ErrMethodNotEnabled):
		WriteError(w, http.StatusBadRequest, "method_not_enabled", err.Error())
	case errors.Is(err, auth.ErrCredentialsInvalid):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "credenciales inválidas")
	case errors.Is(err, auth.ErrAccountInactive):
		WriteError(w, http.StatusForbidden, "account_inactive", err.Error())
	case errors.Is(err, auth.ErrOTPInvalid):
		WriteError(w, http.StatusUnauthorized, "invalid_code", "código inválido o expirado")
	case errors.Is(err, auth.ErrTooManyAttempts):
		WriteError(w, http.StatusTooManyRequests, "too_many_attempts", err.Error())
	case errors.Is(err, auth.ErrTokenInvalid):
		WriteError(w, http.StatusUnauthorized, "invalid_token", "token inválido")
	case errors.Is(err, auth.ErrDeliveryFailed):
		WriteError(w, http.StatusBadGateway, "delivery_failed", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
