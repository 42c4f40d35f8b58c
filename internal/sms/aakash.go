// Package sms implementa el colaborador de mensajería SMS (Aakash SMS v3).
// El core lo trata como fire-and-effect: un booleano/error por envío,
// sin manejo de reintentos más allá de los del cliente HTTP.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/validation"
)

// Sender envía un SMS. Implementado por AakashClient y por fakes de test.
type Sender interface {
	Send(ctx context.Context, phone, text string) (bool, error)
}

const defaultBaseURL = "https://sms.aakashsms.com/sms/v3"

// Config del proveedor Aakash.
type Config struct {
	Token   string
	BaseURL string        // default: API pública de Aakash
	Timeout time.Duration // default: 10s
}

// AakashClient habla con la API v3 de Aakash SMS.
type AakashClient struct {
	http  *resty.Client
	token string
}

type aakashResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// NewAakash crea el cliente. Un token vacío produce un cliente que falla
// graceful en Send (el tenant puede existir sin SMS configurado).
func NewAakash(cfg Config) *AakashClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &AakashClient{http: client, token: cfg.Token}
}

// Send envía el texto al teléfono dado (normalizado antes de enviar).
func (c *AakashClient) Send(ctx context.Context, phone, text string) (bool, error) {
	log := logger.From(ctx).With(logger.Component("sms.Aakash"), logger.Phone(phone))

	if c.token == "" {
		log.Warn("sms token not configured, message dropped")
		return false, fmt.Errorf("sms: provider not configured")
	}

	var out aakashResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"auth_token": c.token,
			"to":         validation.NormalizePhone(phone),
			"text":       text,
		}).
		SetResult(&out).
		Post("/send")
	if err != nil {
		log.Error("sms send failed", logger.Err(err))
		return false, fmt.Errorf("sms: send: %w", err)
	}

	if !resp.IsSuccess() || out.Error {
		log.Warn("sms provider rejected message",
			logger.Int("status", resp.StatusCode()),
			logger.String("provider_msg", out.Message),
		)
		return false, fmt.Errorf("sms: provider error: %s", out.Message)
	}

	log.Info("sms sent")
	return true, nil
}
