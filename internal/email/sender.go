// Package email implementa el envío de correo transaccional (OTP y
// verificación de cuenta) vía SMTP.
package email

import "context"

// Sender envía un correo con cuerpo HTML y texto plano.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}
