package email

import (
	"bytes"
	"errors"
	"fmt"
	htemplate "html/template"
	ttemplate "text/template"
)

var ErrTemplateRender = errors.New("email: template render failed")

// Datos para los templates de OTP y verificación.
type otpData struct {
	DisplayName string
	Code        string
	Minutes     int
}

type verifyData struct {
	DisplayName string
	VerifyURL   string
	Minutes     int
}

const otpHTMLTmpl = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.DisplayName}}</h2>
  <p>Your verification code is:</p>
  <p style="font-size: 28px; letter-spacing: 4px; font-weight: bold;">{{.Code}}</p>
  <p>This code expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>
</body>
</html>`

const otpTextTmpl = `{{.DisplayName}}

Your verification code is: {{.Code}}

This code expires in {{.Minutes}} minutes. If you did not request it, ignore this email.`

const verifyHTMLTmpl = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.DisplayName}}</h2>
  <p>Confirm your email address by clicking the link below:</p>
  <p><a href="{{.VerifyURL}}">Verify my email</a></p>
  <p>The link expires in {{.Minutes}} minutes.</p>
</body>
</html>`

const verifyTextTmpl = `{{.DisplayName}}

Confirm your email address by visiting:

{{.VerifyURL}}

The link expires in {{.Minutes}} minutes.`

var (
	otpHTML    = htemplate.Must(htemplate.New("otp_html").Parse(otpHTMLTmpl))
	otpText    = ttemplate.Must(ttemplate.New("otp_text").Parse(otpTextTmpl))
	verifyHTML = htemplate.Must(htemplate.New("verify_html").Parse(verifyHTMLTmpl))
	verifyText = ttemplate.Must(ttemplate.New("verify_text").Parse(verifyTextTmpl))
)

// RenderOTP produce los cuerpos HTML y texto para un correo de código OTP.
func RenderOTP(displayName, code string, minutes int) (html, text string, err error) {
	data := otpData{DisplayName: displayName, Code: code, Minutes: minutes}
	var hb, tb bytes.Buffer
	if err := otpHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	if err := otpText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return hb.String(), tb.String(), nil
}

// RenderVerification produce los cuerpos para el correo de verificación de cuenta.
func RenderVerification(displayName, verifyURL string, minutes int) (html, text string, err error) {
	data := verifyData{DisplayName: displayName, VerifyURL: verifyURL, Minutes: minutes}
	var hb, tb bytes.Buffer
	if err := verifyHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	if err := verifyText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return hb.String(), tb.String(), nil
}
