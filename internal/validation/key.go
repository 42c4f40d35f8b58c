package validation

import "regexp"

// Tenant key rules:
// - Lowercase only.
// - Start with a letter [a-z].
// - Remaining chars may include [a-z0-9_].
// - Length 1..50 (matches the registry column width).
//
// Examples valid: clinic, shop, doctor_2, a
// Examples invalid: 9shop, Clinic, doc-tor, "", my shop, 51+ chars.
var tenantKeyRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

// ValidTenantKey returns true if the provided key matches the allowed pattern.
func ValidTenantKey(key string) bool {
	return tenantKeyRe.MatchString(key)
}

// Phone number rules follow the SMS provider's coverage: a 10-digit Nepali
// mobile (98xxxxxxxx) or a bare international number of 10..15 digits.
var (
	nepaliPhoneRe = regexp.MustCompile(`^98\d{8}$`)
	intlPhoneRe   = regexp.MustCompile(`^\d{10,15}$`)
	nonDigitRe    = regexp.MustCompile(`\D`)
)

// NormalizePhone strips every non-digit character.
func NormalizePhone(phone string) string {
	return nonDigitRe.ReplaceAllString(phone, "")
}

// ValidPhone returns true if the normalized phone is deliverable.
func ValidPhone(phone string) bool {
	p := NormalizePhone(phone)
	return nepaliPhoneRe.MatchString(p) || intlPhoneRe.MatchString(p)
}

// Email: validación liviana, el formato real lo decide el servidor de correo.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail returns true if the email has a plausible shape.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailRe.MatchString(email)
}
