package auth

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma los tokens de la superficie API con HS256.
type Issuer struct {
	Iss       string
	Secret    []byte
	AccessTTL time.Duration // default 15m
}

func NewIssuer(iss string, secret []byte) *Issuer {
	return &Issuer{Iss: iss, Secret: secret, AccessTTL: 15 * time.Minute}
}

// Issue emite un access token para el usuario dado. aud es el guard
// de la superficie API ("api-<key>") y tenant la key del panel.
func (i *Issuer) Issue(sub, aud, tenant string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"tnt": tenant,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse valida firma y expiración, y devuelve los claims del token.
func (i *Issuer) Parse(token string) (jwtv5.MapClaims, error) {
	tok, err := jwtv5.Parse(token, func(t *jwtv5.Token) (any, error) {
		return i.Secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}), jwtv5.WithIssuer(i.Iss))
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
