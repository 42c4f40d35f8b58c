// Package users implementa el acceso a filas de usuarios de un tenant.
// Cada Store se construye con la scope.Policy del tenant: no hay un camino
// de query que esquive el discriminador en la estrategia SHARED.
package users

import (
	"time"

	"github.com/google/uuid"
)

// User es el usuario de un tenant. Misma forma para toda estrategia.
type User struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           *string        `json:"phone,omitempty"`
	PasswordHash    string         `json:"-"`
	Active          bool           `json:"active"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time     `json:"phone_verified_at,omitempty"`
	ProfileData     map[string]any `json:"profile_data,omitempty"`
	LastLoginAt     *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CreateInput datos para crear un usuario. Password viene en claro y se
// hashea adentro: el seeding de provisioning usa este mismo camino.
type CreateInput struct {
	Name     string
	Email    string
	Phone    string // opcional
	Password string
	Profile  map[string]any
}

// ProfilePatch es una actualización parcial de perfil.
type ProfilePatch struct {
	Name    *string
	Phone   *string
	Profile *map[string]any
}
