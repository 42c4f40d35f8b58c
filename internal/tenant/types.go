// Package tenant define el registro durable de tenants ("dashboard types"):
// identidad, estrategia de storage, métodos de auth, tema y flag de activo.
// El resto del sistema (resolver, binder, provisioning) se construye sobre
// este registro.
package tenant

import "time"

// StorageStrategy define dónde viven los usuarios de un tenant.
type StorageStrategy string

const (
	// StorageShared: los usuarios viven en la tabla compartida,
	// distinguidos por la columna discriminadora (= key del tenant).
	StorageShared StorageStrategy = "shared"

	// StorageSeparate: los usuarios viven en una base de datos propia,
	// sin discriminador (el aislamiento lo da la conexión).
	StorageSeparate StorageStrategy = "separate"
)

// Valid reporta si la estrategia es conocida.
func (s StorageStrategy) Valid() bool {
	return s == StorageShared || s == StorageSeparate
}

// AuthMethod define un flujo de login expuesto por un tenant.
type AuthMethod string

const (
	AuthEmail AuthMethod = "email"
	AuthSMS   AuthMethod = "sms"
)

// Valid reporta si el método es conocido.
func (m AuthMethod) Valid() bool {
	return m == AuthEmail || m == AuthSMS
}

// StorageConfig es el payload dependiente de la estrategia.
// Para SHARED solo aplican Table/Column (con defaults); para SEPARATE
// aplican los parámetros de conexión.
type StorageConfig struct {
	// SHARED: convención de nombres.
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
	Column string `json:"column,omitempty" yaml:"column,omitempty"`

	// SEPARATE: parámetros de conexión.
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// ConnName es el nombre lógico de la conexión. Default: "<key>_pg".
	ConnName string `json:"conn_name,omitempty" yaml:"conn_name,omitempty"`
}

const (
	// DefaultSharedTable es la tabla compartida de usuarios.
	DefaultSharedTable = "shared_users"

	// DefaultDiscriminator es la columna discriminadora de la tabla compartida.
	DefaultDiscriminator = "dashboard_type"
)

// SharedTable retorna la tabla efectiva para la estrategia SHARED.
func (c StorageConfig) SharedTable() string {
	if c.Table != "" {
		return c.Table
	}
	return DefaultSharedTable
}

// DiscriminatorColumn retorna la columna discriminadora efectiva.
func (c StorageConfig) DiscriminatorColumn() string {
	if c.Column != "" {
		return c.Column
	}
	return DefaultDiscriminator
}

// Tenant es un dashboard/portal independientemente direccionable.
// Key y Strategy son write-once (inmutables después de crear).
type Tenant struct {
	Key         string          `json:"key"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Strategy    StorageStrategy `json:"storage_strategy"`
	Storage     StorageConfig   `json:"storage_config"`
	AuthMethods []AuthMethod    `json:"auth_methods"`
	Theme       map[string]any  `json:"theme"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasAuthMethod reporta si el tenant expone el método dado.
func (t *Tenant) HasAuthMethod(m AuthMethod) bool {
	for _, am := range t.AuthMethods {
		if am == m {
			return true
		}
	}
	return false
}

// AdminEmail es el email determinístico del admin sembrado en provisioning.
func (t *Tenant) AdminEmail() string {
	return "admin@" + t.Key + ".com"
}

// Patch describe una actualización parcial. Los campos nil no se tocan.
// Key y Strategy están presentes solo para poder rechazarlos explícitamente.
type Patch struct {
	DisplayName *string
	Description *string
	AuthMethods *[]AuthMethod
	Theme       *map[string]any

	// Inmutables: si vienen con un valor distinto al actual, Update falla.
	Key      *string
	Strategy *StorageStrategy
}
