// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains every migration, split by target:
//
//   - registry: the tenants table in the shared database
//   - shared:   the shared users table (discriminator column + compound uniques)
//   - tenant:   the per-tenant users table for separate databases
//
//go:embed registry/*.sql shared/*.sql tenant/*.sql
var FS embed.FS

const (
	RegistryDir = "registry"
	SharedDir   = "shared"
	TenantDir   = "tenant"
)
