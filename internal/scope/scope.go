// Package scope codifica, por tenant, cómo se delimitan las filas de
// usuarios: por columna discriminadora (estrategia SHARED) o por el
// aislamiento natural de la conexión (SEPARATE).
//
// Invariante central del sistema: todo read/write de usuarios pasa por una
// Policy. No existe un camino que consulte la tabla compartida sin el filtro
// del discriminador.
package scope

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/multipanel/internal/tenant"
)

// ErrViolation indica un intento de leer/escribir una fila fuera del scope
// del tenant. Nunca debería dispararse: si aparece, es un defecto de
// programación y la operación se rechaza en vez de adivinar.
var ErrViolation = errors.New("scope: cross-tenant access violation")

// SeparateUsersTable es la tabla de usuarios en bases aisladas.
const SeparateUsersTable = "users"

// Policy es el valor inmutable que delimita las queries de un tenant.
type Policy struct {
	tenantKey string
	shared    bool
	table     string
	column    string
}

// ForTenant deriva la Policy del tenant.
func ForTenant(t *tenant.Tenant) Policy {
	if t.Strategy == tenant.StorageShared {
		return Policy{
			tenantKey: t.Key,
			shared:    true,
			table:     t.Storage.SharedTable(),
			column:    t.Storage.DiscriminatorColumn(),
		}
	}
	return Policy{tenantKey: t.Key, table: SeparateUsersTable}
}

// TenantKey retorna la key del tenant dueño de la policy.
func (p Policy) TenantKey() string { return p.tenantKey }

// Shared reporta si la policy aplica discriminador.
func (p Policy) Shared() bool { return p.shared }

// Table retorna la tabla de usuarios efectiva.
func (p Policy) Table() string { return p.table }

// DiscriminatorColumn retorna la columna discriminadora ("" para SEPARATE).
func (p Policy) DiscriminatorColumn() string {
	if !p.shared {
		return ""
	}
	return p.column
}

// Filter retorna el predicado SQL extra a anexar con AND, y sus args.
// argIdx es el índice del primer placeholder libre ($N).
// Para SEPARATE retorna "" (identidad).
func (p Policy) Filter(argIdx int) (string, []any) {
	if !p.shared {
		return "", nil
	}
	return fmt.Sprintf("%s = $%d", p.column, argIdx), []any{p.tenantKey}
}

// UniquenessKey retorna las columnas que forman la unicidad efectiva de
// email (y phone). SHARED: (col, discriminador); SEPARATE: (col).
func (p Policy) UniquenessKey(col string) []string {
	if p.shared {
		return []string{col, p.column}
	}
	return []string{col}
}

// StampOnCreate agrega el discriminador al registro si falta.
// Para SEPARATE es un no-op.
func (p Policy) StampOnCreate(record map[string]any) map[string]any {
	if !p.shared {
		return record
	}
	if _, ok := record[p.column]; !ok {
		record[p.column] = p.tenantKey
	}
	return record
}

// Check valida que el discriminador leído pertenezca al tenant.
// disc es el valor de la columna discriminadora de la fila ("" en SEPARATE).
func (p Policy) Check(disc string) error {
	if !p.shared {
		return nil
	}
	if disc != p.tenantKey {
		return fmt.Errorf("%w: row belongs to %q, policy is %q", ErrViolation, disc, p.tenantKey)
	}
	return nil
}
