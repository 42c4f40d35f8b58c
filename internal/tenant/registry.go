package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/multipanel/internal/validation"
)

// ─── Errors ───

var (
	ErrNotFound       = errors.New("tenant: not found")
	ErrDuplicateKey   = errors.New("tenant: duplicate key")
	ErrInvalidKey     = errors.New("tenant: invalid key format")
	ErrImmutableField = errors.New("tenant: immutable field changed")
	ErrInvalidInput   = errors.New("tenant: invalid input")
)

// Registry es el store durable de definiciones de tenant.
//
// Create valida el key contra la gramática de slugs ANTES de cualquier
// efecto. Con overwrite=false un key existente produce ErrDuplicateKey;
// con overwrite=true se hace un upsert atómico (update-or-insert, nunca
// delete+insert: no hay ventana donde el tenant no exista).
//
// Delete borra solo la fila del registro. Nunca toca la base de datos
// aislada de un tenant SEPARATE.
type Registry interface {
	Create(ctx context.Context, t Tenant, overwrite bool) (*Tenant, error)
	Get(ctx context.Context, key string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	ListActive(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, key string, patch Patch) (*Tenant, error)
	SetActive(ctx context.Context, key string, active bool) error
	Delete(ctx context.Context, key string) error
}

// Normalize valida y normaliza un tenant antes de persistir.
// Retorna el tenant listo para guardar (theme mergeado, defaults aplicados).
func Normalize(t Tenant) (Tenant, error) {
	if !validation.ValidTenantKey(t.Key) {
		return t, fmt.Errorf("%w: %q", ErrInvalidKey, t.Key)
	}
	if !t.Strategy.Valid() {
		return t, fmt.Errorf("%w: unknown storage strategy %q", ErrInvalidInput, t.Strategy)
	}
	if len(t.AuthMethods) == 0 {
		t.AuthMethods = []AuthMethod{AuthEmail}
	}
	for _, m := range t.AuthMethods {
		if !m.Valid() {
			return t, fmt.Errorf("%w: unknown auth method %q", ErrInvalidInput, m)
		}
	}
	if t.Strategy == StorageSeparate {
		if t.Storage.Host == "" || t.Storage.Database == "" {
			return t, fmt.Errorf("%w: separate strategy requires host and database", ErrInvalidInput)
		}
		if t.Storage.Port == 0 {
			t.Storage.Port = 5432
		}
		if t.Storage.ConnName == "" {
			t.Storage.ConnName = t.Key + "_pg"
		}
	}
	if t.DisplayName == "" {
		t.DisplayName = t.Key
	}
	t.Theme = NormalizeTheme(t.Theme)
	return t, nil
}

// ApplyPatch aplica un Patch sobre un tenant existente, respetando los
// campos write-once. Compartido por las implementaciones de Registry.
func ApplyPatch(cur Tenant, patch Patch) (Tenant, error) {
	if patch.Key != nil && *patch.Key != cur.Key {
		return cur, fmt.Errorf("%w: key", ErrImmutableField)
	}
	if patch.Strategy != nil && *patch.Strategy != cur.Strategy {
		return cur, fmt.Errorf("%w: storage_strategy", ErrImmutableField)
	}
	if patch.DisplayName != nil {
		cur.DisplayName = *patch.DisplayName
	}
	if patch.Description != nil {
		cur.Description = *patch.Description
	}
	if patch.AuthMethods != nil {
		if len(*patch.AuthMethods) == 0 {
			return cur, fmt.Errorf("%w: auth_methods must not be empty", ErrInvalidInput)
		}
		for _, m := range *patch.AuthMethods {
			if !m.Valid() {
				return cur, fmt.Errorf("%w: unknown auth method %q", ErrInvalidInput, m)
			}
		}
		cur.AuthMethods = *patch.AuthMethods
	}
	if patch.Theme != nil {
		cur.Theme = NormalizeTheme(*patch.Theme)
	}
	return cur, nil
}
