// Package guard materializa, por tenant activo, los mecanismos de
// autenticación con nombre: una binding de sesión (web) y una de token (api),
// ambas apuntando al mismo modelo de usuario y a la conexión resuelta.
//
// La tabla de bindings es estado derivado del registro, nunca persistido.
// Se reconstruye completa y se publica con un solo swap atómico: un reader
// concurrente ve la tabla vieja o la nueva, jamás una mezcla.
package guard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/scope"
	"github.com/dropDatabas3/multipanel/internal/store"
	"github.com/dropDatabas3/multipanel/internal/tenant"
)

// ─── Errors ───

var (
	ErrUnknownTenant  = errors.New("guard: unknown tenant")
	ErrTenantInactive = errors.New("guard: tenant inactive")
)

// Surface es la superficie de autenticación.
type Surface string

const (
	// SurfaceWeb: binding interactiva basada en sesión (token opaco).
	SurfaceWeb Surface = "web"

	// SurfaceAPI: binding basada en token firmado (JWT).
	SurfaceAPI Surface = "api"
)

// Binding es la tupla resuelta que respalda un guard de tenant.
type Binding struct {
	TenantKey   string
	DisplayName string
	Surface     Surface
	Conn        store.Conn
	Policy      scope.Policy
	AuthMethods []tenant.AuthMethod
}

// GuardName retorna el nombre del guard, estilo "<key>" / "api-<key>".
func (b *Binding) GuardName() string {
	if b.Surface == SurfaceAPI {
		return "api-" + b.TenantKey
	}
	return b.TenantKey
}

// HasAuthMethod reporta si la binding expone el método dado.
func (b *Binding) HasAuthMethod(m tenant.AuthMethod) bool {
	for _, am := range b.AuthMethods {
		if am == m {
			return true
		}
	}
	return false
}

type bindingKey struct {
	tenant  string
	surface Surface
}

// bindingTable es inmutable una vez publicada.
type bindingTable struct {
	bindings map[bindingKey]*Binding
	inactive map[string]bool // keys conocidas pero desactivadas
}

func emptyTable() *bindingTable {
	return &bindingTable{
		bindings: map[bindingKey]*Binding{},
		inactive: map[string]bool{},
	}
}

// Binder mantiene la tabla de bindings publicada.
type Binder struct {
	resolver *store.Resolver

	// mu serializa rebuilds; los readers no lo necesitan.
	mu    sync.Mutex
	table atomic.Pointer[bindingTable]
}

// NewBinder crea un binder vacío. Rebuild debe correr en bootstrap antes
// de servir el primer request.
func NewBinder(resolver *store.Resolver) *Binder {
	b := &Binder{resolver: resolver}
	b.table.Store(emptyTable())
	return b
}

// RebuildResult resume un rebuild.
type RebuildResult struct {
	Bound   []string // tenants con bindings publicadas
	Skipped []string // tenants activos omitidos por conexión irresoluble
}

// Rebuild reconstruye la tabla completa desde la lista de tenants del
// registro. Es idempotente y total: misma lista de activos → mismo set de
// bindings. Tenants cuya conexión no resuelve se omiten (quedan
// inalcanzables) sin abortar el resto.
func (b *Binder) Rebuild(ctx context.Context, tenants []tenant.Tenant) RebuildResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := logger.From(ctx).With(logger.Component("guard.Binder"))

	next := emptyTable()
	var res RebuildResult

	for i := range tenants {
		t := &tenants[i]
		if !t.Active {
			next.inactive[t.Key] = true
			continue
		}

		conn, err := b.resolver.Resolve(ctx, t)
		if err != nil {
			log.Warn("tenant omitted from binding table",
				logger.Tenant(t.Key), logger.Err(err))
			res.Skipped = append(res.Skipped, t.Key)
			continue
		}

		pol := scope.ForTenant(t)
		for _, sf := range []Surface{SurfaceWeb, SurfaceAPI} {
			next.bindings[bindingKey{t.Key, sf}] = &Binding{
				TenantKey:   t.Key,
				DisplayName: t.DisplayName,
				Surface:     sf,
				Conn:        conn,
				Policy:      pol,
				AuthMethods: t.AuthMethods,
			}
		}
		res.Bound = append(res.Bound, t.Key)
	}

	prev := b.table.Swap(next)

	// Higiene: cerrar pools SEPARATE de tenants que salieron de la tabla.
	for k := range prev.bindings {
		if k.surface != SurfaceWeb {
			continue
		}
		if _, still := next.bindings[k]; !still {
			b.resolver.Close(k.tenant)
		}
	}

	log.Info("binding table rebuilt",
		logger.Count(len(res.Bound)),
		logger.Int("skipped", len(res.Skipped)),
	)
	return res
}

// BindingFor retorna la binding publicada para (tenant, superficie).
// Tenants desactivados fallan cerrado con ErrTenantInactive.
func (b *Binder) BindingFor(tenantKey string, s Surface) (*Binding, error) {
	t := b.table.Load()
	if bd, ok := t.bindings[bindingKey{tenantKey, s}]; ok {
		return bd, nil
	}
	if t.inactive[tenantKey] {
		return nil, ErrTenantInactive
	}
	return nil, ErrUnknownTenant
}

// Keys retorna las keys de tenants con bindings, ordenadas.
// Dos rebuilds sin cambios de registro retornan sets idénticos.
func (b *Binder) Keys() []string {
	t := b.table.Load()
	seen := map[string]bool{}
	for k := range t.bindings {
		seen[k.tenant] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
