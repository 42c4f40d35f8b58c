package tenant

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry es una implementación en memoria de Registry.
// Útil para desarrollo y testing.
type MemoryRegistry struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewMemoryRegistry crea un registro vacío en memoria.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tenants: make(map[string]Tenant)}
}

func (r *MemoryRegistry) Create(ctx context.Context, t Tenant, overwrite bool) (*Tenant, error) {
	t, err := Normalize(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if cur, exists := r.tenants[t.Key]; exists {
		if !overwrite {
			return nil, ErrDuplicateKey
		}
		// Upsert: conserva created_at y la estrategia original es write-once.
		if t.Strategy != cur.Strategy {
			return nil, ErrImmutableField
		}
		t.CreatedAt = cur.CreatedAt
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Active = true
	r.tenants[t.Key] = t

	out := t
	return &out, nil
}

func (r *MemoryRegistry) Get(ctx context.Context, key string) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tenants[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := t
	return &out, nil
}

func (r *MemoryRegistry) List(ctx context.Context) ([]Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(Tenant) bool { return true }), nil
}

func (r *MemoryRegistry) ListActive(ctx context.Context) ([]Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(t Tenant) bool { return t.Active }), nil
}

// snapshot copia los tenants que pasan el filtro, ordenados por key.
// Caller debe tener el lock.
func (r *MemoryRegistry) snapshot(keep func(Tenant) bool) []Tenant {
	out := make([]Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *MemoryRegistry) Update(ctx context.Context, key string, patch Patch) (*Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tenants[key]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := ApplyPatch(cur, patch)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.tenants[key] = next

	out := next
	return &out, nil
}

func (r *MemoryRegistry) SetActive(ctx context.Context, key string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[key]
	if !ok {
		return ErrNotFound
	}
	t.Active = active
	t.UpdatedAt = time.Now().UTC()
	r.tenants[key] = t
	return nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[key]; !ok {
		return ErrNotFound
	}
	delete(r.tenants, key)
	return nil
}
