package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/tenant"
)

// OpenFunc abre un pool para la config de storage dada.
type OpenFunc func(ctx context.Context, cfg tenant.StorageConfig) (Conn, error)

// ProbeFunc hace un round-trip liviano con una conexión descartable.
// Nunca debe usar un pool compartido: una prueba mala no puede envenenarlo.
type ProbeFunc func(ctx context.Context, cfg tenant.StorageConfig) error

// EnsureFunc crea la base destino si no existe (idempotente).
type EnsureFunc func(ctx context.Context, cfg tenant.StorageConfig) error

// Resolver administra el pool compartido y los pools por tenant SEPARATE.
// Thread-safe; usa singleflight para no abrir conexiones duplicadas bajo
// resoluciones concurrentes del mismo tenant.
type Resolver struct {
	shared Conn

	pools sync.Map // key → *poolEntry
	sf    singleflight.Group

	open   OpenFunc
	probe  ProbeFunc
	ensure EnsureFunc
}

type poolEntry struct {
	conn       Conn
	createdAt  time.Time
	lastUsedAt time.Time
	mu         sync.Mutex
}

func (e *poolEntry) touch() {
	e.mu.Lock()
	e.lastUsedAt = time.Now()
	e.mu.Unlock()
}

// NewResolver crea un resolver sobre el pool compartido dado.
// open/probe/ensure default a las implementaciones Postgres de pg.go.
func NewResolver(shared Conn, opts ...Option) *Resolver {
	r := &Resolver{
		shared: shared,
		open:   OpenSeparate,
		probe:  ProbeSeparate,
		ensure: EnsureDatabasePG,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Option configura el Resolver.
type Option func(*Resolver)

// WithOpenFunc reemplaza el opener (tests).
func WithOpenFunc(f OpenFunc) Option { return func(r *Resolver) { r.open = f } }

// WithProbeFunc reemplaza el probe (tests).
func WithProbeFunc(f ProbeFunc) Option { return func(r *Resolver) { r.probe = f } }

// WithEnsureFunc reemplaza el ensure (tests).
func WithEnsureFunc(f EnsureFunc) Option { return func(r *Resolver) { r.ensure = f } }

// Shared retorna el pool compartido.
func (r *Resolver) Shared() Conn { return r.shared }

// Resolve retorna el handle de datos para el tenant.
// SHARED resuelve al pool compartido; SEPARATE abre (una sola vez) y
// memoiza un pool propio: re-resolver un tenant ya registrado es un no-op
// que retorna el handle cacheado.
func (r *Resolver) Resolve(ctx context.Context, t *tenant.Tenant) (Conn, error) {
	if t.Strategy == tenant.StorageShared {
		return r.shared, nil
	}

	if val, ok := r.pools.Load(t.Key); ok {
		entry := val.(*poolEntry)
		entry.touch()
		return entry.conn, nil
	}

	result, err, _ := r.sf.Do(t.Key, func() (interface{}, error) {
		// Double-check después de ganar el singleflight.
		if val, ok := r.pools.Load(t.Key); ok {
			return val.(*poolEntry).conn, nil
		}

		conn, err := r.open(ctx, t.Storage)
		if err != nil {
			return nil, fmt.Errorf("%w: tenant %s: %v", ErrConnectionUnavailable, t.Key, err)
		}

		now := time.Now()
		r.pools.Store(t.Key, &poolEntry{conn: conn, createdAt: now, lastUsedAt: now})

		logger.L().Info("tenant connection registered",
			logger.Tenant(t.Key),
			logger.String("database", t.Storage.Database),
		)
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Conn), nil
}

// Test hace un round-trip liviano contra la config dada.
// Nunca lanza: retorna false ante cualquier falla. El caller decide si
// aborta el provisioning.
func (r *Resolver) Test(ctx context.Context, cfg tenant.StorageConfig) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.probe(ctx, cfg); err != nil {
		logger.L().Warn("connection test failed",
			logger.String("host", cfg.Host),
			logger.String("database", cfg.Database),
			logger.Err(err),
		)
		return false
	}
	return true
}

// EnsureDatabase crea la base destino si no existe (idempotente).
func (r *Resolver) EnsureDatabase(ctx context.Context, cfg tenant.StorageConfig) error {
	return r.ensure(ctx, cfg)
}

// Has reporta si hay un pool registrado para el tenant.
func (r *Resolver) Has(key string) bool {
	_, ok := r.pools.Load(key)
	return ok
}

// Close cierra y desregistra el pool de un tenant (no-op si no existe).
func (r *Resolver) Close(key string) {
	if val, ok := r.pools.LoadAndDelete(key); ok {
		val.(*poolEntry).conn.Close()
		logger.L().Info("tenant connection closed", logger.Tenant(key))
	}
}

// CloseAll cierra todos los pools por tenant. No toca el pool compartido.
func (r *Resolver) CloseAll() {
	r.pools.Range(func(key, value interface{}) bool {
		value.(*poolEntry).conn.Close()
		r.pools.Delete(key)
		return true
	})
}

// Stats retorna un snapshot de los pools por tenant registrados.
func (r *Resolver) Stats() ResolverStats {
	stats := ResolverStats{Connections: make(map[string]ConnStats)}
	r.pools.Range(func(key, value interface{}) bool {
		entry := value.(*poolEntry)
		entry.mu.Lock()
		stats.Connections[key.(string)] = ConnStats{
			CreatedAt:  entry.createdAt,
			LastUsedAt: entry.lastUsedAt,
		}
		entry.mu.Unlock()
		stats.TotalActive++
		return true
	})
	return stats
}

// ResolverStats snapshot del registro de pools.
type ResolverStats struct {
	TotalActive int
	Connections map[string]ConnStats
}

// ConnStats metadata de un pool por tenant.
type ConnStats struct {
	CreatedAt  time.Time
	LastUsedAt time.Time
}
