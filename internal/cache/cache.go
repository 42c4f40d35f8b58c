// Package cache provee abstracciones para caching con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Los challenges OTP y los contadores de rate limiting viven acá.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indica que la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// GetDel obtiene y elimina atómicamente (consumo single-use).
	// Retorna ErrNotFound si no existe.
	GetDel(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr incrementa un contador y retorna el valor nuevo.
	// Si la key no existe, arranca en 1 y se le aplica el TTL dado.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL retorna el tiempo de vida restante de una key.
	// Retorna 0 si la key no existe o no tiene expiración.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	// Kind: "memory" | "redis"
	Kind string

	// Prefix para namespacing de keys (ej: "mp").
	Prefix string

	// Redis
	Addr     string
	Password string
	DB       int

	// Memory
	DefaultTTL time.Duration
}

// New crea el cliente según cfg.Kind. Default: memory.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg)
	case "", "memory":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	default:
		return nil, errors.New("cache: unknown kind " + cfg.Kind)
	}
}
