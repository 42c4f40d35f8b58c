// Package store resuelve, por tenant, el handle concreto de datos a usar:
// el pool compartido (estrategia SHARED) o un pool propio registrado y
// memoizado bajo demanda (SEPARATE).
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConnectionUnavailable indica que la base del tenant no es alcanzable.
	// Durante provisioning se reporta, nunca se degrada silenciosamente a SHARED.
	ErrConnectionUnavailable = errors.New("store: connection unavailable")

	// ErrPermissionDenied indica que el rol no puede crear la base destino.
	ErrPermissionDenied = errors.New("store: permission denied")
)

// Querier es el subconjunto de operaciones de query que usan los stores.
// Lo implementan *pgxpool.Pool y los fakes de test.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Conn es un handle vivo de conexión por tenant.
type Conn interface {
	Querier

	// Ping verifica que la conexión responda.
	Ping(ctx context.Context) error

	// Close cierra el pool subyacente.
	Close()
}
