package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/multipanel/internal/tenant"
)

// PGConfig parámetros de tuning del pool compartido.
type PGConfig struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// OpenShared abre el pool compartido desde un DSN.
func OpenShared(ctx context.Context, dsn string, cfg PGConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgxpool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// DSN arma el DSN Postgres desde la config de storage de un tenant SEPARATE.
func DSN(cfg tenant.StorageConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=prefer",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)
}

// maintenanceDSN apunta a la base `postgres` del mismo servidor,
// para CREATE DATABASE y checks de existencia.
func maintenanceDSN(cfg tenant.StorageConfig) string {
	c := cfg
	c.Database = "postgres"
	return DSN(c)
}

// OpenSeparate abre un pool propio para un tenant SEPARATE.
// Pools por tenant se mantienen chicos: el grueso del tráfico va al compartido.
func OpenSeparate(ctx context.Context, cfg tenant.StorageConfig) (Conn, error) {
	pcfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ProbeSeparate hace SELECT 1 con una conexión descartable (nunca un pool).
func ProbeSeparate(ctx context.Context, cfg tenant.StorageConfig) error {
	conn, err := pgx.Connect(ctx, DSN(cfg))
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	var one int
	if err := conn.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return err
	}
	return nil
}

// EnsureDatabasePG crea la base destino si no existe, vía la base de
// mantenimiento del servidor. Idempotente.
func EnsureDatabasePG(ctx context.Context, cfg tenant.StorageConfig) error {
	conn, err := pgx.Connect(ctx, maintenanceDSN(cfg))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`,
		cfg.Database).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// CREATE DATABASE no admite placeholders; el nombre viene validado
	// desde la gramática de keys pero se cita igual.
	_, err = conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{cfg.Database}.Sanitize()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42501" { // insufficient_privilege
			return fmt.Errorf("%w: create database %s", ErrPermissionDenied, cfg.Database)
		}
		return err
	}
	return nil
}
