package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRegistry implementa Registry sobre Postgres (tabla `tenants` en la
// base compartida). La unicidad del key la garantiza el PRIMARY KEY.
type PGRegistry struct {
	pool *pgxpool.Pool
}

// NewPGRegistry crea un registro respaldado por el pool dado.
func NewPGRegistry(pool *pgxpool.Pool) *PGRegistry {
	return &PGRegistry{pool: pool}
}

const tenantCols = `key, display_name, description, storage_strategy, storage_config, auth_methods, theme, active, created_at, updated_at`

func (r *PGRegistry) Create(ctx context.Context, t Tenant, overwrite bool) (*Tenant, error) {
	t, err := Normalize(t)
	if err != nil {
		return nil, err
	}

	storageJSON, err := json.Marshal(t.Storage)
	if err != nil {
		return nil, fmt.Errorf("marshal storage_config: %w", err)
	}
	methodsJSON, err := json.Marshal(t.AuthMethods)
	if err != nil {
		return nil, fmt.Errorf("marshal auth_methods: %w", err)
	}
	themeJSON, err := json.Marshal(t.Theme)
	if err != nil {
		return nil, fmt.Errorf("marshal theme: %w", err)
	}

	now := time.Now().UTC()

	if overwrite {
		// Upsert atómico: nunca hay ventana sin fila. storage_strategy es
		// write-once; el WHERE del DO UPDATE lo protege y el RETURNING vacío
		// delata el intento de cambiarla.
		const q = `
INSERT INTO tenants (key, display_name, description, storage_strategy, storage_config, auth_methods, theme, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,true,$8,$8)
ON CONFLICT (key) DO UPDATE SET
  display_name = EXCLUDED.display_name,
  description  = EXCLUDED.description,
  storage_config = EXCLUDED.storage_config,
  auth_methods = EXCLUDED.auth_methods,
  theme        = EXCLUDED.theme,
  active       = true,
  updated_at   = EXCLUDED.updated_at
WHERE tenants.storage_strategy = EXCLUDED.storage_strategy
RETURNING ` + tenantCols
		row := r.pool.QueryRow(ctx, q,
			t.Key, t.DisplayName, t.Description, string(t.Strategy),
			storageJSON, methodsJSON, themeJSON, now)
		out, err := scanTenant(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImmutableField
		}
		return out, err
	}

	const q = `
INSERT INTO tenants (key, display_name, description, storage_strategy, storage_config, auth_methods, theme, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,true,$8,$8)
RETURNING ` + tenantCols
	row := r.pool.QueryRow(ctx, q,
		t.Key, t.DisplayName, t.Description, string(t.Strategy),
		storageJSON, methodsJSON, themeJSON, now)
	out, err := scanTenant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return out, nil
}

func (r *PGRegistry) Get(ctx context.Context, key string) (*Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE key = $1`, key)
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *PGRegistry) List(ctx context.Context) ([]Tenant, error) {
	return r.list(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY key`)
}

func (r *PGRegistry) ListActive(ctx context.Context) ([]Tenant, error) {
	return r.list(ctx, `SELECT `+tenantCols+` FROM tenants WHERE active ORDER BY key`)
}

func (r *PGRegistry) list(ctx context.Context, q string) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *PGRegistry) Update(ctx context.Context, key string, patch Patch) (*Tenant, error) {
	// Read-modify-write dentro de una tx para que patches concurrentes
	// sobre el mismo key no se pisen.
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE key = $1 FOR UPDATE`, key)
	cur, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	next, err := ApplyPatch(*cur, patch)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	methodsJSON, _ := json.Marshal(next.AuthMethods)
	themeJSON, _ := json.Marshal(next.Theme)
	_, err = tx.Exec(ctx, `
UPDATE tenants SET display_name=$2, description=$3, auth_methods=$4, theme=$5, updated_at=$6
WHERE key=$1`,
		key, next.DisplayName, next.Description, methodsJSON, themeJSON, next.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &next, nil
}

func (r *PGRegistry) SetActive(ctx context.Context, key string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET active=$2, updated_at=now() WHERE key=$1`, key, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRegistry) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE key=$1`, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanTenant escanea una fila con las columnas de tenantCols.
func scanTenant(row pgx.Row) (*Tenant, error) {
	var (
		t           Tenant
		strategy    string
		storageJSON []byte
		methodsJSON []byte
		themeJSON   []byte
	)
	err := row.Scan(&t.Key, &t.DisplayName, &t.Description, &strategy,
		&storageJSON, &methodsJSON, &themeJSON, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Strategy = StorageStrategy(strategy)
	if err := json.Unmarshal(storageJSON, &t.Storage); err != nil {
		return nil, fmt.Errorf("unmarshal storage_config: %w", err)
	}
	if err := json.Unmarshal(methodsJSON, &t.AuthMethods); err != nil {
		return nil, fmt.Errorf("unmarshal auth_methods: %w", err)
	}
	if err := json.Unmarshal(themeJSON, &t.Theme); err != nil {
		return nil, fmt.Errorf("unmarshal theme: %w", err)
	}
	// Themes persistidos antes de un cambio de defaults se completan al leer.
	t.Theme = NormalizeTheme(t.Theme)
	return &t, nil
}
