// Package provision implementa el workflow de alta de un panel: registra
// el tenant, prepara su storage, aplica el esquema, siembra el admin y
// publica los bindings. Los pasos corren en orden fijo y un fallo deja el
// run en FAILED con el paso y el error; no hay rollback automático.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/dropDatabas3/multipanel/internal/guard"
	"github.com/dropDatabas3/multipanel/internal/metrics"
	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/scope"
	"github.com/dropDatabas3/multipanel/internal/security/password"
	"github.com/dropDatabas3/multipanel/internal/store"
	"github.com/dropDatabas3/multipanel/internal/tenant"
	"github.com/dropDatabas3/multipanel/internal/users"
)

// Step identifica una etapa del workflow.
type Step string

const (
	StepRequested    Step = "REQUESTED"
	StepRegistered   Step = "REGISTERED"
	StepStorageReady Step = "STORAGE_READY"
	StepSchemaReady  Step = "SCHEMA_READY"
	StepSeeded       Step = "SEEDED"
	StepBound        Step = "BOUND"
	StepDone         Step = "DONE"
)

// Status es el estado de un run.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

var (
	// ErrStorageUnreachable indica que la config de storage no responde.
	ErrStorageUnreachable = errors.New("provision: storage unreachable")

	// ErrInProgress indica un run vivo para la misma key.
	ErrInProgress = errors.New("provision: run already in progress for key")
)

// Request describe un alta de panel.
type Request struct {
	Tenant        tenant.Tenant
	AdminPassword string
	// Overwrite re-provisiona un tenant existente (misma estrategia).
	Overwrite bool
}

// Record es el estado observable de un run.
type Record struct {
	Key        string    `json:"key"`
	Status     Status    `json:"status"`
	Step       Step      `json:"step"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Workflow orquesta el alta de paneles. Los runs sobre la misma key se
// serializan; keys distintas corren en paralelo.
type Workflow struct {
	registry   tenant.Registry
	resolver   *store.Resolver
	binder     *guard.Binder
	migrations fs.FS

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	runs  map[string]*Record

	sharedDir string
	tenantDir string
}

func NewWorkflow(reg tenant.Registry, res *store.Resolver, b *guard.Binder, migrations fs.FS, sharedDir, tenantDir string) *Workflow {
	return &Workflow{
		registry:   reg,
		resolver:   res,
		binder:     b,
		migrations: migrations,
		locks:      make(map[string]*sync.Mutex),
		runs:       make(map[string]*Record),
		sharedDir:  sharedDir,
		tenantDir:  tenantDir,
	}
}

// Status retorna el último run conocido para la key.
func (w *Workflow) Status(key string) (*Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := w.runs[key]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (w *Workflow) lockFor(key string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[key]
	if !ok {
		l = &sync.Mutex{}
		w.locks[key] = l
	}
	return l
}

// Provision ejecuta el workflow completo para la request dada.
// El Record retornado refleja el resultado final; ante fallo, Step queda
// en el paso que falló y el estado intermedio persiste para diagnóstico.
func (w *Workflow) Provision(ctx context.Context, req Request) (*Record, error) {
	t, err := tenant.Normalize(req.Tenant)
	if err != nil {
		return nil, err
	}
	if err := password.Validate(req.AdminPassword); err != nil {
		return nil, fmt.Errorf("provision: admin password: %w", err)
	}

	lock := w.lockFor(t.Key)
	lock.Lock()
	defer lock.Unlock()

	rec := &Record{Key: t.Key, Status: StatusRunning, Step: StepRequested, StartedAt: time.Now().UTC()}
	w.mu.Lock()
	w.runs[t.Key] = rec
	w.mu.Unlock()

	log := logger.From(ctx).With(
		logger.Component("provision.Workflow"),
		logger.Tenant(t.Key),
		logger.Strategy(string(t.Strategy)),
	)
	log.Info("provisioning started", logger.Bool("overwrite", req.Overwrite))

	fail := func(step Step, err error) (*Record, error) {
		w.mu.Lock()
		rec.Status = StatusFailed
		rec.Step = step
		rec.Error = err.Error()
		rec.FinishedAt = time.Now().UTC()
		w.mu.Unlock()
		metrics.ProvisionRuns.WithLabelValues("failed").Inc()
		metrics.ProvisionStepFailures.WithLabelValues(string(step)).Inc()
		log.Error("provisioning failed", logger.Step(string(step)), logger.Err(err))
		return rec, err
	}
	advance := func(step Step) {
		w.mu.Lock()
		rec.Step = step
		w.mu.Unlock()
		log.Info("provisioning step", logger.Step(string(step)))
	}

	// REGISTERED: el tenant entra al registro. Duplicados sin overwrite
	// abortan acá, antes de tocar storage.
	created, err := w.registry.Create(ctx, t, req.Overwrite)
	if err != nil {
		return fail(StepRegistered, err)
	}
	t = *created
	advance(StepRegistered)

	// STORAGE_READY: la base destino existe y responde.
	if t.Strategy == tenant.StorageSeparate {
		if !w.resolver.Test(ctx, t.Storage) {
			if err := w.resolver.EnsureDatabase(ctx, t.Storage); err != nil {
				return fail(StepStorageReady, err)
			}
			if !w.resolver.Test(ctx, t.Storage) {
				return fail(StepStorageReady, fmt.Errorf("%w: %s/%s", ErrStorageUnreachable, t.Storage.Host, t.Storage.Database))
			}
		}
	}
	conn, err := w.resolver.Resolve(ctx, &t)
	if err != nil {
		return fail(StepStorageReady, err)
	}
	advance(StepStorageReady)

	// SCHEMA_READY: migraciones del esquema que corresponde a la estrategia.
	dir := w.tenantDir
	if t.Strategy == tenant.StorageShared {
		dir = w.sharedDir
	}
	applied, err := store.RunMigrations(ctx, conn, w.migrations, dir)
	if err != nil {
		return fail(StepSchemaReady, err)
	}
	log.Info("schema ready", logger.Count(applied))
	advance(StepSchemaReady)

	// SEEDED: el usuario admin del panel.
	if err := w.seedAdmin(ctx, &t, conn, req); err != nil {
		return fail(StepSeeded, err)
	}
	advance(StepSeeded)

	// BOUND: la tabla de bindings se reconstruye con el tenant nuevo.
	all, err := w.registry.List(ctx)
	if err != nil {
		return fail(StepBound, err)
	}
	result := w.binder.Rebuild(ctx, all)
	metrics.BinderRebuilds.Inc()
	metrics.TenantPools.Set(float64(w.resolver.Stats().TotalActive))
	for _, skipped := range result.Skipped {
		if skipped == t.Key {
			return fail(StepBound, fmt.Errorf("%w: binding skipped for %s", ErrStorageUnreachable, t.Key))
		}
	}
	advance(StepBound)

	w.mu.Lock()
	rec.Status = StatusDone
	rec.Step = StepDone
	rec.FinishedAt = time.Now().UTC()
	w.mu.Unlock()
	metrics.ProvisionRuns.WithLabelValues("done").Inc()
	log.Info("provisioning done")
	return rec, nil
}

// seedAdmin crea el admin del panel. En re-provisioning con overwrite el
// admin ya existe y el alta se trata como no-op.
func (w *Workflow) seedAdmin(ctx context.Context, t *tenant.Tenant, conn store.Conn, req Request) error {
	st := users.NewStore(conn, scope.ForTenant(t))
	_, err := st.Create(ctx, users.CreateInput{
		Name:     t.DisplayName + " Admin",
		Email:    t.AdminEmail(),
		Password: req.AdminPassword,
		Profile:  map[string]any{"role": "admin"},
	})
	if err != nil {
		if req.Overwrite && errors.Is(err, users.ErrEmailTaken) {
			return nil
		}
		return err
	}
	return nil
}
