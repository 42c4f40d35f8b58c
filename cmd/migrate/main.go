// Comando migrate: aplica las migraciones embebidas contra un Postgres.
// Sirve tanto para el compartido (registry + shared) como para preparar a
// mano la base de un tenant SEPARATE (--target tenant --dsn ...).
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/multipanel/internal/config"
	"github.com/dropDatabas3/multipanel/internal/store"
	migrations "github.com/dropDatabas3/multipanel/migrations/postgres"
)

var validTargets = map[string]string{
	"registry": migrations.RegistryDir,
	"shared":   migrations.SharedDir,
	"tenant":   migrations.TenantDir,
}

func main() {
	var (
		configPath = flag.String("config", "", "ruta a config.yaml (opcional; sin config usa env)")
		dsn        = flag.String("dsn", "", "DSN destino (default: storage.dsn de la config)")
		target     = flag.String("target", "registry,shared", "targets a aplicar: registry,shared,tenant")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dsn == "" {
		*dsn = cfg.Storage.DSN
	}
	if strings.TrimSpace(*dsn) == "" {
		log.Fatal("falta DSN: --dsn o storage.dsn en la config")
	}

	var dirs []string
	for _, t := range strings.Split(*target, ",") {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" {
			continue
		}
		dir, ok := validTargets[t]
		if !ok {
			log.Fatalf("target desconocido %q (validos: registry, shared, tenant)", t)
		}
		dirs = append(dirs, dir)
	}
	if len(dirs) == 0 {
		log.Fatal("ningun target para aplicar")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	for _, dir := range dirs {
		n, err := store.RunMigrations(ctx, pool, migrations.FS, dir)
		if err != nil {
			log.Fatalf("migrations %s: %v", dir, err)
		}
		log.Printf("%s: %d migracion(es) aplicadas", dir, n)
	}
}
