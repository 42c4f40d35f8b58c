// Comando service: levanta el panel multi-tenant completo (registro de
// tenants, provisioning, auth por superficie y API de administración).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/multipanel/internal/auth"
	"github.com/dropDatabas3/multipanel/internal/cache"
	"github.com/dropDatabas3/multipanel/internal/config"
	"github.com/dropDatabas3/multipanel/internal/email"
	"github.com/dropDatabas3/multipanel/internal/guard"
	httpserver "github.com/dropDatabas3/multipanel/internal/http"
	"github.com/dropDatabas3/multipanel/internal/metrics"
	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/provision"
	"github.com/dropDatabas3/multipanel/internal/rate"
	"github.com/dropDatabas3/multipanel/internal/sms"
	"github.com/dropDatabas3/multipanel/internal/store"
	"github.com/dropDatabas3/multipanel/internal/tenant"
	migrations "github.com/dropDatabas3/multipanel/migrations/postgres"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" && fileExists("configs/config.yaml") {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logEnv := cfg.App.Env
	if strings.EqualFold(cfg.Log.Format, "json") {
		logEnv = "prod"
	}
	logger.Init(logger.Config{Env: logEnv, Level: cfg.Log.Level, ServiceName: "multipanel"})
	zl := logger.L()
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	// ───── Postgres compartido (registro + usuarios SHARED) ─────
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		zl.Fatal("storage.dsn faltante: se requiere el Postgres compartido")
	}
	pool, err := store.OpenShared(ctx, cfg.Storage.DSN, store.PGConfig{
		MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
		ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime),
	})
	if err != nil {
		zl.Fatal("open shared pool", logger.Err(err))
	}
	defer pool.Close()

	if cfg.Flags.Migrate {
		for _, dir := range []string{migrations.RegistryDir, migrations.SharedDir} {
			n, err := store.RunMigrations(ctx, pool, migrations.FS, dir)
			if err != nil {
				zl.Fatal("migrations", logger.String("dir", dir), logger.Err(err))
			}
			zl.Info("migrations applied", logger.String("dir", dir), logger.Count(n))
		}
	}

	registry := tenant.NewPGRegistry(pool)
	resolver := store.NewResolver(pool)
	defer resolver.CloseAll()
	binder := guard.NewBinder(resolver)

	// Bootstrap: publicar la tabla de bindings antes de aceptar tráfico.
	tenants, err := registry.List(ctx)
	if err != nil {
		zl.Fatal("registry list", logger.Err(err))
	}
	res := binder.Rebuild(ctx, tenants)
	metrics.BinderRebuilds.Inc()
	metrics.TenantPools.Set(float64(resolver.Stats().TotalActive))
	zl.Info("bindings bootstrapped",
		logger.Count(len(res.Bound)), logger.Int("skipped", len(res.Skipped)))

	// ───── Cache (sesiones, OTP, rate limiting) ─────
	cc, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Prefix:     cfg.Cache.Redis.Prefix,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		zl.Fatal("cache", logger.Err(err))
	}
	defer func() { _ = cc.Close() }()

	// Limiters: con Redis usamos el cliente nativo (pipeline INCR+EXPIRE),
	// en memoria la ventana fija va sobre cache.Client.
	var loginLimit, otpLimit auth.Limiter
	if strings.EqualFold(cfg.Cache.Kind, "redis") {
		rc := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		prefix := cfg.Cache.Redis.Prefix + "rl:"
		loginLimit = rate.NewRedisLimiter(rc, prefix, cfg.Rate.Login.Limit, config.Dur(cfg.Rate.Login.Window))
		otpLimit = rate.NewRedisLimiter(rc, prefix, cfg.Rate.Otp.Limit, config.Dur(cfg.Rate.Otp.Window))
	} else {
		loginLimit = rate.NewCacheLimiter(cc, "rl:", cfg.Rate.Login.Limit, config.Dur(cfg.Rate.Login.Window))
		otpLimit = rate.NewCacheLimiter(cc, "rl:", cfg.Rate.Otp.Limit, config.Dur(cfg.Rate.Otp.Window))
	}

	// ───── Salidas: SMS y email ─────
	smsSender := sms.NewAakash(sms.Config{
		Token:   cfg.SMS.AakashToken,
		BaseURL: cfg.SMS.BaseURL,
	})
	emailSender := email.NewSMTP(email.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		FromEmail:          cfg.SMTP.From,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	})

	// ───── Auth ─────
	issuer := auth.NewIssuer(cfg.JWT.Issuer, []byte(cfg.JWT.Secret))
	if d := config.Dur(cfg.JWT.AccessTTL); d > 0 {
		issuer.AccessTTL = d
	}
	sessions := auth.NewSessionManager(cc, config.Dur(cfg.Auth.Session.TTL))
	otpMgr := auth.NewOTPManager(cc)
	verifier := auth.NewEmailVerifier(cc)

	authSvc := auth.NewService(binder, sessions, otpMgr, verifier, issuer,
		loginLimit, otpLimit, smsSender, emailSender,
		auth.Config{BaseURL: cfg.Server.BaseURL})

	// ───── Provisioning ─────
	workflow := provision.NewWorkflow(registry, resolver, binder,
		migrations.FS, migrations.SharedDir, migrations.TenantDir)

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			zl.Fatal("metrics", logger.Err(err))
		}
	}

	devMode := !strings.EqualFold(cfg.App.Env, "prod")
	handler := httpserver.NewRouter(
		httpserver.NewAdminHandler(registry, workflow, resolver, binder),
		httpserver.NewAuthHandler(authSvc, binder),
		httpserver.RouterConfig{
			AdminAPIKey:    cfg.Server.AdminAPIKey,
			DevMode:        devMode,
			MetricsEnabled: cfg.Metrics.Enabled,
			CORSOrigins:    httpserver.NormalizeOrigins(cfg.Server.CORSAllowedOrigins),
		},
	)

	zl.Info("service up",
		logger.String("addr", cfg.Server.Addr),
		logger.String("env", cfg.App.Env),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("time", time.Now().Format(time.RFC3339)),
	)
	if err := httpserver.Start(cfg.Server.Addr, handler); err != nil {
		zl.Fatal("http", logger.Err(err))
	}
}
