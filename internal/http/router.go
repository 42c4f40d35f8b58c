// Package http arma el router chi del servicio: rutas de administración
// de paneles (protegidas por API key) y rutas públicas de autenticación
// por panel.
package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig parámetros de montaje del router.
type RouterConfig struct {
	AdminAPIKey    string
	DevMode        bool
	MetricsEnabled bool
	CORSOrigins    []string
}

// NewRouter construye el handler raíz con toda la cadena de middlewares.
func NewRouter(admin *AdminHandler, authH *AuthHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(RequireAdminKey(cfg.AdminAPIKey, cfg.DevMode))

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", admin.Create)
			r.Get("/", admin.List)
			r.Post("/test-connection", admin.TestConnection)
			r.Get("/pools", admin.Pools)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", admin.Get)
				r.Patch("/", admin.Patch)
				r.Delete("/", admin.Delete)
				r.Post("/activate", admin.SetActive(true))
				r.Post("/deactivate", admin.SetActive(false))
				r.Get("/provision", admin.ProvisionStatus)
				r.Get("/users", admin.Users)
			})
		})
	})

	r.Route("/v1/auth/{key}", func(r chi.Router) {
		r.Post("/{surface}/login", authH.Login)
		r.Post("/{surface}/otp/verify", authH.OtpVerify)
		r.Post("/otp/send", authH.OtpSend)
		r.Post("/logout", authH.Logout)
		r.Post("/send-verification", authH.SendVerification)
		r.Get("/verify-email", authH.VerifyEmail)
		r.Get("/me", authH.Me)
	})

	var h http.Handler = r
	h = WithLogging(h)
	h = WithSecurityHeaders(h)
	if len(cfg.CORSOrigins) > 0 {
		h = WithCORS(h, cfg.CORSOrigins)
	}
	h = WithRecover(h)
	h = WithRequestID(h)
	return h
}

// Start levanta el servidor HTTP en addr.
func Start(addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	return srv.ListenAndServe()
}

// NormalizeOrigins limpia la lista de orígenes CORS de la config.
func NormalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
