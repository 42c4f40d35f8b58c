// Package metrics define los contadores Prometheus del servicio. Viven en
// un paquete propio para evitar ciclos de import entre provisioning, auth
// y HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProvisionRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multipanel_provision_runs_total",
		Help: "Runs de provisioning por resultado (done|failed)",
	}, []string{"result"})

	ProvisionStepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multipanel_provision_step_failures_total",
		Help: "Fallos de provisioning por paso",
	}, []string{"step"})

	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multipanel_auth_attempts_total",
		Help: "Intentos de login por superficie y resultado",
	}, []string{"surface", "result"})

	OtpSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "multipanel_otp_sent_total",
		Help: "Códigos OTP entregados por SMS",
	})

	BinderRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "multipanel_binder_rebuilds_total",
		Help: "Reconstrucciones de la tabla de bindings",
	})

	TenantPools = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "multipanel_tenant_pools",
		Help: "Pools de conexión por tenant SEPARATE activos",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multipanel_http_requests_total",
		Help: "Requests HTTP por ruta y status",
	}, []string{"route", "status"})
)

// Register registra todas las métricas en el registry dado (default si nil).
// Registrar dos veces es seguro.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		ProvisionRuns,
		ProvisionStepFailures,
		AuthAttempts,
		OtpSent,
		BinderRebuilds,
		TenantPools,
		HTTPRequests,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
