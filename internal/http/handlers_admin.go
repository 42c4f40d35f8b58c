package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/multipanel/internal/guard"
	"github.com/dropDatabas3/multipanel/internal/observability/logger"
	"github.com/dropDatabas3/multipanel/internal/provision"
	"github.com/dropDatabas3/multipanel/internal/store"
	"github.com/dropDatabas3/multipanel/internal/tenant"
	"github.com/dropDatabas3/multipanel/internal/users"
)

// AdminHandler expone la administración de paneles: alta (provisioning),
// consulta, parcheo, activación y baja.
type AdminHandler struct {
	registry tenant.Registry
	workflow *provision.Workflow
	resolver *store.Resolver
	binder   *guard.Binder
}

func NewAdminHandler(reg tenant.Registry, wf *provision.Workflow, res *store.Resolver, b *guard.Binder) *AdminHandler {
	return &AdminHandler{registry: reg, workflow: wf, resolver: res, binder: b}
}

type createTenantRequest struct {
	Key           string               `json:"key"`
	DisplayName   string               `json:"display_name"`
	Description   string               `json:"description"`
	Strategy      string               `json:"storage_strategy"`
	Storage       tenant.StorageConfig `json:"storage_config"`
	AuthMethods   []string             `json:"auth_methods"`
	Theme         map[string]any       `json:"theme"`
	AdminPassword string               `json:"admin_password"`
	Overwrite     bool                 `json:"overwrite"`
}

// Create provisiona un panel nuevo (o re-provisiona con overwrite).
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	methods := make([]tenant.AuthMethod, 0, len(req.AuthMethods))
	for _, m := range req.AuthMethods {
		methods = append(methods, tenant.AuthMethod(m))
	}
	rec, err := h.workflow.Provision(r.Context(), provision.Request{
		Tenant: tenant.Tenant{
			Key:         req.Key,
			DisplayName: req.DisplayName,
			Description: req.Description,
			Strategy:    tenant.StorageStrategy(req.Strategy),
			Storage:     req.Storage,
			AuthMethods: methods,
			Theme:       req.Theme,
			Active:      true,
		},
		AdminPassword: req.AdminPassword,
		Overwrite:     req.Overwrite,
	})
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrDuplicateKey):
			WriteError(w, http.StatusConflict, "duplicate_key", err.Error())
		case errors.Is(err, tenant.ErrImmutableField):
			WriteError(w, http.StatusConflict, "immutable_field", err.Error())
		case errors.Is(err, tenant.ErrInvalidKey), errors.Is(err, tenant.ErrInvalidInput):
			WriteError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
		case errors.Is(err, provision.ErrStorageUnreachable), errors.Is(err, store.ErrConnectionUnavailable):
			WriteError(w, http.StatusBadGateway, "storage_unreachable", err.Error())
		default:
			if rec != nil {
				// fallo a mitad del workflow: devolvemos el run para diagnóstico
				WriteJSON(w, http.StatusInternalServerError, rec)
				return
			}
			WriteError(w, http.StatusUnprocessableEntity, "provision_failed", err.Error())
		}
		return
	}
	WriteJSON(w, http.StatusCreated, rec)
}

// List retorna todos los tenants registrados.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.registry.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "registry_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tenants": all, "count": len(all)})
}

// Get retorna un tenant por key, con el tema ya normalizado.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

type patchTenantRequest struct {
	DisplayName *string         `json:"display_name"`
	Description *string         `json:"description"`
	AuthMethods *[]string       `json:"auth_methods"`
	Theme       *map[string]any `json:"theme"`
	Key         *string         `json:"key"`
	Strategy    *string         `json:"storage_strategy"`
}

// Patch actualiza los campos mutables del tenant y republica bindings.
func (h *AdminHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req patchTenantRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	patch := tenant.Patch{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Theme:       req.Theme,
	}
	if req.AuthMethods != nil {
		methods := make([]tenant.AuthMethod, 0, len(*req.AuthMethods))
		for _, m := range *req.AuthMethods {
			methods = append(methods, tenant.AuthMethod(m))
		}
		patch.AuthMethods = &methods
	}
	if req.Key != nil {
		patch.Key = req.Key
	}
	if req.Strategy != nil {
		s := tenant.StorageStrategy(*req.Strategy)
		patch.Strategy = &s
	}

	t, err := h.registry.Update(r.Context(), chi.URLParam(r, "key"), patch)
	if err != nil {
		h.writeRegistryError(w, err)
		return
	}
	h.rebuild(r)
	WriteJSON(w, http.StatusOK, t)
}

// SetActive activa o desactiva el panel y republica bindings.
// Desactivar corta logins nuevos de inmediato (fail closed).
func (h *AdminHandler) SetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := h.registry.SetActive(r.Context(), key, active); err != nil {
			h.writeRegistryError(w, err)
			return
		}
		h.rebuild(r)
		if !active {
			// El pool SEPARATE del tenant se cierra al dejar de estar bound.
			h.resolver.Close(key)
		}
		WriteJSON(w, http.StatusOK, map[string]any{"key": key, "active": active})
	}
}

// Delete borra la fila del registro. Nunca borra la base aislada del
// tenant; eso es una operación manual del operador.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.registry.Delete(r.Context(), key); err != nil {
		h.writeRegistryError(w, err)
		return
	}
	h.rebuild(r)
	h.resolver.Close(key)
	w.WriteHeader(http.StatusNoContent)
}

// ProvisionStatus retorna el último run de provisioning del tenant.
func (h *AdminHandler) ProvisionStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.workflow.Status(chi.URLParam(r, "key"))
	if !ok {
		WriteError(w, http.StatusNotFound, "not_found", "sin runs de provisioning para esa key")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

type testConnectionRequest struct {
	Storage tenant.StorageConfig `json:"storage_config"`
}

// TestConnection prueba la config de storage sin registrarla.
func (h *AdminHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	ok := h.resolver.Test(r.Context(), req.Storage)
	WriteJSON(w, http.StatusOK, map[string]any{"ok": ok})
}

// Users lista los usuarios del panel (scope aplicado por el binding).
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	b, err := h.binder.BindingFor(key, guard.SurfaceWeb)
	if err != nil {
		h.writeBindingError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	st := users.NewStore(b.Conn, b.Policy)
	list, err := st.List(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "storage_unreachable", err.Error())
		return
	}
	total, err := st.Count(r.Context())
	if err != nil {
		WriteError(w, http.StatusBadGateway, "storage_unreachable", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": list, "total": total})
}

// Pools expone el estado del registro de pools por tenant.
func (h *AdminHandler) Pools(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.resolver.Stats())
}

func (h *AdminHandler) rebuild(r *http.Request) {
	all, err := h.registry.List(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("binding rebuild skipped", logger.Err(err))
		return
	}
	h.binder.Rebuild(r.Context(), all)
}

func (h *AdminHandler) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tenant.ErrImmutableField):
		WriteError(w, http.StatusConflict, "immutable_field", err.Error())
	case errors.Is(err, tenant.ErrInvalidKey), errors.Is(err, tenant.ErrInvalidInput):
		WriteError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "registry_error", err.Error())
	}
}

func (h *AdminHandler) writeBindingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guard.ErrUnknownTenant):
		WriteError(w, http.StatusNotFound, "unknown_tenant", err.Error())
	case errors.Is(err, guard.ErrTenantInactive):
		WriteError(w, http.StatusForbidden, "tenant_inactive", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "binding_error", err.Error())
	}
}
