// Comando multipanel: CLI admin contra /v1/admin del service.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func (c *client) run(method, path string, body []byte) error {
	status, resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("%s %s fallo: status=%d body=%s", method, path, status, string(resp))
	}
	c.print(status, resp)
	return nil
}

func main() {
	var (
		baseURL = envOr("MULTIPANEL_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("MULTIPANEL_ADMIN_KEY", "")
		out     = envOr("MULTIPANEL_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "multipanel",
		Short: "CLI admin para multipanel (solo /v1/admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env MULTIPANEL_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env MULTIPANEL_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env MULTIPANEL_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: timeout}}

	tenantCmd := &cobra.Command{Use: "tenant", Short: "Operaciones sobre tenants"}

	// tenant create
	var (
		crKey, crName, crDesc, crStrategy, crPassword string
		crMethods                                     []string
		crStorage                                     string
		crOverwrite                                   bool
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear y aprovisionar un tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if crKey == "" || crName == "" {
				return fmt.Errorf("--key y --display-name son requeridos")
			}
			if crPassword == "" {
				return fmt.Errorf("--admin-password es requerido")
			}
			payload := map[string]any{
				"key":              crKey,
				"display_name":     crName,
				"description":      crDesc,
				"storage_strategy": crStrategy,
				"auth_methods":     crMethods,
				"admin_password":   crPassword,
				"overwrite":        crOverwrite,
			}
			if crStorage != "" {
				var sc map[string]any
				if err := json.Unmarshal([]byte(crStorage), &sc); err != nil {
					return fmt.Errorf("--storage-config no es JSON valido: %w", err)
				}
				payload["storage_config"] = sc
			}
			b, _ := json.Marshal(payload)
			return cl.run("POST", "/v1/admin/tenants", b)
		},
	}
	createCmd.Flags().StringVar(&crKey, "key", "", "Key del tenant (ej. acme)")
	createCmd.Flags().StringVar(&crName, "display-name", "", "Nombre visible")
	createCmd.Flags().StringVar(&crDesc, "description", "", "Descripcion (opcional)")
	createCmd.Flags().StringVar(&crStrategy, "strategy", "shared", "Estrategia de storage: shared|separate")
	createCmd.Flags().StringSliceVar(&crMethods, "auth-methods", []string{"email"}, "Metodos de auth: email,sms")
	createCmd.Flags().StringVar(&crStorage, "storage-config", "", "Config de storage SEPARATE (JSON)")
	createCmd.Flags().StringVar(&crPassword, "admin-password", "", "Password del usuario admin inicial")
	createCmd.Flags().BoolVar(&crOverwrite, "overwrite", false, "Re-aprovisionar sin fallar si el admin ya existe")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar tenants registrados",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/tenants", nil)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Mostrar un tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/tenants/"+args[0], nil)
		},
	}

	activateCmd := &cobra.Command{
		Use:   "activate <key>",
		Short: "Activar un tenant (vuelve ruteable)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/tenants/"+args[0]+"/activate", nil)
		},
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate <key>",
		Short: "Desactivar un tenant (todo su trafico se corta)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/tenants/"+args[0]+"/deactivate", nil)
		},
	}

	var delYes bool
	deleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Borrar el registro de un tenant (la base SEPARATE no se toca)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !delYes {
				return fmt.Errorf("operacion destructiva: repetir con --yes")
			}
			return cl.run("DELETE", "/v1/admin/tenants/"+args[0], nil)
		},
	}
	deleteCmd.Flags().BoolVar(&delYes, "yes", false, "Confirmar el borrado")

	usersCmd := &cobra.Command{
		Use:   "users <key>",
		Short: "Listar usuarios de un tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/tenants/"+args[0]+"/users", nil)
		},
	}

	tenantCmd.AddCommand(createCmd, listCmd, showCmd, activateCmd, deactivateCmd, deleteCmd, usersCmd)

	provisionCmd := &cobra.Command{
		Use:   "provision <key>",
		Short: "Ver el estado de provisioning de un tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/tenants/"+args[0]+"/provision", nil)
		},
	}

	var dtStorage string
	dbTestCmd := &cobra.Command{
		Use:   "db-test",
		Short: "Probar una config de storage SEPARATE sin registrarla",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dtStorage == "" {
				return fmt.Errorf("--storage-config es requerido (JSON)")
			}
			var sc map[string]any
			if err := json.Unmarshal([]byte(dtStorage), &sc); err != nil {
				return fmt.Errorf("--storage-config no es JSON valido: %w", err)
			}
			b, _ := json.Marshal(map[string]any{"storage_config": sc})
			return cl.run("POST", "/v1/admin/tenants/test-connection", b)
		},
	}
	dbTestCmd.Flags().StringVar(&dtStorage, "storage-config", "", "Config de storage a probar (JSON)")

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Snapshot de los pools por tenant abiertos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/tenants/pools", nil)
		},
	}

	root.AddCommand(tenantCmd, provisionCmd, dbTestCmd, poolsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
