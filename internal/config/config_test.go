package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, 5, c.Rate.Login.Limit)
	assert.Equal(t, "15m", c.Rate.Login.Window)
	assert.Equal(t, "auto", c.SMTP.TLS)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9090"
cache:
  kind: redis
  redis:
    addr: "localhost:6379"
rate:
  login:
    limit: 7
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SERVER_ADDR", ":7070")

	c, err := Load(path)
	require.NoError(t, err)
	// env pisa yaml
	assert.Equal(t, ":7070", c.Server.Addr)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 7, c.Rate.Login.Limit)
}

func TestLoad_BadDurationRejected(t *testing.T) {
	t.Setenv("AUTH_SESSION_TTL", "veinticuatro horas")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("ADMIN_API_KEY", "admin-key")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prod", c.App.Env)
}
