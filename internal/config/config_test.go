package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
db:
  driver: postgres
  dsn: postgres://localhost/tree
filters:
  system_path: /etc/lineage/system.yaml
log:
  level: debug
`), 0o644))

	t.Setenv("LINEAGE_CONFIG_PATH", path)
	t.Setenv("LINEAGE_SERVER_PORT", "9100")
	t.Setenv("LINEAGE_CUSTOM_FILTERS", "/var/lib/lineage/custom.yaml")
	t.Setenv("LINEAGE_TRANSPORT", "stdio")
	t.Setenv("LINEAGE_AUTH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "postgres", cfg.DB.Driver)
	require.Equal(t, "postgres://localhost/tree", cfg.DB.DSN)
	require.Equal(t, "/etc/lineage/system.yaml", cfg.Filters.SystemPath)
	require.Equal(t, "/var/lib/lineage/custom.yaml", cfg.Filters.CustomPath)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.True(t, cfg.Auth.Enabled, "stdio ignores auth, so no token is needed")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port":      {"LINEAGE_SERVER_PORT": "eighty"},
		"range":     {"LINEAGE_SERVER_PORT": "70000"},
		"driver":    {"LINEAGE_DB_DRIVER": "mysql"},
		"transport": {"LINEAGE_TRANSPORT": "carrier-pigeon"},
		"level":     {"LINEAGE_LOG_LEVEL": "chatty"},
		"auth":      {"LINEAGE_AUTH_ENABLED": "yes please"},
		"token":     {"LINEAGE_AUTH_ENABLED": "true"},
		"file":      {"LINEAGE_CONFIG_PATH": filepath.Join(t.TempDir(), "missing.yaml")},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
