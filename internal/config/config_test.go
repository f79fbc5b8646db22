package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/foundry-express/internal/body"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foundry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	settings := cfg.RouterSettings()
	assert.Equal(t, "utf-8", settings.Encoding)
	assert.Equal(t, body.Raw, settings.ParseFormat)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
  read_timeout: 5s
router:
  parse_format: json
  encoding: latin1
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodySize, "unset keys keep defaults")
	assert.Equal(t, body.JSON, cfg.RouterSettings().ParseFormat)
	assert.Equal(t, "latin1", cfg.Router.Encoding)

	srv := cfg.ServerSettings()
	assert.Equal(t, "127.0.0.1:9000", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
router:
  parse_format: json
`)

	t.Setenv("FOUNDRY_SERVER_ADDR", ":7000")
	t.Setenv("FOUNDRY_SERVER_READ_TIMEOUT", "0s")
	t.Setenv("FOUNDRY_ROUTER_PARSE_FORMAT", "querystring")
	t.Setenv("FOUNDRY_LOG_OTEL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, time.Duration(0), cfg.Server.ReadTimeout)
	assert.Equal(t, body.QueryString, cfg.RouterSettings().ParseFormat)
	assert.True(t, cfg.Log.Otel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"parse format": "router:\n  parse_format: xml\n",
		"encoding":     "router:\n  encoding: klingon\n",
		"log level":    "log:\n  level: loud\n",
		"timeout":      "server:\n  read_timeout: -1s\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestYAML(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "read_timeout: 30s")
	assert.Contains(t, text, "parse_format: raw")
	assert.Contains(t, text, "level: info")
}
