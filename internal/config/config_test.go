package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "bookgraph.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, Duration(10*time.Second), cfg.Server.Timeout)
	assert.Equal(t, "/graphql", cfg.GraphQL.Path)
	assert.True(t, cfg.GraphQL.SchemaAvailable)
	assert.False(t, cfg.GraphQL.AllowGet)
	assert.True(t, cfg.UI.Enable)
	assert.Equal(t, "/graphql-ui", cfg.UI.Path)
	assert.Equal(t, "/graphql/schema.graphql", cfg.SchemaPath())
	assert.Equal(t, 16, cfg.Resolver.MaxConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"server": {"addr": ":9000", "timeout": "3s", "cors-origins": ["https://a.example"]},
		"graphql": {"allow-get": true},
		"store": {"url": "file:books.db"}
	}`)

	cfg, err := Load([]string{"-config", path, "-server.addr", ":9100", "-server.metadata-headers", "Authorization, X-Tenant"})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, Duration(3*time.Second), cfg.Server.Timeout)
	assert.Equal(t, []string{"https://a.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"Authorization", "X-Tenant"}, cfg.Server.MetadataHeaders)
	assert.True(t, cfg.GraphQL.AllowGet)
	assert.Equal(t, "file:books.db", cfg.Store.URL)
	assert.Equal(t, "/graphql", cfg.GraphQL.Path, "unset keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load([]string{"-config", filepath.Join(dir, "missing.json")})
	assert.Error(t, err)

	_, err = Load([]string{"-config", writeConfig(t, dir, `{"server": {"port": 1}}`)})
	assert.ErrorContains(t, err, "unknown field")

	_, err = Load([]string{"-config", writeConfig(t, dir, `{"server": {"timeout": 10}}`)})
	assert.ErrorContains(t, err, "duration must be a string")

	_, err = Load([]string{"-no-such-flag"})
	assert.Error(t, err)

	_, err = Load([]string{"stray"})
	assert.EqualError(t, err, "unexpected arguments: stray")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr must not be empty"},
		{"negative body", func(c *Config) { c.Server.MaxBodyBytes = -1 }, "server.max-body-bytes must not be negative"},
		{"negative timeout", func(c *Config) { c.Server.Timeout = -1 }, "server.timeout must not be negative"},
		{"relative path", func(c *Config) { c.GraphQL.Path = "graphql" }, `graphql.path must be an absolute path, got "graphql"`},
		{"ui collides", func(c *Config) { c.UI.Path = "/graphql" }, `ui.path collides with graphql.path at "/graphql"`},
		{"metrics collides", func(c *Config) {
			c.Metrics.Enable = true
			c.Metrics.Path = "/graphql-ui"
		}, `metrics.path collides with ui.path at "/graphql-ui"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("disabled surfaces are not checked", func(t *testing.T) {
		cfg := Default()
		cfg.UI.Enable = false
		cfg.UI.Path = "/graphql"
		assert.NoError(t, cfg.Validate())
	})
}

func TestWatchAppliesValidReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := writeConfig(t, dir, `{"server": {"pretty": false}}`)
	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied := make(chan *Config, 4)
	require.NoError(t, cfg.Watch(ctx, zap.NewNop(), func(c *Config) {
		select {
		case applied <- c:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"pretty": true}}`), 0o644))

	select {
	case next := <-applied:
		assert.True(t, next.Server.Pretty)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not applied")
	}
	cancel()
}

func TestWatchRequiresFile(t *testing.T) {
	assert.Error(t, Default().Watch(context.Background(), zap.NewNop(), func(*Config) {}))
}
