package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
seed = 42
port = 12000
user_timeout = "30s"
tick_rate = "100ms"

[world]
default_policy = "handoff"

[ai]
wander_rotation = 0.25
perturbation = "positive"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Server.Seed)
	assert.Equal(t, 12000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.UserTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.TickRate)
	assert.Equal(t, "handoff", cfg.World.DefaultPolicy)
	assert.Equal(t, 0.25, cfg.AI.WanderRotation)
	assert.Equal(t, "positive", cfg.AI.Perturbation)
	// untouched sections keep their defaults
	assert.Equal(t, 1024, cfg.Server.MaxClients)
	assert.Equal(t, "data/maps.yaml", cfg.World.MapFile)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 0

[world]
default_policy = "teleport"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestValidateWanderRotation(t *testing.T) {
	cfg := Defaults()
	assert.InDelta(t, 0.1745, cfg.AI.WanderRotation, 1e-4)

	cfg.AI.WanderRotation = 0
	require.NoError(t, cfg.Validate(), "zero disables turning")

	cfg.AI.WanderRotation = -0.2
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.wander_rotation")
}

func TestValidateDatabaseRequiresDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Enabled = true
	cfg.Database.DSN = ""
	require.Error(t, cfg.Validate())

	cfg.Database.DSN = "postgres://localhost/worldsrv"
	require.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:11337", cfg.Server.Addr())
}
