package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[station]
callsign = W1XYZ

[cluster]
primary = dxc.example.net:7300
backup = dxc-backup.example.net:7300
post_login_commands = set/skimmer,set/ft8
reconnect_delay = 10s

[radio]
addr = 192.168.1.100:4992
spot_lifetime = 30m

[enrichment]
cache_max_size = 500

[storage]
postgres_dsn = postgres://bridge@localhost/bridge
use_memory = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "W1XYZ", cfg.Station.Callsign)
	assert.Equal(t, "dxc.example.net:7300", cfg.Cluster.Primary)
	assert.Equal(t, "dxc-backup.example.net:7300", cfg.Cluster.Backup)
	assert.Equal(t, []string{"set/skimmer", "set/ft8"}, cfg.Cluster.PostLoginCommands)
	assert.Equal(t, 10*time.Second, cfg.Cluster.ReconnectDelay)
	assert.Equal(t, "192.168.1.100:4992", cfg.Radio.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Radio.SpotLifetime)
	assert.Equal(t, 500, cfg.Enrichment.CacheMaxSize)
	assert.Equal(t, "postgres://bridge@localhost/bridge", cfg.Storage.PostgresDSN)
}

func TestLoad_MissingKeysKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
[station]
callsign = W1XYZ
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Cluster.LoginPrompt, cfg.Cluster.LoginPrompt)
	assert.Equal(t, def.Cluster.ReconnectDelay, cfg.Cluster.ReconnectDelay)
	assert.Equal(t, def.Radio.CommandDeadline, cfg.Radio.CommandDeadline)
	assert.Equal(t, def.Enrichment.CacheMaxSize, cfg.Enrichment.CacheMaxSize)
	assert.Equal(t, def.Server.Listen, cfg.Server.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}

func TestConfigTranslation(t *testing.T) {
	path := writeConfig(t, `
[station]
callsign = W1XYZ

[cluster]
primary = dxc.example.net:7300
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	cc := cfg.ClusterConfig()
	assert.Equal(t, "W1XYZ", cc.Callsign)
	assert.Equal(t, "dxc.example.net:7300", cc.Primary)

	rc := cfg.RadioConfig()
	assert.Equal(t, "W1XYZ", rc.StationCall)

	ec := cfg.EnrichmentConfig()
	assert.Equal(t, Default().Enrichment.CacheMaxSize, ec.MaxSize)
}
