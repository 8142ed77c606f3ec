package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"frameInterval": "8ms",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, 8*time.Millisecond, GetDuration("frameInterval"))
	assert.Equal(t, "10.0.0.1", GetString("db.host"))
	assert.Equal(t, "5433", GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, "./overmarklogs", GetString("logsDir"))
	assert.Equal(t, 16*time.Millisecond, GetDuration("frameInterval"))
	assert.Equal(t, 64, GetInt("commandQueueSize"))
	assert.Equal(t, "memory", GetString("storage.type"))
	assert.Equal(t, "overmark", GetString("db.database"))
	assert.False(t, GetBool("influx.enabled"))
	assert.False(t, GetBool("stream.enabled"))
	assert.True(t, GetBool("manifest.enabled"))
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
	assert.Equal(t, "memory", GetString("storage.type"))
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.True(t, GetBool("testBool"))
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": { "type": "sqlite", "sqlite": { "path": "/tmp/settings.db" } },
		"db": { "username": "overlay" }
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/settings.db", sc.SQLite.Path)
	assert.Equal(t, "overlay", sc.Postgres.Username)
	assert.Equal(t, "localhost", sc.Postgres.Host)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "overmark", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
}

func TestGetStreamAndInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"stream": { "enabled": true, "url": "ws://renderer:9000/frames", "secret": "s" },
		"influx": { "enabled": true, "token": "tok" }
	}`)))

	sc := GetStreamConfig()
	assert.True(t, sc.Enabled)
	assert.Equal(t, "ws://renderer:9000/frames", sc.URL)
	assert.Equal(t, "s", sc.Secret)

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "tok", ic.Token)
	assert.Equal(t, "overlay_performance", ic.Bucket)
	assert.Equal(t, "8086", ic.Port)
}

func TestGetManifestConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"manifest": {"timeout": "2s", "enabled": false}}`)))

	mc := GetManifestConfig()
	assert.False(t, mc.Enabled)
	assert.Equal(t, 2*time.Second, mc.Timeout)
}
