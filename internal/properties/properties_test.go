package properties

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "GRPC_PORT", "ROOT_PATH", "CLUSTERING_ADDR", "WEATHER_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 50051, cfg.Server.GrpcPort)
	assert.Equal(t, 30, cfg.Analysis.WindowDays)
	assert.Equal(t, 10.0, cfg.Analysis.FieldScale)
	assert.Equal(t, 50.0, cfg.Analysis.RegionalScale)
	assert.Equal(t, 100.0, cfg.Analysis.ThermalScale)
	assert.Equal(t, 20.0, cfg.Analysis.SampleScale)
	assert.Equal(t, 600, cfg.Analysis.ThumbnailSize)
	assert.Equal(t, Zoning{K: 3}, cfg.Zoning)
	assert.Equal(t, ".", cfg.RootPath)
	assert.True(t, cfg.Weather.Enabled)
}

func TestLoadWeatherToggle(t *testing.T) {
	t.Setenv("WEATHER_ENABLED", "false")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Weather.Enabled)

	t.Setenv("WEATHER_ENABLED", "sometimes")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  request_timeout: 90s
analysis:
  regional_scale: 30
zoning:
  clustering_addr: localhost:50052
copernicus:
  retry_delay: 2s
`), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("COPERNICUS_CLIENT_ID", "a,b")
	t.Setenv("ROOT_PATH", "/srv/yvy")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 30.0, cfg.Analysis.RegionalScale)
	assert.Equal(t, 10.0, cfg.Analysis.FieldScale)
	assert.Equal(t, "localhost:50052", cfg.Zoning.ClusteringAddr)
	assert.Equal(t, 2*time.Second, cfg.Copernicus.RetryDelay)
	assert.Equal(t, "a,b", cfg.Copernicus.ClientID)
	assert.Equal(t, "/srv/yvy", cfg.RootPath)
}

func TestLoadIgnoresClusteringSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
zoning:
  k: 4
  seed: 7
  restarts: 1
`), 0o644))
	t.Setenv("CLUSTERING_ADDR", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Zoning{K: 4}, cfg.Zoning)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load("")
	assert.ErrorContains(t, err, "PORT")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
