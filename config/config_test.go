package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-area-weighted-average/geometry"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, geometry.AreaPlanar, cfg.AreaMode())
	assert.True(t, cfg.Geometry.Repair)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "awa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
geometry:
  area_mode: spherical
  min_fragment_area: 0.5
report:
  template: custom.tmpl
`), 0644))
	t.Setenv("AWA_GEOMETRY_MIN_FRAGMENT_AREA", "2")
	t.Setenv("AWA_STORAGE_ENDPOINT", "localhost:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, geometry.AreaSpherical, cfg.AreaMode())
	assert.Equal(t, 2.0, cfg.Geometry.MinFragmentArea)
	assert.Equal(t, "custom.tmpl", cfg.Report.Template)
	assert.True(t, cfg.Storage.Enabled())
	assert.Equal(t, "awa-artifacts", cfg.Storage.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:      LogConfig{Level: "info", Format: "json"},
			Server:   ServerConfig{Addr: ":8080", MaxUploadMB: 10},
			Geometry: GeometryConfig{AreaMode: "auto"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"area mode", func(c *Config) { c.Geometry.AreaMode = "geodesic" }},
		{"negative tolerance", func(c *Config) { c.Geometry.MinFragmentArea = -1 }},
		{"negative cell size", func(c *Config) { c.Geometry.IndexCellSize = -1 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bucket", func(c *Config) { c.Storage.Endpoint = "minio:9000" }},
		{"upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
