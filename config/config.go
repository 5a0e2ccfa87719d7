// Package config loads run and server settings from a YAML file, a .env
// file and AWA_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bsaid97/go-area-weighted-average/geometry"
)

// envPrefix maps nested keys such as geometry.area_mode to AWA_GEOMETRY_AREA_MODE.
const envPrefix = "AWA"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Geometry GeometryConfig `mapstructure:"geometry"`
	Report   ReportConfig   `mapstructure:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// MaxUploadMB caps multipart request bodies.
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

type GeometryConfig struct {
	// AreaMode is planar, spherical or auto.
	AreaMode string `mapstructure:"area_mode"`
	// MinFragmentArea drops smaller intersection fragments, in square layer units.
	MinFragmentArea float64 `mapstructure:"min_fragment_area"`
	// IndexCellSize is the overlay grid cell size; 0 derives it from the data.
	IndexCellSize float64 `mapstructure:"index_cell_size"`
	// Repair runs MakeValid on invalid geometries before each operation.
	Repair bool `mapstructure:"repair"`
}

type ReportConfig struct {
	// Template is an optional html/template file replacing the built-in layout.
	Template string `mapstructure:"template"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the run metrics in Prometheus text format.
	Textfile string `mapstructure:"textfile"`
}

// StorageConfig describes the MinIO/S3 bucket artifacts are uploaded to.
// Uploads are off while Endpoint is empty.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether artifacts should be uploaded.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// setDefaults registers every key, which also makes each one reachable
// through its environment variable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("geometry.area_mode", string(geometry.AreaPlanar))
	v.SetDefault("geometry.min_fragment_area", 0.0)
	v.SetDefault("geometry.index_cell_size", 0.0)
	v.SetDefault("geometry.repair", true)
	v.SetDefault("report.template", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "awa-artifacts")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.use_ssl", false)
}

// Load reads .env from the working directory when present, then the YAML
// file at path (skipped when path is empty), then the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot honour.
func (c *Config) Validate() error {
	if _, err := geometry.ParseAreaMode(c.Geometry.AreaMode); err != nil {
		return fmt.Errorf("geometry.area_mode: %w", err)
	}
	if c.Geometry.MinFragmentArea < 0 {
		return fmt.Errorf("geometry.min_fragment_area must not be negative, got %v", c.Geometry.MinFragmentArea)
	}
	if c.Geometry.IndexCellSize < 0 {
		return fmt.Errorf("geometry.index_cell_size must not be negative, got %v", c.Geometry.IndexCellSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Storage.Enabled() && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.endpoint is set")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	return nil
}

// AreaMode returns the validated geometry.area_mode.
func (c *Config) AreaMode() geometry.AreaMode {
	m, _ := geometry.ParseAreaMode(c.Geometry.AreaMode)
	return m
}
