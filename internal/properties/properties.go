package properties

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const ServiceName = "yvy-field-service"

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

type Config struct {
	RootPath   string     `yaml:"root_path"`
	PublicURL  string     `yaml:"public_url"`
	Server     Server     `yaml:"server"`
	Copernicus Copernicus `yaml:"copernicus"`
	Analysis   Analysis   `yaml:"analysis"`
	Zoning     Zoning     `yaml:"zoning"`
	Database   Database   `yaml:"database"`
	Discord    Discord    `yaml:"discord"`
	Weather    Weather    `yaml:"weather"`
	Log        Log        `yaml:"log"`
}

type Server struct {
	Port           int           `yaml:"port"`
	GrpcPort       int           `yaml:"grpc_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Copernicus configures the Sentinel Hub client. ClientID and ClientSecret
// may hold comma-separated lists that are tried in order.
type Copernicus struct {
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	TokenURL          string        `yaml:"token_url"`
	ProcessURL        string        `yaml:"process_url"`
	CatalogURL        string        `yaml:"catalog_url"`
	Retries           int           `yaml:"retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Workers           int           `yaml:"workers"`
	CacheDir          string        `yaml:"cache_dir"`
	ShowProgress      bool          `yaml:"show_progress"`
}

// Analysis holds the sampling scales in metres and thumbnail size in pixels.
type Analysis struct {
	WindowDays    int     `yaml:"window_days"`
	FieldScale    float64 `yaml:"field_scale"`
	RegionalScale float64 `yaml:"regional_scale"`
	ThermalScale  float64 `yaml:"thermal_scale"`
	OLCIScale     float64 `yaml:"olci_scale"`
	SampleScale   float64 `yaml:"sample_scale"`
	ThumbnailSize int     `yaml:"thumbnail_size"`
}

type Zoning struct {
	K              int    `yaml:"k"`
	ClusteringAddr string `yaml:"clustering_addr"`
}

type Database struct {
	URL string `yaml:"url"`
}

type Discord struct {
	ErrorURL   string `yaml:"error_url"`
	SuccessURL string `yaml:"success_url"`
	AlertURL   string `yaml:"alert_url"`
}

// Weather configures the Open-Meteo archive lookup added to analyses.
type Weather struct {
	Enabled    bool   `yaml:"enabled"`
	ArchiveURL string `yaml:"archive_url"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	return Config{
		PublicURL: "http://localhost:8000",
		Server: Server{
			Port:           8000,
			GrpcPort:       50051,
			RequestTimeout: 5 * time.Minute,
		},
		Copernicus: Copernicus{
			TokenURL:          "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token",
			ProcessURL:        "https://sh.dataspace.copernicus.eu/api/v1/process",
			CatalogURL:        "https://sh.dataspace.copernicus.eu/api/v1/catalog/1.0.0/search",
			Retries:           10,
			RetryDelay:        5 * time.Second,
			RequestsPerSecond: 5,
			Workers:           4,
		},
		Analysis: Analysis{
			WindowDays:    30,
			FieldScale:    10,
			RegionalScale: 50,
			ThermalScale:  100,
			OLCIScale:     300,
			SampleScale:   20,
			ThumbnailSize: 600,
		},
		Zoning:  Zoning{K: 3},
		Weather: Weather{Enabled: true, ArchiveURL: "https://archive-api.open-meteo.com/v1/archive"},
		Log:     Log{Level: "info"},
	}
}

// Load reads defaults, then the optional YAML file at path, then environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "."
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.RootPath, "ROOT_PATH")
	setString(&cfg.PublicURL, "PUBLIC_URL")
	setString(&cfg.Copernicus.ClientID, "COPERNICUS_CLIENT_ID")
	setString(&cfg.Copernicus.ClientSecret, "COPERNICUS_CLIENT_SECRET")
	setString(&cfg.Copernicus.TokenURL, "COPERNICUS_TOKEN_URL")
	setString(&cfg.Copernicus.CacheDir, "COPERNICUS_CACHE_DIR")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Zoning.ClusteringAddr, "CLUSTERING_ADDR")
	setString(&cfg.Discord.ErrorURL, "DISCORD_ERROR_NOTIFICATION_URL")
	setString(&cfg.Discord.SuccessURL, "DISCORD_SUCCESS_NOTIFICATION_URL")
	setString(&cfg.Discord.AlertURL, "DISCORD_ALERT_NOTIFICATION_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")
	if err := setBool(&cfg.Weather.Enabled, "WEATHER_ENABLED"); err != nil {
		return err
	}

	if err := setInt(&cfg.Server.Port, "PORT"); err != nil {
		return err
	}
	return setInt(&cfg.Server.GrpcPort, "GRPC_PORT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
