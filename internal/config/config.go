// Package config loads settings from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"

	"github.com/handsomefox/moviescope/internal/tmdb"
)

const (
	BackendAppwrite = "appwrite"
	BackendSQLite   = "sqlite"
	BackendSurreal  = "surreal"
	BackendNone     = "none"
)

type Server struct {
	Port int `mapstructure:"port" validate:"required|min:1|max:65535"`
}

type TMDB struct {
	APIKey    string        `mapstructure:"api_key"`
	ReadToken string        `mapstructure:"read_token"`
	BaseURL   string        `mapstructure:"base_url" validate:"required|fullUrl"`
	ImageBase string        `mapstructure:"image_base" validate:"required|fullUrl"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"required|min:1"`
}

type Keystore struct {
	Path string `mapstructure:"path"`
}

type Counters struct {
	Backend string `mapstructure:"backend" validate:"required|in:appwrite,sqlite,surreal,none"`
}

type Appwrite struct {
	Endpoint     string `mapstructure:"endpoint"`
	ProjectID    string `mapstructure:"project_id"`
	DatabaseID   string `mapstructure:"database_id"`
	CollectionID string `mapstructure:"collection_id"`
}

type SQLite struct {
	Path string `mapstructure:"path"`
}

type Surreal struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	User      string `mapstructure:"user"`
	Pass      string `mapstructure:"pass"`
}

type Search struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"required|min:1"`
}

type Trending struct {
	// CacheTTL bounds how stale trending can be when other processes write
	// the same store. Zero turns the trending cache off.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type Log struct {
	Level string `mapstructure:"level" validate:"required|in:debug,info,warn,error"`
	File  string `mapstructure:"file"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Server   Server   `mapstructure:"server"`
	TMDB     TMDB     `mapstructure:"tmdb"`
	Keystore Keystore `mapstructure:"keystore"`
	Counters Counters `mapstructure:"counters"`
	Appwrite Appwrite `mapstructure:"appwrite"`
	SQLite   SQLite   `mapstructure:"sqlite"`
	Surreal  Surreal  `mapstructure:"surreal"`
	Search   Search   `mapstructure:"search"`
	Trending Trending `mapstructure:"trending"`
	Log      Log      `mapstructure:"log"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

var defaults = map[string]any{
	"server.port":        8080,
	"tmdb.base_url":      tmdb.DefaultBaseURL,
	"tmdb.image_base":    tmdb.DefaultImageBase,
	"tmdb.timeout":       "10s",
	"keystore.path":      "data/tmdb_key.env",
	"counters.backend":   BackendSQLite,
	"sqlite.path":        "data/moviescope.db",
	"surreal.namespace":  "moviescope",
	"surreal.database":   "moviescope",
	"search.debounce":    "500ms",
	"trending.cache_ttl": "30s",
	"log.level":          "info",
	"metrics.enabled":    true,
}

// envNames maps config keys to the environment variables that set them.
var envNames = map[string]string{
	"server.port":            "PORT",
	"tmdb.api_key":           "TMDB_API_KEY",
	"tmdb.read_token":        "TMDB_API_READ_TOKEN",
	"tmdb.base_url":          "TMDB_BASE_URL",
	"tmdb.image_base":        "TMDB_IMAGE_BASE",
	"tmdb.timeout":           "TMDB_TIMEOUT",
	"keystore.path":          "KEYSTORE_PATH",
	"counters.backend":       "COUNTER_BACKEND",
	"appwrite.endpoint":      "APPWRITE_ENDPOINT",
	"appwrite.project_id":    "APPWRITE_PROJECT_ID",
	"appwrite.database_id":   "APPWRITE_DATABASE_ID",
	"appwrite.collection_id": "APPWRITE_COLLECTION_ID",
	"sqlite.path":            "DB_PATH",
	"surreal.url":            "SURREALDB_URL",
	"surreal.namespace":      "SURREALDB_NAMESPACE",
	"surreal.database":       "SURREALDB_DATABASE",
	"surreal.user":           "SURREALDB_USER",
	"surreal.pass":           "SURREALDB_PASS",
	"search.debounce":        "SEARCH_DEBOUNCE",
	"trending.cache_ttl":     "TRENDING_CACHE_TTL",
	"log.level":              "LOG_LEVEL",
	"log.file":               "LOG_FILE",
	"metrics.enabled":        "METRICS_ENABLED",
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	cfg.Counters.Backend = strings.ToLower(strings.TrimSpace(cfg.Counters.Backend))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and the settings the chosen counter backend
// needs.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		data any
	}{
		{"server", &c.Server},
		{"tmdb", &c.TMDB},
		{"counters", &c.Counters},
		{"search", &c.Search},
		{"log", &c.Log},
	}
	for _, s := range sections {
		v := validate.Struct(s.data)
		if !v.Validate() {
			return fmt.Errorf("invalid %s config: %s", s.name, v.Errors.One())
		}
	}
	if c.Trending.CacheTTL < 0 {
		return errors.New("invalid trending config: cache_ttl must not be negative")
	}

	switch c.Counters.Backend {
	case BackendAppwrite:
		a := c.Appwrite
		if a.Endpoint == "" || a.ProjectID == "" || a.DatabaseID == "" || a.CollectionID == "" {
			return errors.New("appwrite backend needs APPWRITE_ENDPOINT, APPWRITE_PROJECT_ID, APPWRITE_DATABASE_ID and APPWRITE_COLLECTION_ID")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return errors.New("sqlite backend needs DB_PATH")
		}
	case BackendSurreal:
		s := c.Surreal
		if s.URL == "" || s.Namespace == "" || s.Database == "" {
			return errors.New("surreal backend needs SURREALDB_URL, SURREALDB_NAMESPACE and SURREALDB_DATABASE")
		}
	}
	return nil
}
