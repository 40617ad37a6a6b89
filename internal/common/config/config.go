// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	NLU      NLUConfig      `mapstructure:"nlu"`
	Dialogue DialogueConfig `mapstructure:"dialogue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address for the HTTP transport.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CatalogConfig selects and tunes the product catalog backend.
type CatalogConfig struct {
	// Backend is "postgres" or "elasticsearch".
	Backend string `mapstructure:"backend"`
	// Index is the products index name when Backend is elasticsearch.
	Index string `mapstructure:"index"`
}

// NLUConfig holds model-server and extraction settings.
type NLUConfig struct {
	ModelServer ModelServerConfig `mapstructure:"model_server"`
	// RuleFallback enables the deterministic keyword scorer when the model
	// backend is unavailable.
	RuleFallback bool `mapstructure:"rule_fallback"`
	// Categories maps raw category terms to their canonical singular form.
	// Empty means the built-in laptop-store table.
	Categories map[string]string `mapstructure:"categories"`
	// Brands is the recognized brand list. Empty means the built-in list.
	Brands []string `mapstructure:"brands"`
}

type ModelServerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// DialogueConfig carries the tunable policy knobs of the intent router.
// Threshold values are deliberately configuration, not constants.
type DialogueConfig struct {
	// ConfidenceFloor: below this for every label the router asks for a
	// rephrase instead of acting.
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	// SwitchThreshold: minimum confidence for a differing top label to
	// abandon the active task.
	SwitchThreshold float64 `mapstructure:"switch_threshold"`
	// IdleExpiry: conversations with no turn inside this window are evicted.
	IdleExpiry time.Duration `mapstructure:"idle_expiry"`
	// MaxResults caps products returned per search turn.
	MaxResults int `mapstructure:"max_results"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func validateConfig(cfg *Config) error {
	if cfg.Dialogue.ConfidenceFloor < 0 || cfg.Dialogue.ConfidenceFloor > 1 {
		return fmt.Errorf("dialogue.confidence_floor must be in [0,1], got %f", cfg.Dialogue.ConfidenceFloor)
	}
	if cfg.Dialogue.SwitchThreshold < 0 || cfg.Dialogue.SwitchThreshold > 1 {
		return fmt.Errorf("dialogue.switch_threshold must be in [0,1], got %f", cfg.Dialogue.SwitchThreshold)
	}
	switch cfg.Catalog.Backend {
	case "postgres", "elasticsearch":
	default:
		return fmt.Errorf("catalog.backend must be postgres or elasticsearch, got %q", cfg.Catalog.Backend)
	}
	if cfg.Catalog.Backend == "elasticsearch" && cfg.Catalog.Index == "" {
		return fmt.Errorf("catalog.index is required when catalog.backend is elasticsearch")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shop-assistant"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Catalog.Backend == "" {
		cfg.Catalog.Backend = "postgres"
	}
	if cfg.NLU.ModelServer.Timeout == 0 {
		cfg.NLU.ModelServer.Timeout = 10 * time.Second
	}
	if cfg.NLU.ModelServer.MaxRetries == 0 {
		cfg.NLU.ModelServer.MaxRetries = 2
	}
	if cfg.Dialogue.ConfidenceFloor == 0 {
		cfg.Dialogue.ConfidenceFloor = 0.30
	}
	if cfg.Dialogue.SwitchThreshold == 0 {
		cfg.Dialogue.SwitchThreshold = 0.60
	}
	if cfg.Dialogue.IdleExpiry == 0 {
		cfg.Dialogue.IdleExpiry = 30 * time.Minute
	}
	if cfg.Dialogue.MaxResults == 0 {
		cfg.Dialogue.MaxResults = 20
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
