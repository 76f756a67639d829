// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "omnibridge"
	DefaultPGSSLMode      = "disable"
	DefaultRedisAddr      = "127.0.0.1:6379"
	DefaultGatewayBaseURL = "https://api.z-api.io"
	DefaultStorageBucket  = "omnichannel-media"
	DefaultRegistryPath   = "data/customers.db"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Storage  StorageConfig  `toml:"storage"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Desk     DeskConfig     `toml:"desk"`
	Registry RegistryConfig `toml:"registry"`
	Bridge   BridgeConfig   `toml:"bridge"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RedisConfig holds Redis connection parameters for the session cache.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StorageConfig holds S3-compatible object storage parameters (e.g. Cloudflare R2).
type StorageConfig struct {
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	PublicBaseURL   string `toml:"public_base_url"`
}

// GatewayConfig holds the messaging gateway base URL and account token.
type GatewayConfig struct {
	BaseURL        string `toml:"base_url"`
	ClientToken    string `toml:"client_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DeskConfig holds the agent desk base URL and API token.
type DeskConfig struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// RegistryConfig holds the customer registry SQLite database path.
type RegistryConfig struct {
	Path string `toml:"path"`
}

// BridgeConfig holds pipeline tuning: TTLs, worker count, and queue depth.
type BridgeConfig struct {
	ConversationTTLDays   int `toml:"conversation_ttl_days"`
	SessionCacheTTLDays   int `toml:"session_cache_ttl_days"`
	IntakeSessionTTLHours int `toml:"intake_session_ttl_hours"`
	Workers               int `toml:"workers"`
	QueueSize             int `toml:"queue_size"`
}

// Load reads and parses the TOML config file at path and applies defaults for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Storage: StorageConfig{
			Bucket: DefaultStorageBucket,
		},
		Gateway: GatewayConfig{
			BaseURL:        DefaultGatewayBaseURL,
			TimeoutSeconds: 20,
		},
		Desk: DeskConfig{
			TimeoutSeconds: 15,
		},
		Registry: RegistryConfig{
			Path: DefaultRegistryPath,
		},
		Bridge: BridgeConfig{
			ConversationTTLDays:   30,
			SessionCacheTTLDays:   7,
			IntakeSessionTTLHours: 2,
			Workers:               4,
			QueueSize:             256,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	cfg.Gateway.BaseURL = strings.TrimRight(cfg.Gateway.BaseURL, "/")
	cfg.Desk.BaseURL = strings.TrimRight(cfg.Desk.BaseURL, "/")
	cfg.Storage.PublicBaseURL = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")

	return cfg, nil
}
