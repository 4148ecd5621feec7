// Package config loads the repository configuration from metabridge.yaml and
// METABRIDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/metabridge/internal/bridge/instances"
)

// EnvPrefix prefixes every environment override, e.g. METABRIDGE_STORE_DSN
const EnvPrefix = "METABRIDGE"

// DefaultFile is the config file looked up in the working directory
const DefaultFile = "metabridge.yaml"

// Config is the complete repository configuration
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Registry   RegistryConfig   `mapstructure:"registry" yaml:"registry"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// RepositoryConfig identifies the metadata collection
type RepositoryConfig struct {
	MetadataCollectionID   string `mapstructure:"metadata_collection_id" yaml:"metadata_collection_id"`
	MetadataCollectionName string `mapstructure:"metadata_collection_name" yaml:"metadata_collection_name"`
	DeleteMode             string `mapstructure:"delete_mode" yaml:"delete_mode"`
}

// StoreConfig selects the native store
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// RegistryConfig selects the shared type registry. An empty address keeps the
// registry in memory.
type RegistryConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	Prefix        string `mapstructure:"prefix" yaml:"prefix"`
}

// ServerConfig is where the api listens. RateLimit caps requests per caller per
// minute; zero turns the limit off.
type ServerConfig struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// AuthConfig holds the bearer token secret and the basic auth users. With
// neither, callers name themselves with the X-User-Id header.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
	// Users maps user ids to bcrypt password hashes. Viper lowercases the keys.
	Users map[string]string `mapstructure:"users" yaml:"users,omitempty"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Drivers lists the accepted store drivers
var Drivers = []string{"memory", "sqlite3", "pgx", "postgres"}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Repository: RepositoryConfig{MetadataCollectionName: "metabridge", DeleteMode: "soft"},
		Store:      StoreConfig{Driver: "memory"},
		Registry:   RegistryConfig{Prefix: "metabridge:types:"},
		Server:     ServerConfig{Host: "localhost", Port: 8080},
		Log:        LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("repository.metadata_collection_id", d.Repository.MetadataCollectionID)
	v.SetDefault("repository.metadata_collection_name", d.Repository.MetadataCollectionName)
	v.SetDefault("repository.delete_mode", d.Repository.DeleteMode)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("registry.redis_addr", d.Registry.RedisAddr)
	v.SetDefault("registry.redis_password", d.Registry.RedisPassword)
	v.SetDefault("registry.redis_db", d.Registry.RedisDB)
	v.SetDefault("registry.prefix", d.Registry.Prefix)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Load reads the configuration. An empty path looks for metabridge.yaml in the
// working directory and falls back to defaults when it is absent; an explicit path
// must exist. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default
func (c *Config) Validate() error {
	if _, err := instances.ParseDeleteMode(c.Repository.DeleteMode); err != nil {
		return fmt.Errorf("repository.delete_mode: %w", err)
	}

	known := false
	for _, d := range Drivers {
		if c.Store.Driver == d {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("store.driver must be one of %s, got: %q", strings.Join(Drivers, ", "), c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got: %d", c.Server.RateLimit)
	}
	if c.Registry.RedisDB < 0 {
		return fmt.Errorf("registry.redis_db must not be negative, got: %d", c.Registry.RedisDB)
	}
	return nil
}

// DeleteMode returns the parsed delete mode. Validate has already accepted it.
func (c *Config) DeleteMode() instances.DeleteMode {
	mode, _ := instances.ParseDeleteMode(c.Repository.DeleteMode)
	return mode
}

// Addr returns the host:port the server listens on
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Write saves the configuration as YAML, refusing to overwrite an existing file
// unless force is set
func Write(path string, cfg *Config, force bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
