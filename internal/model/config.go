package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
)

// Identity directories.
const (
	DirectoryCognito = "cognito"
	DirectoryStatic  = "static"
)

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	// Backend is "dynamodb" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Table is the DynamoDB table name.
	Table string `mapstructure:"table" yaml:"table"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the DynamoDB endpoint (e.g. DynamoDB Local).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// BatchConcurrency caps how many write batches run at once.
	BatchConcurrency int `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
}

// StaticUser is a directory entry for the static identity directory.
type StaticUser struct {
	Subject  string `mapstructure:"subject" yaml:"subject"`
	Username string `mapstructure:"username" yaml:"username"`
	Email    string `mapstructure:"email" yaml:"email"`
}

// IdentityConfig configures user lookup, sign-in and scoped credentials.
type IdentityConfig struct {
	// Directory is "cognito" or "static".
	Directory      string       `mapstructure:"directory" yaml:"directory"`
	Region         string       `mapstructure:"region" yaml:"region"`
	UserPoolID     string       `mapstructure:"user_pool_id" yaml:"user_pool_id"`
	ClientID       string       `mapstructure:"client_id" yaml:"client_id"`
	IdentityPoolID string       `mapstructure:"identity_pool_id" yaml:"identity_pool_id"`
	Users          []StaticUser `mapstructure:"users" yaml:"users"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	BodyLimit int64  `mapstructure:"body_limit" yaml:"body_limit"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWKSURL string `mapstructure:"jwks_url" yaml:"jwks_url"`

	// InsecureSkipVerify accepts unsigned or unverifiable tokens. Local use only.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/shoplist/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultSQLitePath returns the default local database path.
func DefaultSQLitePath() string {
	return filepath.Join(configDir(), "shoplist.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shoplist")
}

var defaults = map[string]any{
	"store.backend":           BackendDynamoDB,
	"store.table":             "AppData",
	"store.sqlite_path":       DefaultSQLitePath(),
	"store.region":            "us-east-1",
	"store.batch_concurrency": 4,
	"identity.directory":      DirectoryCognito,
	"server.addr":             ":8080",
	"server.body_limit":       1 << 20,
	"log.level":               "info",
	"log.format":              "json",
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Store: StoreConfig{
			Backend:          BackendDynamoDB,
			Table:            "AppData",
			SQLitePath:       DefaultSQLitePath(),
			Region:           "us-east-1",
			BatchConcurrency: 4,
		},
		Identity: IdentityConfig{Directory: DirectoryCognito},
		Server:   ServerConfig{Addr: ":8080", BodyLimit: 1 << 20},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed SHOPLIST_ override file values. If the
// file does not exist, defaults and the environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SHOPLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults also register every key so AutomaticEnv can find it.
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for _, key := range []string{
		"store.endpoint", "identity.region", "identity.user_pool_id", "identity.client_id",
		"identity.identity_pool_id", "auth.jwks_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("auth.insecure_skip_verify", false)

	if err := v.ReadInConfig(); err != nil {
		_, missing := err.(*os.PathError)
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			missing = true
		}
		if !missing {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Identity.Region == "" {
		cfg.Identity.Region = cfg.Store.Region
	}
	if cfg.Store.BatchConcurrency < 1 {
		cfg.Store.BatchConcurrency = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case BackendDynamoDB, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Identity.Directory {
	case DirectoryCognito, DirectoryStatic:
	default:
		return fmt.Errorf("unknown identity directory %q", c.Identity.Directory)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("store", cfg.Store)
	v.Set("identity", cfg.Identity)
	v.Set("server", cfg.Server)
	v.Set("auth", cfg.Auth)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
