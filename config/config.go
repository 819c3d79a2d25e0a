// Package config loads server configuration from a YAML file and
// TASKNEST_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageType selects the persistence backend for grants and tokens.
type StorageType string

const (
	StorageTypeMongoDB StorageType = "mongodb"
	StorageTypeMemory  StorageType = "memory"
)

// Config holds all configuration for the authorization server.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	LogLevel    string `mapstructure:"log_level"`
	LogPretty   bool   `mapstructure:"log_pretty"`
	IssuerURL   string `mapstructure:"issuer_url"`
	ServiceName string `mapstructure:"service_name"`

	StorageBackend StorageType `mapstructure:"storage_backend"`
	MongoURI       string      `mapstructure:"mongo_uri"`
	MongoDBName    string      `mapstructure:"mongo_db_name"`

	// RedisAddr enables the Redis token cache when non-empty;
	// otherwise an in-process ttlcache is used.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	AuthCodeTTL        time.Duration `mapstructure:"auth_code_ttl"`
	DeviceCodeTTL      time.Duration `mapstructure:"device_code_ttl"`
	DevicePollInterval time.Duration `mapstructure:"device_poll_interval"`

	// RefreshTokenRotation issues a new refresh token on every refresh
	// grant and revokes the whole token family when a rotated-out
	// token is presented again.
	RefreshTokenRotation bool `mapstructure:"refresh_token_rotation"`

	// Token endpoint rate limit, per client ID (or remote address for
	// unauthenticated requests). Zero disables limiting.
	TokenRateLimit float64 `mapstructure:"token_rate_limit"`
	TokenRateBurst int     `mapstructure:"token_rate_burst"`

	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetConfigName("authserver")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/tasknest/")

	viper.SetEnvPrefix("TASKNEST")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("http_addr", "0.0.0.0:8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_pretty", false)
	viper.SetDefault("issuer_url", "http://localhost:8080")
	viper.SetDefault("service_name", "tasknest-auth")
	viper.SetDefault("storage_backend", string(StorageTypeMongoDB))
	viper.SetDefault("mongo_uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo_db_name", "tasknest_auth")
	viper.SetDefault("access_token_ttl", "1h")
	viper.SetDefault("refresh_token_ttl", "720h")
	viper.SetDefault("auth_code_ttl", "10m")
	viper.SetDefault("device_code_ttl", "15m")
	viper.SetDefault("device_poll_interval", "5s")
	viper.SetDefault("refresh_token_rotation", true)
	viper.SetDefault("token_rate_limit", 10.0)
	viper.SetDefault("token_rate_burst", 20)
	viper.SetDefault("cleanup_interval", "10m")

	if errRead := viper.ReadInConfig(); errRead != nil {
		// Absent config file is fine: defaults plus env vars apply.
		if _, ok := errRead.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, errRead
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	config.StorageBackend = StorageType(viper.GetString("storage_backend"))

	return
}
