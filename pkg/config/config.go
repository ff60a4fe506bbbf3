// Package config loads proxy configuration from environment variables and an
// optional YAML file using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full proxy configuration.
type Config struct {
	// HTTP server
	Port string `mapstructure:"port"`

	// ProxyHostname is the externally visible base URL of this proxy,
	// e.g. "https://proxy.example.com". Asset URLs inside transformed
	// responses are rewritten to point below it.
	ProxyHostname string `mapstructure:"proxy_hostname"`

	// Contentful upstream
	ContentfulSpace       string `mapstructure:"contentful_space"`
	ContentfulToken       string `mapstructure:"contentful_token"`
	ContentfulEnvironment string `mapstructure:"contentful_environment"`

	// ContentfulManagementToken enables the write-side pass-through proxy
	// when set.
	ContentfulManagementToken string `mapstructure:"contentful_management_token"`

	// Vimeo upstream
	VimeoToken string `mapstructure:"vimeo_token"`

	// Redis
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`

	// AWS / storage
	AWSRegion        string `mapstructure:"aws_region"`
	AWSAccessKey     string `mapstructure:"aws_access_key"`
	AWSSecretKey     string `mapstructure:"aws_secret_key"`
	StorageBucket    string `mapstructure:"storage_bucket"`
	StoragePublicURL string `mapstructure:"storage_public_url"`
	FilesTable       string `mapstructure:"files_table"`

	// Cache / timing policy
	ContentCacheTTL time.Duration `mapstructure:"content_cache_ttl"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	FileRetention   time.Duration `mapstructure:"file_retention"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

const envPrefix = "CONTENTFUL_PROXY"

// Load reads configuration from the environment (CONTENTFUL_PROXY_* variables)
// and, when path is non-empty, a YAML file. File values are overridden by the
// environment.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("contentful_environment", "master")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("aws_region", "eu-west-1")
	v.SetDefault("files_table", "contentful_files")
	v.SetDefault("content_cache_ttl", time.Hour)
	v.SetDefault("upstream_timeout", 60*time.Second)
	v.SetDefault("file_retention", 30*24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that the settings without usable defaults are present.
func (c Config) Validate() error {
	if c.ProxyHostname == "" {
		return fmt.Errorf("proxy_hostname is required")
	}
	if c.ContentfulSpace == "" {
		return fmt.Errorf("contentful_space is required")
	}
	if c.ContentfulToken == "" {
		return fmt.Errorf("contentful_token is required")
	}
	if c.ContentCacheTTL <= 0 {
		return fmt.Errorf("content_cache_ttl must be positive")
	}
	return nil
}
