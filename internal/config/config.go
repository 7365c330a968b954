package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/export"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/annotext/")
	viper.AddConfigPath("$HOME/.annotext/")

	// Environment variable overrides, e.g. ANNOTEXT_SERVER_PORT
	viper.SetEnvPrefix("ANNOTEXT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvKeys()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	clearOverriddenLists(config)
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers the scalar keys that may be set from the
// environment without appearing in the config file
func bindEnvKeys() {
	keys := []string{
		"server.port",
		"annotation.link_duplicates",
		"annotation.min_selection_length",
		"privacy.enabled",
		"storage.driver",
		"storage.postgres.database_url",
		"cache.enabled",
		"cache.redis_url",
		"cache.key_prefix",
		"logging.level",
		"logging.format",
		"rate_limit.enabled",
		"rate_limit.requests_per_second",
		"rate_limit.burst",
		"export.batch_size",
		"export.format",
	}
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
}

// clearOverriddenLists drops default lists and maps the file sets. Decoding
// onto a longer default slice would keep its tail and maps would merge.
func clearOverriddenLists(config *Config) {
	if viper.IsSet("annotation.classes") {
		config.Annotation.Classes = nil
	}
	if viper.IsSet("privacy.classes") {
		config.Privacy.Classes = nil
	}
	if viper.IsSet("privacy.detectors") {
		config.Privacy.Detectors = nil
	}
	if viper.IsSet("websocket.allowed_origins") {
		config.WebSocket.AllowedOrigins = nil
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Annotation.Policy.MinSelectionLength < 0 {
		return fmt.Errorf("invalid min_selection_length: %d", config.Annotation.Policy.MinSelectionLength)
	}

	if _, err := annotation.NewCatalog(config.Annotation.Classes...); err != nil {
		return fmt.Errorf("invalid annotation classes: %w", err)
	}

	for detector, classID := range config.Privacy.Classes {
		if !hasClass(config.Annotation.Classes, classID) {
			return fmt.Errorf("privacy detector %s maps to unknown class %s", detector, classID)
		}
	}

	if config.Storage.Driver != "memory" && config.Storage.Driver != "postgres" {
		return fmt.Errorf("invalid storage driver: %s (must be memory or postgres)", config.Storage.Driver)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache is enabled but redis_url is empty")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: %g/s burst %d", config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}

	if _, ok := export.ParseFileFormat(config.Export.Format); config.Export.Format != "" && !ok {
		return fmt.Errorf("invalid export format: %s (must be jsonl, csv or parquet)", config.Export.Format)
	}

	return nil
}

func hasClass(classes []annotation.Class, id string) bool {
	for _, cls := range classes {
		if cls.ID == id {
			return true
		}
	}
	return false
}

// Watch starts watching the configuration file for changes. Invalid
// reloads are reported to onError and the running config is kept. It
// returns false when no config file was loaded.
func Watch(callback func(*Config), onError func(error)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		clearOverriddenLists(newConfig)
		if err := viper.Unmarshal(newConfig); err != nil {
			onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			return
		}

		callback(newConfig)
	})
	viper.WatchConfig()
	return true
}
