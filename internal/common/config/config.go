package config

import (
	"os"
	"regexp"
	"time"

	"github.com/clipcast/clipcast/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// GatewayConfig represents the notify-gateway configuration
	GatewayConfig struct {
		Port     int            `yaml:"port"`
		Logger   LoggerConfig   `yaml:"logger"`
		Metrics  MetricsConfig  `yaml:"metrics"`
		Tracing  TracingConfig  `yaml:"tracing"`
		JWT      JWTConfig      `yaml:"jwt"`
		Presence PresenceConfig `yaml:"presence"`
		Relay    RelayConfig    `yaml:"relay"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// MetricsConfig represents the Prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TracingConfig represents the OpenTelemetry tracing configuration
	TracingConfig struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		Endpoint    string  `yaml:"endpoint"` // e.g. localhost:4317 or http://localhost:4318
		Protocol    string  `yaml:"protocol"` // grpc or http
		Insecure    bool    `yaml:"insecure"`
		SamplerRate float64 `yaml:"sampler_rate"` // 0.0~1.0
		Environment string  `yaml:"environment"`  // env tag: dev/staging/prod
	}

	// JWTConfig represents the token verifier configuration
	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// PresenceConfig represents the presence registry configuration
	PresenceConfig struct {
		Type  string      `yaml:"type"` // "memory" or "redis"
		Redis RedisConfig `yaml:"redis"`
	}

	// RelayConfig represents the cross-process relay configuration
	RelayConfig struct {
		Type    string      `yaml:"type"`    // "local" or "redis"
		Channel string      `yaml:"channel"` // pub/sub channel shared by the fleet
		Redis   RedisConfig `yaml:"redis"`
	}

	// RedisConfig represents a Redis connection configuration
	RedisConfig struct {
		ClusterType string        `yaml:"cluster_type"` // single, cluster, sentinel
		Addr        string        `yaml:"addr"`         // one or more addresses, ";" or "," separated
		MasterName  string        `yaml:"master_name"`  // sentinel master name
		Username    string        `yaml:"username"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		Timeout     time.Duration `yaml:"timeout"` // per-operation deadline
	}
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*GatewayConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	setDefaults(&cfg)
	return &cfg, cfgPath, nil
}

// setDefaults fills in values the YAML left unset
func setDefaults(cfg *GatewayConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Presence.Type == "" {
		cfg.Presence.Type = "redis"
	}
	if cfg.Presence.Redis.Timeout <= 0 {
		cfg.Presence.Redis.Timeout = 3 * time.Second
	}
	if cfg.Relay.Type == "" {
		cfg.Relay.Type = "redis"
	}
	if cfg.Relay.Channel == "" {
		cfg.Relay.Channel = "clipcast:notifications"
	}
	if cfg.Relay.Redis.Timeout <= 0 {
		cfg.Relay.Redis.Timeout = 3 * time.Second
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
