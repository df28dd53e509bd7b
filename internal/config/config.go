package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Progress ProgressConfig `mapstructure:"progress"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	Mode           string   `mapstructure:"mode"` // gin mode: debug, release, test
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// RedisConfig configures the catalog cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // development or production
	File string `mapstructure:"file"` // optional rotated log file
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP/HTTP host:port; stdout exporter when empty
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// ProgressConfig holds the enrollment progress rules.
type ProgressConfig struct {
	// CompletionThreshold is the progress percentage (1..100) at which an
	// enrollment becomes completed.
	CompletionThreshold int `mapstructure:"completion_threshold"`
	// RecentLimit is how many recently touched enrollments the summary returns.
	RecentLimit int `mapstructure:"recent_limit"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Env vars and defaults only
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "course_marketplace")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.catalog_ttl", "5m")
	v.SetDefault("log.mode", "production")
	v.SetDefault("log.file", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "course-marketplace")
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("progress.completion_threshold", 100)
	v.SetDefault("progress.recent_limit", 5)
}

// Validate checks values that have no safe fallback.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must be set")
	}
	if t := c.Progress.CompletionThreshold; t < 1 || t > 100 {
		return fmt.Errorf("progress.completion_threshold must be within 1..100, got %d", t)
	}
	if c.Progress.RecentLimit < 0 {
		return fmt.Errorf("progress.recent_limit must not be negative")
	}
	return nil
}
