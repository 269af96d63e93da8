package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PROPERTY"

// Storage drivers accepted by storage.driver.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Storage StorageConfig `mapstructure:"storage"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Cache   CacheConfig   `mapstructure:"cache"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	APIPrefix       string        `mapstructure:"api_prefix"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type SeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// CacheConfig enables a redis read-through cache in front of the mongo store.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TracingConfig points the OTLP/gRPC exporter at a collector. An empty
// endpoint disables tracing.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "30s")
	v.SetDefault("http.api_prefix", "/api")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("storage.driver", DriverMemory)

	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.file", "")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "properties")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "property_service_db")
	v.SetDefault("mongo.collection", "properties")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "properties")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", "property-service")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the
// working directory is loaded first when present. With an empty path,
// ./config.yaml is used if it exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("http.port", envPrefix+"_HTTP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("config: bind PORT: %w", err)
	}
	if err := v.BindEnv("tracing.otlp_endpoint", envPrefix+"_TRACING_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); err != nil {
		return nil, fmt.Errorf("config: bind OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverMongo:
	default:
		return fmt.Errorf("config: unknown storage.driver %q (want %s, %s or %s)", c.Storage.Driver, DriverMemory, DriverRedis, DriverMongo)
	}
	if c.Storage.Driver == DriverRedis && c.Redis.Address == "" {
		return errors.New("config: redis.address is required for the redis driver")
	}
	if c.Storage.Driver == DriverMongo && c.Mongo.URI == "" {
		return errors.New("config: mongo.uri is required for the mongo driver")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("config: http.shutdown_timeout must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}
