// Package config loads server configuration from defaults, an optional YAML
// file and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the *_BACKEND settings.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Server   Server         `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Pass     PassConfig     `yaml:"pass"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"            envconfig:"MEMBERPASS_ADDR"`
	Environment     string        `yaml:"environment"     envconfig:"ENVIRONMENT"`
	LogLevel        string        `yaml:"logLevel"        envconfig:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"  envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"    envconfig:"MAX_BODY_BYTES"`
	TrustedProxies  string        `yaml:"trustedProxies"  envconfig:"TRUSTED_PROXIES"`
	RateLimitRPS    float64       `yaml:"rateLimitRps"    envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rateLimitBurst"  envconfig:"RATE_LIMIT_BURST"`
}

// StorageConfig selects the backend for each collaborator.
type StorageConfig struct {
	StoreBackend  string `yaml:"storeBackend"  envconfig:"STORE_BACKEND"`
	LedgerBackend string `yaml:"ledgerBackend" envconfig:"LEDGER_BACKEND"`
	AssetBackend  string `yaml:"assetBackend"  envconfig:"ASSET_BACKEND"`
	DataDir       string `yaml:"dataDir"       envconfig:"DATA_DIR"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"             envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"maxOpenConns"    envconfig:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns"    envconfig:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" envconfig:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool          `yaml:"migrateOnStart"  envconfig:"DATABASE_MIGRATE"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"          envconfig:"REDIS_URL"`
	KeyPrefix    string        `yaml:"keyPrefix"    envconfig:"REDIS_KEY_PREFIX"`
	PoolSize     int           `yaml:"poolSize"     envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `yaml:"minIdleConns" envconfig:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dialTimeout"  envconfig:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"readTimeout"  envconfig:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"REDIS_WRITE_TIMEOUT"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is set.
type KafkaConfig struct {
	Brokers         string        `yaml:"brokers"         envconfig:"KAFKA_BROKERS"`
	Acks            string        `yaml:"acks"            envconfig:"KAFKA_ACKS"`
	Retries         int           `yaml:"retries"         envconfig:"KAFKA_RETRIES"`
	DeliveryTimeout time.Duration `yaml:"deliveryTimeout" envconfig:"KAFKA_DELIVERY_TIMEOUT"`
	AuditTopic      string        `yaml:"auditTopic"      envconfig:"KAFKA_AUDIT_TOPIC"`

	// OutboxPollInterval applies when a database is configured: audit events
	// go through the audit_outbox table instead of straight to the broker.
	OutboxPollInterval time.Duration `yaml:"outboxPollInterval" envconfig:"KAFKA_OUTBOX_POLL_INTERVAL"`
}

type AuthConfig struct {
	AdminAPIToken string        `yaml:"adminApiToken" envconfig:"ADMIN_API_TOKEN"`
	TokenAudience string        `yaml:"tokenAudience" envconfig:"TOKEN_AUDIENCE"`
	TokenMaxTTL   time.Duration `yaml:"tokenMaxTtl"   envconfig:"TOKEN_MAX_TTL"`
}

type PassConfig struct {
	PlatformName       string        `yaml:"platformName"       envconfig:"PLATFORM_NAME"`
	Treasury           string        `yaml:"treasury"           envconfig:"TREASURY"`
	MaxEditionAttempts int           `yaml:"maxEditionAttempts" envconfig:"MAX_EDITION_ATTEMPTS"`
	CredentialCacheTTL time.Duration `yaml:"credentialCacheTtl" envconfig:"CREDENTIAL_CACHE_TTL"`
	AuditBuffer        int           `yaml:"auditBuffer"        envconfig:"AUDIT_BUFFER"`
}

// Default returns the development configuration: everything in memory.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     "development",
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  15 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Storage: StorageConfig{
			StoreBackend:  BackendMemory,
			LedgerBackend: BackendMemory,
			AssetBackend:  BackendMemory,
			DataDir:       "./data",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{
			KeyPrefix:    "memberpass:",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Acks:               "all",
			Retries:            3,
			DeliveryTimeout:    30 * time.Second,
			AuditTopic:         "memberpass.audit",
			OutboxPollInterval: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			TokenAudience: "memberpass",
			TokenMaxTTL:   15 * time.Minute,
		},
		Pass: PassConfig{
			PlatformName:       "Movie",
			MaxEditionAttempts: 32,
			CredentialCacheTTL: 30 * time.Second,
			AuditBuffer:        1024,
		},
	}
}

// Load reads envFile (if present) into the process environment, overlays
// configFile on the defaults, then applies environment variables.
// Empty paths are skipped.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := Default()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects backend selections whose dependencies are not configured.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.StoreBackend {
	case BackendMemory, BackendBadger:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Storage.StoreBackend))
	}

	switch c.Storage.LedgerBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.Storage.LedgerBackend))
	}

	switch c.Storage.AssetBackend {
	case BackendMemory, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown ASSET_BACKEND %q", c.Storage.AssetBackend))
	}

	if c.Pass.MaxEditionAttempts <= 0 {
		errs = append(errs, errors.New("MAX_EDITION_ATTEMPTS must be positive"))
	}
	if c.Auth.TokenMaxTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_MAX_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// NeedsDatabase reports whether any backend uses PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Storage.StoreBackend == BackendPostgres || c.Storage.LedgerBackend == BackendPostgres
}

// IsDevelopment reports whether the server runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development") || c.Server.Environment == ""
}
