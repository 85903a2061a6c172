// Package config provides configuration management for the MIS API.
//
// Configuration is loaded from:
// 1. .env file (optional, never overrides variables already set)
// 2. config.yaml file (optional)
// 3. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 4. Default values
//
// The legacy variables PORT, JWT_SECRET and JWT_EXPIRES_IN are still honoured.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Security SecurityConfig `mapstructure:"security"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	OpenAPI  OpenAPIConfig  `mapstructure:"openapi"`
	KPI      KPIConfig      `mapstructure:"kpi"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pool is shared by the repository layer, River and the migrator.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers      int           `mapstructure:"max_workers"`
	PMSweepInterval time.Duration `mapstructure:"pm_sweep_interval"`
	RunSweepOnStart bool          `mapstructure:"run_sweep_on_start"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWTSecret           string   `mapstructure:"jwt_secret"`
	JWTVerificationKeys []string `mapstructure:"jwt_verification_keys"`
	JWTIssuer           string   `mapstructure:"jwt_issuer"`
	JWTAudience         string   `mapstructure:"jwt_audience"`
	// JWTExpiresIn accepts Go durations ("12h"), day counts ("7d") or bare seconds ("3600").
	JWTExpiresIn string `mapstructure:"jwt_expires_in"`

	BcryptCost        int    `mapstructure:"bcrypt_cost"`
	MinPasswordLength int    `mapstructure:"min_password_length"`
	OpenRegistration  string `mapstructure:"open_registration_role"`
}

// TokenTTL parses JWTExpiresIn.
func (s SecurityConfig) TokenTTL() (time.Duration, error) {
	raw := strings.TrimSpace(s.JWTExpiresIn)
	if raw == "" {
		return 0, fmt.Errorf("security.jwt_expires_in must not be empty")
	}
	var (
		ttl time.Duration
		err error
	)
	switch {
	case strings.HasSuffix(raw, "d"):
		var days int
		days, err = strconv.Atoi(strings.TrimSuffix(raw, "d"))
		ttl = time.Duration(days) * 24 * time.Hour
	case isDigits(raw):
		var secs int
		secs, err = strconv.Atoi(raw)
		ttl = time.Duration(secs) * time.Second
	default:
		ttl, err = time.ParseDuration(raw)
	}
	if err != nil {
		return 0, fmt.Errorf("security.jwt_expires_in %q: %w", raw, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("security.jwt_expires_in must be positive")
	}
	return ttl, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	IngestPoolSize  int `mapstructure:"ingest_pool_size"`
}

// RedisConfig configures the token revocation store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MQTTConfig configures the utility meter subscriber.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// AlertTopic prefixes published maintenance notices.
	AlertTopic string `mapstructure:"alert_topic"`
}

// OpenAPIConfig toggles contract validation of incoming requests.
type OpenAPIConfig struct {
	ValidateRequests bool `mapstructure:"validate_requests"`
}

// KPIConfig holds the OEE factors that are not measured by the system.
type KPIConfig struct {
	PerformanceFactor float64 `mapstructure:"performance_factor"`
	QualityFactor     float64 `mapstructure:"quality_factor"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mis")

	// Maps nested config: database.max_conns → DATABASE_MAX_CONNS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv keeps deployments written against the old server working.
// The first name listed wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":             {"SERVER_PORT", "PORT"},
		"database.url":            {"DATABASE_URL"},
		"security.jwt_secret":     {"SECURITY_JWT_SECRET", "JWT_SECRET"},
		"security.jwt_expires_in": {"SECURITY_JWT_EXPIRES_IN", "JWT_EXPIRES_IN"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if _, err := c.Security.TokenTTL(); err != nil {
		return err
	}
	if c.Security.MinPasswordLength < 1 {
		return fmt.Errorf("security.min_password_length must be at least 1")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// ensureSecrets generates a signing secret when none is configured.
// Tokens signed with a generated secret do not survive a restart.
func (c *Config) ensureSecrets() error {
	if c.Security.JWTSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate jwt secret: %w", err)
		}
		c.Security.JWTSecret = secret
		logBootstrapWarn(
			"auto-generated jwt_secret; set JWT_SECRET env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.allow_credentials", true)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mis")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "mis")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", true)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 5)
	v.SetDefault("river.pm_sweep_interval", "1h")
	v.SetDefault("river.run_sweep_on_start", true)

	// Security
	v.SetDefault("security.jwt_verification_keys", []string{})
	v.SetDefault("security.jwt_issuer", "mis-server")
	v.SetDefault("security.jwt_audience", "mis-client")
	v.SetDefault("security.jwt_expires_in", "7d")
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.min_password_length", 6)
	v.SetDefault("security.open_registration_role", "operator")

	// Worker pools
	v.SetDefault("worker.general_pool_size", 50)
	v.SetDefault("worker.ingest_pool_size", 20)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// MQTT
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.client_id", "mis-utility-ingest")
	v.SetDefault("mqtt.topic", "mis/utilities/+")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.alert_topic", "mis/alerts")

	v.SetDefault("openapi.validate_requests", true)

	v.SetDefault("kpi.performance_factor", 1.0)
	v.SetDefault("kpi.quality_factor", 1.0)
}
