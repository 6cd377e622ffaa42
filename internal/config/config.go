package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServiceName string

const (
	UserService        ServiceName = "user-service"
	TransactionService ServiceName = "transaction-service"
	Gateway            ServiceName = "gateway"
)

type Config struct {
	AppEnv      string      `mapstructure:"APP_ENV"`
	LogLevel    string      `mapstructure:"LOG_LEVEL"`
	ServiceName ServiceName `mapstructure:"SERVICE_NAME"`
	Version     string      `mapstructure:"SERVICE_VERSION"`
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Services    ServicesConfig
	Timeouts    TimeoutConfig
	Breaker     BreakerConfig
	Tracing     TracingConfig
}

type ServerConfig struct {
	Port            string        `mapstructure:"SERVER_PORT"`
	ReadTimeout     time.Duration `mapstructure:"SERVER_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

func (s ServerConfig) Addr() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"DB_DRIVER"`
	Path     string `mapstructure:"DB_PATH"`
	Host     string `mapstructure:"DB_HOST"`
	Port     string `mapstructure:"DB_PORT"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"DB_SSL_MODE"`
}

// DSN returns the data source name for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	}
	return d.Path + "?_foreign_keys=on&_busy_timeout=5000"
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"REDIS_ENABLED"`
	Addr     string        `mapstructure:"REDIS_ADDR"`
	Password string        `mapstructure:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"REDIS_DB"`
	TTL      time.Duration `mapstructure:"REDIS_TTL"`
	// WarmUp is how many users are preloaded into the cache at startup.
	WarmUp int `mapstructure:"REDIS_WARMUP"`
}

type ServicesConfig struct {
	UserServiceURL        string `mapstructure:"USER_SERVICE_URL"`
	TransactionServiceURL string `mapstructure:"TRANSACTION_SERVICE_URL"`
}

type TimeoutConfig struct {
	Validation  time.Duration `mapstructure:"VALIDATION_TIMEOUT"`
	Proxy       time.Duration `mapstructure:"PROXY_TIMEOUT"`
	ReportFetch time.Duration `mapstructure:"REPORT_FETCH_TIMEOUT"`
	Probe       time.Duration `mapstructure:"PROBE_TIMEOUT"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"BREAKER_MAX_FAILURES"`
	CoolDown    time.Duration `mapstructure:"BREAKER_COOL_DOWN"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

var servicePorts = map[ServiceName]string{
	Gateway:            "5000",
	UserService:        "5001",
	TransactionService: "5002",
}

var serviceDatabases = map[ServiceName]string{
	UserService:        "users.db",
	TransactionService: "transactions.db",
}

func setDefaults(v *viper.Viper, service ServiceName) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVICE_NAME", string(service))
	v.SetDefault("SERVICE_VERSION", "1.0.0")

	v.SetDefault("SERVER_PORT", servicePorts[service])
	v.SetDefault("SERVER_TIMEOUT", 15*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("DB_DRIVER", "sqlite3")
	v.SetDefault("DB_PATH", serviceDatabases[service])
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "cardledger")
	v.SetDefault("DB_SSL_MODE", "disable")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", 5*time.Minute)
	v.SetDefault("REDIS_WARMUP", 100)

	v.SetDefault("USER_SERVICE_URL", "http://localhost:5001")
	v.SetDefault("TRANSACTION_SERVICE_URL", "http://localhost:5002")

	v.SetDefault("VALIDATION_TIMEOUT", 3*time.Second)
	v.SetDefault("PROXY_TIMEOUT", 5*time.Second)
	v.SetDefault("REPORT_FETCH_TIMEOUT", 5*time.Second)
	v.SetDefault("PROBE_TIMEOUT", 2*time.Second)

	v.SetDefault("BREAKER_MAX_FAILURES", 5)
	v.SetDefault("BREAKER_COOL_DOWN", 30*time.Second)
}

// Load reads the configuration for one service from the environment. A .env
// file in the working directory is applied when present.
func Load(service ServiceName) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, service)
	v.AutomaticEnv()

	cfg := &Config{
		AppEnv:      v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		ServiceName: ServiceName(v.GetString("SERVICE_NAME")),
		Version:     v.GetString("SERVICE_VERSION"),
	}

	cfg.Server.Port = v.GetString("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_TIMEOUT")
	cfg.Server.ShutdownTimeout = v.GetDuration("SHUTDOWN_TIMEOUT")

	cfg.Database.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	cfg.Database.Path = v.GetString("DB_PATH")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetString("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Name = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSL_MODE")

	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.TTL = v.GetDuration("REDIS_TTL")
	cfg.Redis.WarmUp = v.GetInt("REDIS_WARMUP")

	cfg.Services.UserServiceURL = strings.TrimRight(v.GetString("USER_SERVICE_URL"), "/")
	cfg.Services.TransactionServiceURL = strings.TrimRight(v.GetString("TRANSACTION_SERVICE_URL"), "/")

	cfg.Timeouts.Validation = v.GetDuration("VALIDATION_TIMEOUT")
	cfg.Timeouts.Proxy = v.GetDuration("PROXY_TIMEOUT")
	cfg.Timeouts.ReportFetch = v.GetDuration("REPORT_FETCH_TIMEOUT")
	cfg.Timeouts.Probe = v.GetDuration("PROBE_TIMEOUT")

	cfg.Breaker.MaxFailures = v.GetUint32("BREAKER_MAX_FAILURES")
	cfg.Breaker.CoolDown = v.GetDuration("BREAKER_COOL_DOWN")

	cfg.Tracing.Endpoint = v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must be set")
	}
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" {
		c.Database.Driver = "sqlite3"
	}
	for name, d := range map[string]time.Duration{
		"VALIDATION_TIMEOUT":   c.Timeouts.Validation,
		"PROXY_TIMEOUT":        c.Timeouts.Proxy,
		"REPORT_FETCH_TIMEOUT": c.Timeouts.ReportFetch,
		"PROBE_TIMEOUT":        c.Timeouts.Probe,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Breaker.MaxFailures == 0 {
		return errors.New("BREAKER_MAX_FAILURES must be at least 1")
	}
	return nil
}
