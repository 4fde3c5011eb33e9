package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Dispatcher    DispatcherConfig    `mapstructure:"dispatcher"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CallbackRateLimit int           `mapstructure:"callback_rate_limit"`
	FrontendResultURL string        `mapstructure:"frontend_result_url"`
	CORS              CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type GatewayConfig struct {
	Provider        string        `mapstructure:"provider"`
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout"`
	UseMock         bool          `mapstructure:"use_mock"`
	MockDeclineRate float64       `mapstructure:"mock_decline_rate"`
	MockTimeoutRate float64       `mapstructure:"mock_timeout_rate"`
	PayPal          PayPalConfig  `mapstructure:"paypal"`
}

type PayPalConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	ClientID  string `mapstructure:"client_id"`
	Secret    string `mapstructure:"secret"`
	ReturnURL string `mapstructure:"return_url"`
}

type DispatcherConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	BatchSize          int           `mapstructure:"batch_size"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	ReconcileInterval  time.Duration `mapstructure:"reconcile_interval"`
	ReconcileAfter     time.Duration `mapstructure:"reconcile_after"`
	ReconcileBatchSize int           `mapstructure:"reconcile_batch_size"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RENTAGO")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rentago-payments")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Server.FrontendResultURL == "" {
		errs = append(errs, fmt.Errorf("server.frontend_result_url is required"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Kafka.Brokers == "" {
		errs = append(errs, fmt.Errorf("kafka.brokers is required"))
	}
	if c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka.topic is required"))
	}
	if c.Gateway.VerifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("gateway.verify_timeout must be positive"))
	}
	if c.Dispatcher.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("dispatcher.poll_interval must be positive"))
	}
	if c.Dispatcher.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("dispatcher.batch_size must be positive"))
	}
	if c.Dispatcher.ReconcileAfter <= 0 {
		errs = append(errs, fmt.Errorf("dispatcher.reconcile_after must be positive"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if !c.Gateway.UseMock && (c.Gateway.PayPal.ClientID == "" || c.Gateway.PayPal.Secret == "") {
			errs = append(errs, fmt.Errorf("gateway.paypal credentials required in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.callback_rate_limit", 120)
	v.SetDefault("server.frontend_result_url", "http://localhost:3000/payment-result")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "payments")
	v.SetDefault("database.database", "payments")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Kafka defaults
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "payment-events")

	// Gateway defaults
	v.SetDefault("gateway.provider", "paypal")
	v.SetDefault("gateway.verify_timeout", "5s")
	v.SetDefault("gateway.use_mock", false)
	v.SetDefault("gateway.mock_decline_rate", 0.0)
	v.SetDefault("gateway.mock_timeout_rate", 0.0)
	v.SetDefault("gateway.paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("gateway.paypal.return_url", "http://localhost:8080/api/v1/payments/confirm")

	// Dispatcher defaults
	v.SetDefault("dispatcher.poll_interval", "2s")
	v.SetDefault("dispatcher.batch_size", 25)
	v.SetDefault("dispatcher.publish_timeout", "10s")
	v.SetDefault("dispatcher.reconcile_interval", "1m")
	v.SetDefault("dispatcher.reconcile_after", "15m")
	v.SetDefault("dispatcher.reconcile_batch_size", 20)
	v.SetDefault("dispatcher.lock_ttl", "30s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "payments-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
