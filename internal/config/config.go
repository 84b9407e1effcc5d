package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	VHost      string `mapstructure:"vhost"`
	EventQueue string `mapstructure:"event_queue"`
}

// DispatcherConfig tunes the delivery engine. The batch sizes and intervals
// bound the work done per scheduler tick; overlapping ticks are safe because
// rows are claimed before any network call.
type DispatcherConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts"`
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	MaxResponseBodyBytes int           `mapstructure:"max_response_body_bytes"`
	PendingBatchSize     int           `mapstructure:"pending_batch_size"`
	RetryBatchSize       int           `mapstructure:"retry_batch_size"`
	PendingInterval      time.Duration `mapstructure:"pending_interval"`
	RetryInterval        time.Duration `mapstructure:"retry_interval"`
	StuckInterval        time.Duration `mapstructure:"stuck_interval"`
	StuckTimeout         time.Duration `mapstructure:"stuck_timeout"`
}

// Load reads config.yaml (optional) and environment variables, e.g.
// DATABASE_HOST overrides database.host.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/webhook-delivery")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "webhook")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "webhook_delivery")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", "5672")
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.vhost", "/")
	v.SetDefault("rabbitmq.event_queue", "domain-events")

	v.SetDefault("dispatcher.max_attempts", 10)
	v.SetDefault("dispatcher.http_timeout", 10*time.Second)
	v.SetDefault("dispatcher.max_response_body_bytes", 2048)
	v.SetDefault("dispatcher.pending_batch_size", 100)
	v.SetDefault("dispatcher.retry_batch_size", 100)
	v.SetDefault("dispatcher.pending_interval", 15*time.Second)
	v.SetDefault("dispatcher.retry_interval", 30*time.Second)
	v.SetDefault("dispatcher.stuck_interval", time.Minute)
	v.SetDefault("dispatcher.stuck_timeout", 5*time.Minute)
}

// ConnectionString returns a DSN string for GORM.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrateURL returns the postgres URL used by golang-migrate.
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, c.VHost)
}
