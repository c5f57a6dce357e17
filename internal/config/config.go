package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfig struct {
	API          *APIConfig          `mapstructure:"api"`
	Gin          *GinConfig          `mapstructure:"gin"`
	Postgres     *PostgresConfig     `mapstructure:"postgres"`
	Log          *LogConfig          `mapstructure:"log"`
	Batch        *BatchConfig        `mapstructure:"batch"`
	Negotiation  *NegotiationConfig  `mapstructure:"negotiation"`
	Retry        *RetryConfig        `mapstructure:"retry"`
	Notification *NotificationConfig `mapstructure:"notification"`
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
	AdminWhatsApp      string   `mapstructure:"admin_whatsapp"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DB           string        `mapstructure:"db"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
}

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DB, c.SSLMode)
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type BatchConfig struct {
	Size          int    `mapstructure:"size"`
	ShareReward   int64  `mapstructure:"share_reward"`
	Title         string `mapstructure:"title"`
	Description   string `mapstructure:"description"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type NegotiationConfig struct {
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

type NotificationConfig struct {
	AMQPURL        string        `mapstructure:"amqp_url"`
	Queue          string        `mapstructure:"queue"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Load reads the yaml file at path. Every key can be overridden by an
// environment variable prefixed with GKACH_, e.g. GKACH_POSTGRES_HOST.
func Load(path string) (*AppConfig, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	return decode(v)
}

// Watch reloads the file whenever it changes and hands the new config to
// onChange. Invalid edits are reported through onError and otherwise ignored.
func Watch(path string, onChange func(*AppConfig), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		conf, err := decode(v)
		if err != nil {
			onError(err)
			return
		}
		onChange(conf)
	})
	v.WatchConfig()

	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GKACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.base_url", "localhost:8080")
	v.SetDefault("api.allowed_cors_domains", []string{"http://localhost:3000"})
	v.SetDefault("api.jwt_signing_key", "")
	v.SetDefault("api.admin_whatsapp", "")

	v.SetDefault("gin.mode", "debug")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db", "gkach")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.lock_timeout", "5s")

	v.SetDefault("log.level", "info")

	v.SetDefault("batch.size", 5)
	v.SetDefault("batch.share_reward", 50)
	v.SetDefault("batch.title", "Glory2yahPub Ad Batch")
	v.SetDefault("batch.description", "Check out these amazing ads from Glory2yahPub!")
	v.SetDefault("batch.public_base_url", "http://localhost:8080")

	v.SetDefault("negotiation.stale_after", "72h")
	v.SetDefault("negotiation.sweep_interval", "10m")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_interval", "20ms")

	v.SetDefault("notification.amqp_url", "")
	v.SetDefault("notification.queue", "gkach.notifications")
	v.SetDefault("notification.connect_timeout", "5s")
}

func decode(v *viper.Viper) (*AppConfig, error) {
	conf := &AppConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *AppConfig) validate() error {
	if c.API.JWTSigningKey == "" {
		return fmt.Errorf("api.jwt_signing_key is required")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Batch.ShareReward < 0 {
		return fmt.Errorf("batch.share_reward must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	return nil
}
