package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"` // override for tests/sandboxes
}

type PaymentConfig struct {
	Stripe   StripeConfig `yaml:"stripe"`
	Currency string       `yaml:"currency"`
	TaxRate  string       `yaml:"tax_rate"`    // decimal, e.g. "0.05"
	MinCAD   string       `yaml:"min_amount"`  // decimal
	MaxCAD   string       `yaml:"max_amount"`  // decimal
}

type OTPConfig struct {
	Length        int           `yaml:"length"`
	ExpiryWindow  time.Duration `yaml:"expiry_window"`
	MaxAttempts   int           `yaml:"max_attempts"`
	LockoutWindow time.Duration `yaml:"lockout_window"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type WorkersConfig struct {
	Notify int `yaml:"notify"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	OTP        OTPConfig        `yaml:"otp"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Admin      AdminConfig      `yaml:"admin"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Workers    WorkersConfig    `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "cad"
	}
	if cfg.Payment.TaxRate == "" {
		cfg.Payment.TaxRate = "0.05"
	}
	if cfg.Payment.MinCAD == "" {
		cfg.Payment.MinCAD = "1.00"
	}
	if cfg.Payment.MaxCAD == "" {
		cfg.Payment.MaxCAD = "10000.00"
	}
	if cfg.OTP.Length <= 0 {
		cfg.OTP.Length = 6
	}
	if cfg.OTP.ExpiryWindow <= 0 {
		cfg.OTP.ExpiryWindow = 10 * time.Minute
	}
	if cfg.OTP.MaxAttempts <= 0 {
		cfg.OTP.MaxAttempts = 3
	}
	if cfg.OTP.LockoutWindow <= 0 {
		cfg.OTP.LockoutWindow = 15 * time.Minute
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.Workers.Notify <= 0 {
		cfg.Workers.Notify = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.Stripe.SecretKey == "" {
		return nil, errors.New("payment.stripe.secret_key is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
