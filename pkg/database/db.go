package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config describes how to reach the registry store.
// When URL is set it wins over the discrete host/user/password fields.
type Config struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"REGISTRY_DB_HOST" envDefault:"localhost"`
	Port     int    `env:"REGISTRY_DB_PORT" envDefault:"5432"`
	User     string `env:"REGISTRY_DB_USER" envDefault:"postgres"`
	Password string `env:"REGISTRY_DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"REGISTRY_DB_NAME" envDefault:"registry"`
	SSLMode  string `env:"REGISTRY_DB_SSLMODE" envDefault:"disable"`

	MaxConns    int           `env:"REGISTRY_DB_MAX_CONNS" envDefault:"5"`
	Timeout     time.Duration `env:"REGISTRY_DB_CONNECT_TIMEOUT" envDefault:"5s"`
	LockTimeout time.Duration `env:"REGISTRY_DB_LOCK_TIMEOUT" envDefault:"5s"`

	RetryAttempts int           `env:"REGISTRY_DB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"REGISTRY_DB_RETRY_DELAY" envDefault:"1s"`

	TimeZone       string `env:"DATABASE_TIMEZONE"`
	ClientEncoding string `env:"DATABASE_CLIENT_ENCODING"`
}

// ConfigFromEnv reads DB config from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse db env: %w", err)
	}
	return cfg, nil
}

// RetryPolicy returns the transient-error retry policy configured for the store.
func (c Config) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	if c.RetryAttempts > 0 {
		p.MaxAttempts = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		p.Delay = c.RetryDelay
	}
	return p
}

// DSN renders the connection string. Session settings (lock timeout, time
// zone, client encoding) travel as run-time parameters so every pooled
// connection gets them, not only the first one.
func (c Config) DSN() string {
	var u *url.URL
	if c.URL != "" {
		parsed, err := url.Parse(c.URL)
		if err != nil || (parsed.Scheme != "postgres" && parsed.Scheme != "postgresql") {
			// key=value DSN; leave untouched
			return c.URL
		}
		u = parsed
	} else {
		u = &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:   "/" + c.Name,
		}
	}
	q := u.Query()
	if c.URL == "" && c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.LockTimeout > 0 && q.Get("lock_timeout") == "" {
		q.Set("lock_timeout", strconv.FormatInt(c.LockTimeout.Milliseconds(), 10))
	}
	if c.TimeZone != "" && q.Get("TimeZone") == "" {
		q.Set("TimeZone", c.TimeZone)
	}
	if c.ClientEncoding != "" && q.Get("client_encoding") == "" {
		q.Set("client_encoding", c.ClientEncoding)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Redacted renders the DSN with the password masked, for logs.
func (c Config) Redacted() string {
	dsn := c.DSN()
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		if i := strings.Index(dsn, "password="); i >= 0 {
			return dsn[:i] + "password=xxxxx"
		}
		return dsn
	}
	return u.Redacted()
}

// Connect opens a pooled *sqlx.DB and verifies connectivity with a ping.
func Connect(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
