// Package config loads the gateway configuration from the environment once at
// startup. The resulting value is immutable and passed into every component.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Store drivers.
const (
	StoreRedis    = "redis"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	AppPort   string
	OriginURL string
	Verbose   bool

	CookieName string
	CookiePath string

	StoreDriver   string
	RedisAddr     string
	RedisPassword string
	DynamoTable   string
	DynamoRegion  string

	IdPBaseURL      string
	IdPClientID     string
	IdPClientSecret string
	IdPIssuerURL    string
	Scope           string
	RedirectURI     string

	SessionMaxAge time.Duration
	PendingMaxAge time.Duration
	SignOutURI    string
}

func Load() Config {
	cfg := Config{
		AppPort:   getenv("APP_PORT", "8080"),
		OriginURL: os.Getenv("ORIGIN_URL"),
		Verbose:   os.Getenv("VERBOSE") != "",

		CookieName: getenv("SESSION_COOKIE_NAME", "sessionid"),
		CookiePath: getenv("SESSION_COOKIE_PATH", "/"),

		StoreDriver:   getenv("SESSION_STORE_DRIVER", StoreRedis),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DynamoTable:   os.Getenv("SESSION_STORE_TABLE"),
		DynamoRegion:  os.Getenv("SESSION_STORE_REGION"),

		IdPBaseURL:      os.Getenv("IDP_BASE_URL"),
		IdPClientID:     os.Getenv("IDP_CLIENT_ID"),
		IdPClientSecret: os.Getenv("IDP_CLIENT_SECRET"),
		IdPIssuerURL:    os.Getenv("IDP_ISSUER_URL"),
		Scope:           getenv("AUTH_SCOPE", "openid"),
		RedirectURI:     os.Getenv("AUTH_REDIRECT_URI"),

		SessionMaxAge: duration("SESSION_MAX_AGE", 24*time.Hour),
		PendingMaxAge: duration("TMP_SESSION_MAX_AGE", 5*time.Minute),
		SignOutURI:    getenv("SIGNOUT_URI", "/"),
	}
	return cfg
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if c.OriginURL == "" {
		return errors.New("config: ORIGIN_URL is required")
	}
	if c.IdPBaseURL == "" || c.IdPClientID == "" || c.IdPClientSecret == "" {
		return errors.New("config: IDP_BASE_URL, IDP_CLIENT_ID and IDP_CLIENT_SECRET are required")
	}
	if c.RedirectURI == "" {
		return errors.New("config: AUTH_REDIRECT_URI is required")
	}

	switch c.StoreDriver {
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis store")
		}
	case StoreDynamoDB:
		if c.DynamoTable == "" {
			return errors.New("config: SESSION_STORE_TABLE is required for the dynamodb store")
		}
	default:
		return fmt.Errorf("config: unknown session store driver %q", c.StoreDriver)
	}

	if c.SessionMaxAge <= 0 || c.PendingMaxAge <= 0 {
		return errors.New("config: session lifetimes must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
