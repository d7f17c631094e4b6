package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the environment variables WithEnv understands. Unset
// variables leave the current value alone.
type envConfig struct {
	Port             string `env:"PORT" env-description:"HTTP listen port"`
	Environment      string `env:"ENVIRONMENT" env-description:"development, production or testing"`
	DatabaseURL      string `env:"DATABASE_URL" env-description:"memory, postgresql://... or mongodb://..."`
	DBSchema         string `env:"DB_SCHEMA" env-description:"Postgres search_path"`
	MongoDatabase    string `env:"MONGO_DATABASE" env-description:"MongoDB database name"`
	AutoMigrate      string `env:"AUTO_MIGRATE" env-description:"apply Postgres migrations at startup"`
	StorageURL       string `env:"STORAGE_URL" env-description:"memory://, file:///dir, s3://bucket?... or minio://host/bucket?..."`
	PublicBaseURL    string `env:"PUBLIC_BASE_URL" env-description:"URL this server is reachable at"`
	ContentKindsFile string `env:"CONTENT_KINDS_FILE" env-description:"YAML, TOML or JSON content kinds file"`
	RedisURL         string `env:"REDIS_URL" env-description:"redis:// URL for lifecycle events"`
	EventsChannel    string `env:"EVENTS_CHANNEL" env-description:"Redis pub/sub channel"`
	AdminKeySHA256   string `env:"ADMIN_KEY_SHA256" env-description:"hex SHA-256 of the admin key"`
	JWTSecret        string `env:"JWT_SECRET" env-description:"HS256 secret for admin bearer tokens"`
	LogLevel         string `env:"LOG_LEVEL" env-description:"debug, info, warn or error"`
	LogFormat        string `env:"LOG_FORMAT" env-description:"text or json"`
}

// WithEnv applies environment variable overrides:
//
//	PORT, ENVIRONMENT
//	DATABASE_URL      empty or "memory", postgresql://..., mongodb://...
//	DB_SCHEMA, MONGO_DATABASE, AUTO_MIGRATE
//	STORAGE_URL       memory://, file:///dir, s3://bucket?..., minio://host:port/bucket?...
//	PUBLIC_BASE_URL, CONTENT_KINDS_FILE
//	REDIS_URL, EVENTS_CHANNEL
//	ADMIN_KEY_SHA256, JWT_SECRET
//	LOG_LEVEL, LOG_FORMAT
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&c.Port, env.Port)
		set(&c.Environment, env.Environment)
		set(&c.DBSchema, env.DBSchema)
		set(&c.MongoDatabase, env.MongoDatabase)
		set(&c.PublicBaseURL, env.PublicBaseURL)
		set(&c.ContentKindsFile, env.ContentKindsFile)
		set(&c.RedisURL, env.RedisURL)
		set(&c.EventsChannel, env.EventsChannel)
		set(&c.AdminKeySHA256, env.AdminKeySHA256)
		set(&c.JWTSecret, env.JWTSecret)
		set(&c.LogLevel, env.LogLevel)
		set(&c.LogFormat, env.LogFormat)

		if env.DatabaseURL != "" {
			if err := WithDatabaseURL(env.DatabaseURL)(c); err != nil {
				return err
			}
		}
		if env.StorageURL != "" {
			if err := WithStorageURL(env.StorageURL)(c); err != nil {
				return err
			}
		}
		if env.AutoMigrate != "" {
			switch env.AutoMigrate {
			case "1", "true", "TRUE", "yes":
				c.AutoMigrate = true
			case "0", "false", "FALSE", "no":
				c.AutoMigrate = false
			default:
				return fmt.Errorf("invalid AUTO_MIGRATE value: %s", env.AutoMigrate)
			}
		}
		return nil
	}
}

// EnvUsage describes the environment variables WithEnv reads.
func EnvUsage() string {
	text, err := cleanenv.GetDescription(&envConfig{}, nil)
	if err != nil {
		return ""
	}
	return text
}
