package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL selects the document store by URL scheme
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		dbType, err := DatabaseTypeFor(url)
		if err != nil {
			return err
		}
		c.DatabaseURL = url
		c.DatabaseType = dbType
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMongoDatabase sets the MongoDB database name
func WithMongoDatabase(name string) Option {
	return func(c *ServerConfig) error {
		c.MongoDatabase = name
		return nil
	}
}

// WithAutoMigrate toggles applying Postgres migrations at startup
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithStorageURL selects the blob store by URL scheme
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseStorageURL(url); err != nil {
			return err
		}
		c.StorageURL = url
		return nil
	}
}

// WithPublicBaseURL sets the URL this server is reachable at
func WithPublicBaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = url
		return nil
	}
}

// WithContentKindsFile loads content kinds from a YAML, TOML or JSON file
func WithContentKindsFile(path string) Option {
	return func(c *ServerConfig) error {
		c.ContentKindsFile = path
		return nil
	}
}

// WithRedisEvents publishes lifecycle events to a Redis channel
func WithRedisEvents(url, channel string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("redis url cannot be empty")
		}
		c.RedisURL = url
		c.EventsChannel = channel
		return nil
	}
}

// WithAdminAuth configures the admin identity
func WithAdminAuth(adminKeySHA256, jwtSecret string) Option {
	return func(c *ServerConfig) error {
		c.AdminKeySHA256 = adminKeySHA256
		c.JWTSecret = jwtSecret
		return nil
	}
}

// WithLogging sets the log level and format
func WithLogging(level, format string) Option {
	return func(c *ServerConfig) error {
		if level != "" {
			c.LogLevel = level
		}
		if format != "" {
			c.LogFormat = format
		}
		return nil
	}
}
