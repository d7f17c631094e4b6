package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tendant/guided-content/pkg/guidedcontent/storage/minio"
	s3storage "github.com/tendant/guided-content/pkg/guidedcontent/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:          "8080",
		Environment:   "development",
		DatabaseType:  DatabaseMemory,
		MongoDatabase: "guided_content",
		StorageURL:    "memory://",
		AutoMigrate:   true,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Database types selected by the DATABASE_URL scheme
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongo"
)

// Storage types selected by the STORAGE_URL scheme
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageMinIO  = "minio"
)

// ServerConfig represents server configuration for the guided-content service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // derived from DatabaseURL
	DBSchema      string // Postgres search_path
	MongoDatabase string
	AutoMigrate   bool

	// Storage configuration
	StorageURL    string
	PublicBaseURL string // where this server is reachable; memory and fs media are served under <PublicBaseURL>/media

	// Content kinds file (YAML, TOML or JSON). Empty uses the built-in kinds.
	ContentKindsFile string

	// Lifecycle events
	RedisURL      string
	EventsChannel string

	// Admin identity
	AdminKeySHA256 string
	JWTSecret      string

	// Logging
	LogLevel  string
	LogFormat string // text or json
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	dbType, err := DatabaseTypeFor(c.DatabaseURL)
	if err != nil {
		return err
	}
	c.DatabaseType = dbType
	if c.DatabaseType == DatabaseMongo && c.MongoDatabase == "" {
		return errors.New("mongo database name is required when using mongodb")
	}

	if _, err := ParseStorageURL(c.StorageURL); err != nil {
		return err
	}

	if c.AdminKeySHA256 != "" {
		if len(c.AdminKeySHA256) != 64 || strings.Trim(strings.ToLower(c.AdminKeySHA256), "0123456789abcdef") != "" {
			return errors.New("admin key hash must be 64 hex characters")
		}
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// MediaBaseURL is the URL prefix under which this server serves memory and
// filesystem blobs.
func (c *ServerConfig) MediaBaseURL() string {
	base := strings.TrimSuffix(c.PublicBaseURL, "/")
	if base == "" {
		base = "http://localhost:" + c.Port
	}
	return base + "/media"
}

// DatabaseTypeFor maps a DATABASE_URL to a database type.
func DatabaseTypeFor(databaseURL string) (string, error) {
	switch {
	case databaseURL == "" || databaseURL == "memory":
		return DatabaseMemory, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DatabasePostgres, nil
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return DatabaseMongo, nil
	}
	return "", fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'mongodb://...')", redact(databaseURL))
}

// StorageSpec is a parsed STORAGE_URL.
type StorageSpec struct {
	Type    string
	BaseDir string // fs
	S3      s3storage.Config
	MinIO   minio.Config
}

// ParseStorageURL parses one of
//
//	memory://
//	file:///path/to/data
//	s3://bucket?region=..&endpoint=..&path_style=..&public_base=..&access_key=..&secret_key=..&skip_acl=..&create_bucket=..&sse=..&kms_key=..
//	minio://host:port/bucket?secure=..&access_key=..&secret_key=..&region=..&public_base=..
func ParseStorageURL(raw string) (StorageSpec, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return StorageSpec{Type: StorageMemory}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return StorageSpec{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	q := u.Query()

	switch u.Scheme {
	case "file":
		dir := u.Path
		if u.Host != "" {
			dir = u.Host + u.Path
		}
		if dir == "" {
			return StorageSpec{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageSpec{Type: StorageFS, BaseDir: dir}, nil

	case "s3":
		if u.Host == "" {
			return StorageSpec{}, errors.New("bucket name is required in STORAGE_URL (s3://bucket)")
		}
		spec := StorageSpec{Type: StorageS3, S3: s3storage.Config{
			Bucket:                 u.Host,
			Region:                 q.Get("region"),
			Endpoint:               q.Get("endpoint"),
			AccessKeyID:            q.Get("access_key"),
			SecretAccessKey:        q.Get("secret_key"),
			PublicBaseURL:          q.Get("public_base"),
			UsePathStyle:           queryBool(q, "path_style", false),
			SkipACL:                queryBool(q, "skip_acl", false),
			CreateBucketIfNotExist: queryBool(q, "create_bucket", false),
		}}
		if sse := q.Get("sse"); sse != "" {
			spec.S3.EnableSSE = true
			spec.S3.SSEAlgorithm = sse
			spec.S3.SSEKMSKeyID = q.Get("kms_key")
		}
		return spec, nil

	case "minio":
		bucket := strings.Trim(u.Path, "/")
		if u.Host == "" || bucket == "" {
			return StorageSpec{}, errors.New("STORAGE_URL must look like minio://host:port/bucket")
		}
		return StorageSpec{Type: StorageMinIO, MinIO: minio.Config{
			Endpoint:      u.Host,
			Bucket:        bucket,
			AccessKey:     q.Get("access_key"),
			SecretKey:     q.Get("secret_key"),
			Region:        q.Get("region"),
			UseSSL:        queryBool(q, "secure", false),
			PublicBaseURL: q.Get("public_base"),
		}}, nil
	}
	return StorageSpec{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", u.Scheme)
}

func queryBool(q url.Values, key string, def bool) bool {
	if v := q.Get(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// redact drops credentials from a connection URL for error messages.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
