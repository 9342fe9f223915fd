package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classfolio/yearbook/pkg/yearbook"
	repomemory "github.com/classfolio/yearbook/pkg/yearbook/repo/memory"
	repopg "github.com/classfolio/yearbook/pkg/yearbook/repo/postgres"
	storememory "github.com/classfolio/yearbook/pkg/yearbook/store/memory"
	"github.com/classfolio/yearbook/pkg/yearbook/store/rasterize"
	stores3 "github.com/classfolio/yearbook/pkg/yearbook/store/s3"
	"github.com/classfolio/yearbook/pkg/yearbook/urlsign"
)

// ServerConfig represents server configuration for the yearbook service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Database configuration
	DatabaseType   string `env:"DATABASE_TYPE" env-default:"memory"` // "memory", "postgres"
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Object store configuration
	StorageType       string `env:"STORAGE_TYPE" env-default:"memory"` // "memory", "s3"
	S3Region          string `env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`

	// Delivery configuration
	PublicBaseURL  string `env:"PUBLIC_BASE_URL"`
	GatewayBaseURL string `env:"TRANSFORM_GATEWAY_URL"`
	URLSignSecret  string `env:"URL_SIGN_SECRET"`
	SignedURLTTL   int    `env:"SIGNED_URL_TTL" env-default:"3600"` // seconds

	// Auth configuration
	JWTSecret string `env:"JWT_SECRET"`
}

// LoadServerConfig reads server configuration from the environment
func LoadServerConfig() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.StorageType != "memory" && c.StorageType != "s3" {
		return errors.New("storage_type must be 'memory' or 's3'")
	}
	if c.StorageType == "s3" {
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required when using s3")
		}
		if c.URLSignSecret == "" {
			return errors.New("url_sign_secret is required when using s3")
		}
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(logger *slog.Logger) (yearbook.Service, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildObjectStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build object store: %w", err)
	}

	return yearbook.New(
		yearbook.WithRepository(repo),
		yearbook.WithObjectStore(store),
		yearbook.WithEventSink(yearbook.NewLogEventSink(logger)),
		yearbook.WithLogger(logger),
		yearbook.WithSignedURLTTL(time.Duration(c.SignedURLTTL)*time.Second),
	)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (yearbook.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", c.DatabaseType)
	}
}

// buildObjectStore creates an ObjectStore based on the configuration
func (c *ServerConfig) buildObjectStore() (yearbook.ObjectStore, error) {
	switch c.StorageType {
	case "memory":
		opts := []storememory.Option{}
		if c.PublicBaseURL != "" {
			opts = append(opts, storememory.WithBaseURL(c.PublicBaseURL))
		}
		if c.URLSignSecret != "" {
			opts = append(opts, storememory.WithSigner(urlsign.New([]byte(c.URLSignSecret))))
		}
		return storememory.New(opts...), nil
	case "s3":
		return stores3.New(stores3.Config{
			Region:          c.S3Region,
			Bucket:          c.S3Bucket,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			Endpoint:        c.S3Endpoint,
			UsePathStyle:    c.S3UsePathStyle,
			PresignDuration: c.SignedURLTTL,
			PublicBaseURL:   c.PublicBaseURL,
			GatewayBaseURL:  c.GatewayBaseURL,
			GatewaySecret:   c.URLSignSecret,
		}, rasterize.NewPoppler())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", c.StorageType)
	}
}
