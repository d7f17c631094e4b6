package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/guided-content/pkg/guidedcontent"
	"github.com/tendant/guided-content/pkg/guidedcontent/api"
	docmemory "github.com/tendant/guided-content/pkg/guidedcontent/docstore/memory"
	docmongo "github.com/tendant/guided-content/pkg/guidedcontent/docstore/mongo"
	docpostgres "github.com/tendant/guided-content/pkg/guidedcontent/docstore/postgres"
	redisevents "github.com/tendant/guided-content/pkg/guidedcontent/events/redis"
	"github.com/tendant/guided-content/pkg/guidedcontent/metrics"
	fsstorage "github.com/tendant/guided-content/pkg/guidedcontent/storage/fs"
	memorystorage "github.com/tendant/guided-content/pkg/guidedcontent/storage/memory"
	"github.com/tendant/guided-content/pkg/guidedcontent/storage/minio"
	s3storage "github.com/tendant/guided-content/pkg/guidedcontent/storage/s3"
)

// App is the wired runtime built from a ServerConfig.
type App struct {
	Config   *ServerConfig
	Registry *guidedcontent.Registry
	Service  guidedcontent.Service
	Metrics  *prometheus.Registry
	Sink     *metrics.Sink

	// Media is set when blobs are served by this process (memory and fs).
	Media api.Opener

	closers []func(context.Context) error
}

// Close releases database pools and clients in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// AuthConfig returns the admin identity settings for the HTTP layer.
func (c *ServerConfig) AuthConfig() api.AuthConfig {
	return api.AuthConfig{AdminKeySHA256: c.AdminKeySHA256, JWTSecret: c.JWTSecret}
}

// Build connects every backend the configuration names and returns the
// service over them.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{Config: c, Metrics: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Sink = metrics.New(app.Metrics)

	if app.Registry, err = c.BuildRegistry(); err != nil {
		return nil, fmt.Errorf("failed to build content kind registry: %w", err)
	}

	docs, err := c.buildDocumentStore(ctx, app, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build document store: %w", err)
	}

	blobs, err := c.buildBlobStore(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	sinks := guidedcontent.MultiEventSink{guidedcontent.NewLoggingEventSink(logger), app.Sink}
	if c.RedisURL != "" {
		pub, err := redisevents.NewFromURL(ctx, c.RedisURL,
			redisevents.WithChannel(c.EventsChannel),
			redisevents.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return pub.Close() })
		sinks = append(sinks, pub)
		logger.Info("Publishing lifecycle events", "channel", pub.Channel())
	}

	app.Service, err = guidedcontent.New(
		guidedcontent.WithRegistry(app.Registry),
		guidedcontent.WithDocumentStore(docs),
		guidedcontent.WithBlobStore(blobs),
		guidedcontent.WithEventSink(sinks),
		guidedcontent.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (c *ServerConfig) buildDocumentStore(ctx context.Context, app *App, logger *slog.Logger) (guidedcontent.DocumentStore, error) {
	switch c.DatabaseType {
	case DatabaseMemory, "":
		logger.Warn("Using in-memory document store; data is lost on restart")
		return docmemory.New(), nil

	case DatabasePostgres:
		pool, err := docpostgres.NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { pool.Close(); return nil })
		if c.AutoMigrate {
			if err := docpostgres.Migrate(ctx, pool); err != nil {
				return nil, err
			}
		}
		return docpostgres.NewWithPool(pool), nil

	case DatabaseMongo:
		store, err := docmongo.Connect(ctx, c.DatabaseURL, c.MongoDatabase)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
}

func (c *ServerConfig) buildBlobStore(ctx context.Context, app *App) (guidedcontent.BlobStore, error) {
	spec, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}

	switch spec.Type {
	case StorageMemory:
		store := memorystorage.NewWithBaseURL(c.MediaBaseURL())
		app.Media = store
		return store, nil

	case StorageFS:
		store, err := fsstorage.New(fsstorage.Config{BaseDir: spec.BaseDir, URLPrefix: c.MediaBaseURL()})
		if err != nil {
			return nil, err
		}
		app.Media = store
		return store, nil

	case StorageS3:
		return s3storage.New(spec.S3)

	case StorageMinIO:
		store, err := minio.New(spec.MinIO)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare minio bucket: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage backend type: %s", spec.Type)
}
