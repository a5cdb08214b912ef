package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-pics/internal/blobstore"
	"github.com/Tomlord1122/todo-pics/internal/cache"
	"github.com/Tomlord1122/todo-pics/internal/config"
	"github.com/Tomlord1122/todo-pics/internal/database"
	"github.com/Tomlord1122/todo-pics/internal/logging"
	"github.com/Tomlord1122/todo-pics/internal/repository"
	"github.com/Tomlord1122/todo-pics/internal/server"
	"github.com/Tomlord1122/todo-pics/internal/service"
)

// closer is a named resource released after the HTTP server stops.
type closer struct {
	name string
	c    io.Closer
}

func gracefulShutdown(apiServer *http.Server, logger *zap.Logger, closers []closer, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The server has 5 seconds to finish in-flight requests.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].c.Close(); err != nil {
			logger.Error("close failed", zap.String("resource", closers[i].name), zap.Error(err))
			continue
		}
		logger.Info("closed", zap.String("resource", closers[i].name))
	}

	logger.Info("server exiting")
	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logging.Sync(logger) }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	if err := database.Migrate(cfg.DB.DSN()); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	dbService, err := database.New(ctx, cfg.DB, logger)
	if err != nil {
		return err
	}
	closers := []closer{{name: "database", c: dbService}}

	backend, backendCloser, err := newBlobBackend(ctx, cfg, dbService)
	if err != nil {
		_ = dbService.Close()
		return err
	}
	if backendCloser != nil {
		closers = append(closers, *backendCloser)
	}
	var adapterOpts []blobstore.Option
	if cfg.Storage.UniqueNames {
		adapterOpts = append(adapterOpts, blobstore.WithUniqueNames())
	}
	blobs := blobstore.NewAdapter(backend, cfg.Storage.Folder, adapterOpts...)

	// Left as a nil interface when Redis is not configured.
	var listCache service.ListCache
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, list cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			listCache = cache.NewTodoCache(rdb, cfg.Redis.TTL)
			closers = append(closers, closer{name: "redis", c: rdb})
			logger.Info("list cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
		}
	}

	todoRepo := repository.NewGormTodoRepository(dbService.GetDB())
	todoService := service.NewTodoService(todoRepo, blobs, listCache, cfg.DB.StoreTimeout, logger)
	attachmentService := service.NewAttachmentService(blobs, todoRepo, listCache,
		cfg.Storage.CacheControl, cfg.DB.StoreTimeout, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	apiServer := server.NewServer(cfg, server.Deps{
		Todos:       todoService,
		Attachments: attachmentService,
		DB:          dbService,
		Logger:      logger,
		Registry:    registry,
	})

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, logger, closers, done)

	logger.Info("starting server",
		zap.String("addr", apiServer.Addr),
		zap.String("env", cfg.App.Env),
		zap.String("storage", cfg.Storage.Backend))
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	<-done
	logger.Info("graceful shutdown complete")
	return nil
}

func newBlobBackend(ctx context.Context, cfg config.Config, db database.Service) (blobstore.Backend, *closer, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendGCS:
		client, err := blobstore.NewGCSClient(ctx, cfg.Storage.GCSCredentials)
		if err != nil {
			return nil, nil, err
		}
		return blobstore.NewGCSBackend(client, cfg.Storage.GCSBucket, cfg.Storage.GCSPublicHost), &closer{name: "gcs", c: client}, nil
	default:
		return blobstore.NewPostgresBackend(db.GetDB(), cfg.Storage.PublicBaseURL), nil, nil
	}
}
