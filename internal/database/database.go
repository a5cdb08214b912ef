package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-pics/internal/config"
	"github.com/Tomlord1122/todo-pics/internal/logging"
)

// Service exposes the shared gorm handle together with health and shutdown.
type Service interface {
	Health() map[string]string
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db      *gorm.DB
	name    string
	maxOpen int
	logger  *zap.Logger
}

// New opens the connection pool and verifies it with a ping.
func New(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (Service, error) {
	level := zapcore.InfoLevel
	if logger.Core().Enabled(zapcore.DebugLevel) {
		level = zapcore.DebugLevel
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logging.NewGormLogger(logger, level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &service{db: db, name: cfg.Database, maxOpen: cfg.MaxOpenConns, logger: logger}, nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = "database handle unavailable"
		s.logger.Error("health check: get sql.DB", zap.Error(err))
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = "database unreachable"
		s.logger.Error("health check: db down", zap.Error(err))
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	stats["message"] = loadMessage(dbStats.OpenConnections, s.maxOpen, dbStats.WaitCount, stats["message"])
	return stats
}

// loadMessage picks the health message from pool usage.
func loadMessage(open, maxOpen int, waitCount int64, fallback string) string {
	if maxOpen > 0 && open*10 > maxOpen*8 {
		return "The database is experiencing heavy load."
	}
	if waitCount > 1000 {
		return "The database has a high number of wait events, indicating potential bottlenecks."
	}
	return fallback
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.logger.Info("closing database connection pool", zap.String("database", s.name))
	return sqlDB.Close()
}
