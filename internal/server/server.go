package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-pics/internal/config"
	"github.com/Tomlord1122/todo-pics/internal/service"
)

// HealthChecker reports database health as flat key/value stats.
type HealthChecker interface {
	Health() map[string]string
}

type Server struct {
	cfg               config.HTTPConfig
	maxUploadBytes    int64
	todoService       service.TodoService
	attachmentService service.AttachmentService
	db                HealthChecker
	logger            *zap.Logger
	registry          *prometheus.Registry
	metrics           *Metrics
}

type Deps struct {
	Todos       service.TodoService
	Attachments service.AttachmentService
	DB          HealthChecker
	Logger      *zap.Logger
	// Registry receives the HTTP collectors and is served on /metrics.
	// A fresh registry is used when nil.
	Registry *prometheus.Registry
}

func New(cfg config.Config, deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		cfg:               cfg.HTTP,
		maxUploadBytes:    cfg.Storage.MaxUploadBytes,
		todoService:       deps.Todos,
		attachmentService: deps.Attachments,
		db:                deps.DB,
		logger:            deps.Logger,
		registry:          reg,
		metrics:           NewMetrics(reg),
	}
}

// NewServer builds the http.Server with routes and timeouts from config.
func NewServer(cfg config.Config, deps Deps) *http.Server {
	appServer := New(cfg, deps)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ErrorLog:     zap.NewStdLog(deps.Logger.Named("http")),
	}
}
