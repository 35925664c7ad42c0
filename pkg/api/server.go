package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permgate-org/permgate/pkg/api/middleware"
	"github.com/permgate-org/permgate/pkg/engine"
	"github.com/permgate-org/permgate/pkg/prompt"
)

// Config defines the HTTP server settings.
type Config struct {
	Enable bool   `yaml:"enable" envconfig:"HTTP_ENABLE"`
	Addr   string `yaml:"addr" envconfig:"HTTP_ADDR"`
	APIKey string `yaml:"api_key" envconfig:"HTTP_API_KEY"`
}

// Server hosts the Gin engine and exposes the policy engine over HTTP.
type Server struct {
	engine  *gin.Engine
	config  Config
	policy  *engine.Engine
	prompts *prompt.Manager
	log     *slog.Logger
}

// NewServer constructs the HTTP API server.
func NewServer(cfg Config, policy *engine.Engine, prompts *prompt.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	ginEngine.Use(middleware.Logger(log))

	srv := &Server{
		engine:  ginEngine,
		config:  cfg,
		policy:  policy,
		prompts: prompts,
		log:     log,
	}

	srv.setupRoutes()

	return srv
}

// Engine returns the underlying Gin engine (for httptest and embedding).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves the API on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{Addr: s.config.Addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Shutdown(context.Background())
	}()

	s.log.Info("http api listening", "addr", s.config.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http api stopped")
	return nil
}
