package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/tabsession/internal/api/http"
	"github.com/GriffinCanCode/tabsession/internal/api/middleware"
	"github.com/GriffinCanCode/tabsession/internal/engine"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
)

const shutdownTimeout = 5 * time.Second

// Server is the debug HTTP server of an engine
type Server struct {
	router *gin.Engine
	engine *engine.Engine
	logger *zap.Logger
	addr   string
}

// New creates the debug server for eng
func New(eng *engine.Engine) *Server {
	cfg := eng.Config()
	logger := eng.Logger().Logger

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(eng.Metrics()))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: cfg.Debug.AllowOrigins,
		MaxAge:       time.Hour,
	}))
	router.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Debug.RequestsPerSecond,
		Burst:             cfg.Debug.Burst,
	}))

	handlers := api.NewHandlers(eng)

	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(eng.Metrics().Handler()))

	v1 := router.Group("/v1")
	v1.GET("/archive", handlers.GetArchive)
	v1.GET("/assets", handlers.ListAssets)
	v1.POST("/flush", handlers.Flush)

	return &Server{
		router: router,
		engine: eng,
		logger: logger.Named("server"),
		addr:   cfg.Debug.Addr,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting debug server", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("debug server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down debug server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("debug server shutdown: %w", err)
	}
	return nil
}
