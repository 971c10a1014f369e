// Package server provides the HTTP server
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/infrastructure/config"
	"github.com/fooder/fooder/internal/infrastructure/http/handlers"
	"github.com/fooder/fooder/internal/infrastructure/http/middleware"
	"github.com/fooder/fooder/internal/infrastructure/monitoring"
	"github.com/fooder/fooder/pkg/healthcheck"
)

// ScanPath is the detect-and-find-recipes endpoint
const ScanPath = "/api/detect-and-find-recipes"

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server
	addr   net.Addr
}

// NewServer creates a new HTTP server instance. metrics may be nil.
func NewServer(
	cfg *config.Config,
	mw *middleware.Middleware,
	scans *handlers.ScanHandlers,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	logger *zap.Logger,
) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: logger.Named("http-server"),
	}

	engine, err := s.setupRouter(mw, scans, health, metrics)
	if err != nil {
		return nil, err
	}
	s.engine = engine

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

// setupRouter configures the gin engine with middleware and routes
func (s *Server) setupRouter(
	mw *middleware.Middleware,
	scans *handlers.ScanHandlers,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r.Use(mw.Recovery())
	r.Use(mw.RequestID())
	r.Use(mw.Tracing())
	r.Use(mw.Logger())
	if metrics != nil {
		r.Use(metrics.HTTPMiddleware())
	}
	r.Use(mw.Security())
	if s.config.Server.EnableCORS {
		corsHandler, err := mw.CORS()
		if err != nil {
			return nil, err
		}
		r.Use(corsHandler)
	}
	r.Use(mw.ErrorHandler())

	mon := s.config.Monitoring
	r.GET(mon.HealthCheckPath, health.Handler())
	r.GET(mon.ReadinessPath, health.ReadinessHandler())
	r.GET(mon.LivenessPath, health.LivenessHandler())
	if metrics != nil && mon.EnableMetrics {
		r.GET(mon.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	api := r.Group("/api")
	api.Use(mw.RateLimit(), mw.BodyLimit())
	api.POST("/detect-and-find-recipes", scans.DetectAndFindRecipes)

	if dir := s.config.Server.StaticDir; dir != "" {
		r.StaticFile("/", filepath.Join(dir, "index.html"))
		r.Static("/static", dir)
	}

	return r, nil
}

// Handler exposes the routed engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listen address and serves in the background.
// Bind failures are returned; serve failures after that are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr()

	s.logger.Info("Starting HTTP server",
		zap.String("address", s.addr.String()),
		zap.String("environment", s.config.App.Environment),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
