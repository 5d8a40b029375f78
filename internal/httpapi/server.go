// Package httpapi is the HTTP adapter: it translates requests into service
// calls and the domain error taxonomy into HTTP statuses.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/config"
	"github.com/clearpath/claims/internal/repository"
)

// Server is the HTTP server adapter
type Server struct {
	config     config.ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	users      *repository.UserRepository
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given handlers
func NewServer(cfg config.ServerConfig, handlers *Handlers, users *repository.UserRepository, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   cfg,
		router:   gin.New(),
		handlers: handlers,
		users:    users,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api/v1")
	api.Use(identity(s.users, s.logger))
	{
		api.POST("/claims", s.handlers.CreateClaim)
		api.GET("/claims", s.handlers.ListClaims)
		api.GET("/claims/:id", s.handlers.GetClaim)
		api.PUT("/claims/:id", s.handlers.UpdateClaim)
		api.DELETE("/claims/:id", s.handlers.DeleteClaim)
		api.POST("/claims/:id/supervisor-decision", s.handlers.SupervisorDecision)
		api.POST("/claims/:id/finance-decision", s.handlers.FinanceDecision)
		api.POST("/claims/:id/pay", s.handlers.MarkPaid)

		api.POST("/attachments", s.handlers.UploadAttachment)

		api.POST("/leaves", s.handlers.CreateLeave)
		api.GET("/leaves", s.handlers.ListLeaves)
		api.GET("/leaves/:id", s.handlers.GetLeave)
		api.POST("/leaves/:id/decision", s.handlers.LeaveDecision)

		api.GET("/policy", s.handlers.GetActivePolicy)
		api.GET("/policy/:version", s.handlers.GetPolicyVersion)
		api.POST("/policy", s.handlers.PublishPolicy)

		api.POST("/reports/settlement", s.handlers.GenerateSettlementReport)
	}
}

// Start runs the server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the gin router for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
