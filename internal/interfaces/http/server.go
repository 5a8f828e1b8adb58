// Package http exposes the invoice desk over a local HTTP API. It plays the
// part of the hosting page: it keeps the per-visitor session, serialises
// edits to the single draft and turns component errors into notices.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-desk/internal/archive"
	"github.com/garyjia/invoice-desk/internal/builder"
	"github.com/garyjia/invoice-desk/internal/export"
	"github.com/garyjia/invoice-desk/internal/gate"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"github.com/garyjia/invoice-desk/internal/render"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Dependencies are the components served by the HTTP layer
type Dependencies struct {
	Gate     *gate.Gate
	Sessions *kvstore.Sessions
	Builder  *builder.Builder
	Archive  *archive.Store
	Renderer *render.Renderer
	Capturer *render.Capturer
	Printer  *render.PDFPrinter
	Exporter *export.Exporter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given components
func NewServer(config ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(deps, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes(deps)

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(s.logger))
}

func (s *Server) setupRoutes(deps Dependencies) {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	api.Use(sessionMiddleware(deps.Sessions))
	{
		api.GET("/session", h.GetSession)
		api.POST("/session/unlock", h.Unlock)
		api.DELETE("/session", h.EndSession)
	}

	protected := api.Group("")
	protected.Use(requireUnlocked(deps.Gate))
	{
		protected.GET("/draft", h.GetDraft)
		protected.PUT("/draft", h.UpdateDraft)
		protected.POST("/draft/reset", h.ResetDraft)
		protected.POST("/draft/items", h.AddItem)
		protected.PUT("/draft/items/:id", h.UpdateItem)
		protected.DELETE("/draft/items/:id", h.RemoveItem)
		protected.GET("/draft/preview.png", h.PreviewImage)
		protected.GET("/draft/print.pdf", h.PrintPDF)
		protected.POST("/draft/save", h.SaveDraft)
		protected.POST("/draft/export", h.ExportDraft)

		protected.GET("/invoices", h.ListInvoices)
		protected.GET("/invoices/export.xlsx", h.DownloadWorkbook)
		protected.POST("/invoices/:number/load", h.LoadInvoice)
		protected.DELETE("/invoices/:number", h.DeleteInvoice)
		protected.DELETE("/invoices", h.ClearInvoices)
	}
}

// Start runs the server until ctx is cancelled or listening fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

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

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
