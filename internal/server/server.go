package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/mail"
	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/processor"
	"github.com/rezonia/factura-importer/internal/report"
	"github.com/rezonia/factura-importer/internal/store"
)

// Config holds server configuration
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Debug           bool
	TargetDirectory string
	OutputDirectory string
}

// MailDialer opens the mailbox on demand
type MailDialer func(ctx context.Context) (mail.Source, error)

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	store    store.Store
	pipeline *processor.Pipeline
	exporter *report.Exporter
	dialMail MailDialer
	mailOpts mail.Options
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures the server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPipeline sets the processing pipeline
func WithPipeline(p *processor.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithExporter sets the report exporter
func WithExporter(e *report.Exporter) Option {
	return func(s *Server) {
		s.exporter = e
	}
}

// WithMail enables the mailbox endpoint
func WithMail(dial MailDialer, opts mail.Options) Option {
	return func(s *Server) {
		s.dialMail = dial
		s.mailOpts = opts
	}
}

// WithClock sets the clock used to name exports
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a new API server over st
func NewServer(config *Config, st store.Store, opts ...Option) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config: config,
		router: router,
		store:  st,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = processor.NewPipeline(processor.WithLogger(s.logger))
	}
	if s.exporter == nil {
		s.exporter = report.NewExporter(report.WithLogger(s.logger))
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/process/xml", s.handleProcessXML)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/info", s.handleInfo)

		inv := v1.Group("/invoices")
		inv.GET("", s.handleList)
		inv.GET("/providers", s.handleProviders)
		inv.GET("/stats", s.handleStats)
		inv.POST("/import-db", s.handleImport)
		inv.POST("/process", s.handleMail)
		inv.POST("/export-db", s.handleExport)
	}
}

// Run starts the HTTP server and shuts it down gracefully when ctx ends
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("HTTP server listening", zap.String("address", s.config.Address))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

func (s *Server) handleProcessXML(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result := s.pipeline.ProcessBytes(ctx, body, c.Query("filename"))
	if result.Error != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:  result.Error.Error(),
			Reason: model.ReasonOf(result.Error),
		})
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Record:   result.Record,
		Format:   result.Format.String(),
		Warnings: processor.Check(result.Record),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	result := s.pipeline.ProcessBytes(c.Request.Context(), body, "")
	if result.Error != nil {
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Reason: model.ReasonOf(result.Error),
			Errors: []string{result.Error.Error()},
		})
		return
	}

	c.JSON(http.StatusOK, ValidationResponse{
		Valid:    true,
		Record:   result.Record,
		Warnings: processor.Check(result.Record),
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.pipeline.Inspect(body))
}

// bindOptional binds a JSON body, accepting an empty one
func bindOptional(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return false
	}
	return true
}
