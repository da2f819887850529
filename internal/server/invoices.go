package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/mail"
	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/processor"
	"github.com/rezonia/factura-importer/internal/report"
	"github.com/rezonia/factura-importer/internal/storage"
)

// ParseFilters builds filters from YYYY-MM-DD bounds and a provider name
func ParseFilters(start, end, provider string) (model.Filters, error) {
	var f model.Filters
	var err error
	if f.From, err = parseDay("start_date", start); err != nil {
		return f, err
	}
	if f.To, err = parseDay("end_date", end); err != nil {
		return f, err
	}
	f.Provider = strings.TrimSpace(provider)
	return f, f.Validate()
}

func parseDay(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, model.NewValidationError(field, s, "date=YYYY-MM-DD", "invalid date")
	}
	return t, nil
}

func (s *Server) queryFilters(c *gin.Context) (model.Filters, bool) {
	f, err := ParseFilters(c.Query("start_date"), c.Query("end_date"), c.Query("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return f, false
	}
	return f, true
}

func (s *Server) handleList(c *gin.Context) {
	f, ok := s.queryFilters(c)
	if !ok {
		return
	}
	records, err := s.store.List(c.Request.Context(), f)
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	c.JSON(http.StatusOK, ListResponse{Invoices: records, Count: len(records)})
}

func (s *Server) handleProviders(c *gin.Context) {
	f, ok := s.queryFilters(c)
	if !ok {
		return
	}
	providers, err := s.store.Providers(c.Request.Context(), f)
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	if providers == nil {
		providers = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

func (s *Server) handleStats(c *gin.Context) {
	f, ok := s.queryFilters(c)
	if !ok {
		return
	}
	sum, err := s.store.Summarize(c.Request.Context(), f)
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleImport(c *gin.Context) {
	var req ImportRequest
	if !bindOptional(c, &req) {
		return
	}
	f, err := ParseFilters(req.StartDate, req.EndDate, req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	dir := req.TargetDirectory
	if dir == "" {
		dir = s.config.TargetDirectory
	}
	items, err := processor.DirectoryItems(dir)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	batch := processor.NewBatch(s.pipeline, processor.NewGate(s.store, s.logger), processor.WithBatchLogger(s.logger))
	outcomes, stats := batch.Run(c.Request.Context(), items, f, modeOf(req.DryRun))
	c.JSON(http.StatusOK, batchResponse(outcomes, stats, req.DryRun))
}

func (s *Server) handleMail(c *gin.Context) {
	if s.dialMail == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "mail source not configured"})
		return
	}

	var req MailRequest
	if !bindOptional(c, &req) {
		return
	}
	f, err := ParseFilters(req.StartDate, req.EndDate, req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	src, err := s.dialMail(ctx)
	if err != nil {
		s.logger.Error("Failed to open mailbox", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "mail source unavailable", Details: err.Error()})
		return
	}

	opts := s.mailOpts
	opts.DryRun = req.DryRun
	if req.MaxEmails != nil {
		opts.MaxMessages = *req.MaxEmails
	}
	items, err := mail.Items(ctx, src, opts, s.logger)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to list messages", Details: err.Error()})
		return
	}

	dir := req.TargetDirectory
	if dir == "" {
		dir = s.config.TargetDirectory
	}
	batch := processor.NewBatch(s.pipeline, processor.NewGate(s.store, s.logger),
		processor.WithBatchLogger(s.logger),
		processor.WithArchiver(storage.NewFiles(dir, s.logger)),
	)
	outcomes, stats := batch.Run(ctx, items, f, modeOf(req.DryRun))
	c.JSON(http.StatusOK, batchResponse(outcomes, stats, req.DryRun))
}

func (s *Server) handleExport(c *gin.Context) {
	var req ExportRequest
	if !bindOptional(c, &req) {
		return
	}
	f, err := ParseFilters(req.StartDate, req.EndDate, req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	formats, err := report.ParseFormats(req.Formats)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	records, err := s.store.List(c.Request.Context(), f)
	if err != nil {
		s.storageFailure(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, ExportResponse{Status: "warning", Message: "No hay datos para exportar con estos filtros."})
		return
	}

	dir := req.OutputDirectory
	if dir == "" {
		dir = s.config.OutputDirectory
	}
	files, errs := s.exporter.Export(records, formats, dir, s.now())
	status := "success"
	if len(files) == 0 {
		status = "error"
	}
	c.JSON(http.StatusOK, ExportResponse{
		Status:  status,
		Message: fmt.Sprintf("Exportación completada. Se generaron %d archivos.", len(files)),
		Files:   files,
		Errors:  report.ErrorMessages(errs),
		Count:   len(records),
	})
}

func (s *Server) storageFailure(c *gin.Context, err error) {
	s.logger.Error("Store query failed", zap.Error(err))
	var se *model.StorageError
	if errors.As(err, &se) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage failure", Reason: model.ReasonStorageFault, Details: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func modeOf(dryRun bool) model.Mode {
	if dryRun {
		return model.ModePreview
	}
	return model.ModeCommit
}

func batchResponse(outcomes []model.Outcome, stats model.Stats, dryRun bool) BatchResponse {
	msg := fmt.Sprintf("Procesadas %d facturas: %d nuevas, %d duplicadas, %d errores.",
		stats.Scanned, stats.Successful, stats.Duplicate, stats.Errors)
	if dryRun {
		msg = "Simulación: " + msg
	}
	if outcomes == nil {
		outcomes = []model.Outcome{}
	}
	return BatchResponse{Status: "success", Message: msg, DryRun: dryRun, Stats: stats, Results: outcomes}
}
