package server

import (
	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/report"
)

// FilterFields are the optional record filters shared by request bodies
type FilterFields struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Provider  string `json:"provider"`
}

// ImportRequest imports a directory into the store
type ImportRequest struct {
	TargetDirectory string `json:"target_directory"`
	DryRun          bool   `json:"dry_run"`
	FilterFields
}

// MailRequest imports invoices from the mailbox
type MailRequest struct {
	TargetDirectory string `json:"target_directory"`
	MaxEmails       *int   `json:"max_emails"`
	DryRun          bool   `json:"dry_run"`
	FilterFields
}

// ExportRequest renders stored records
type ExportRequest struct {
	OutputDirectory string   `json:"output_directory"`
	Formats         []string `json:"formats"`
	FilterFields
}

// ProcessResponse is the response for the process endpoint
type ProcessResponse struct {
	Record   *model.Record `json:"record"`
	Format   string        `json:"format"`
	Warnings []string      `json:"warnings,omitempty"`
}

// ValidationResponse is the response for validate endpoint
type ValidationResponse struct {
	Valid    bool          `json:"valid"`
	Reason   model.Reason  `json:"reason,omitempty"`
	Record   *model.Record `json:"record,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// BatchResponse reports a directory or mailbox run
type BatchResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	DryRun  bool            `json:"dry_run"`
	Stats   model.Stats     `json:"stats"`
	Results []model.Outcome `json:"results"`
}

// ListResponse lists stored records
type ListResponse struct {
	Invoices []model.Record `json:"invoices"`
	Count    int            `json:"count"`
}

// ExportResponse lists generated report files
type ExportResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Files   []report.GeneratedFile `json:"files,omitempty"`
	Errors  []string               `json:"errors,omitempty"`
	Count   int                    `json:"count"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string       `json:"error"`
	Reason  model.Reason `json:"reason,omitempty"`
	Details string       `json:"details,omitempty"`
}
