package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/processor"
)

var strictValidation bool

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate invoice files without importing them",
	Long: `Normalize one or more XML or ZIP files and report the result.

Checks performed:
  - A document is found (Invoice, CreditNote or AttachedDocument)
  - Invoice number and supplier name are present
  - Amounts add up (subtotal - discount + tax = total)
  - Supplier NIT is present

Examples:
  factura-importer validate invoice.xml
  factura-importer validate ./facturas --strict`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&strictValidation, "strict", false, "Treat warnings as failures")
}

// ValidationResult holds the result of validating one file
type ValidationResult struct {
	File     string        `json:"file"`
	Valid    bool          `json:"valid"`
	Reason   model.Reason  `json:"reason,omitempty"`
	Record   *model.Record `json:"record,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	pipeline := processor.NewPipeline(processor.WithLogger(logger))
	results := make([]*ValidationResult, 0, len(files))
	allValid := true
	for _, file := range files {
		r := validateFile(cmd, pipeline, file)
		results = append(results, r)
		if !r.Valid {
			allValid = false
		}
	}

	w := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := writeJSON(w, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s: VALID (%s %s)\n", r.File, r.Record.InvoiceNumber, r.Record.SupplierName)
			} else {
				fmt.Fprintf(w, "✗ %s: INVALID\n", r.File)
				for _, e := range r.Errors {
					fmt.Fprintf(w, "  - %s\n", e)
				}
			}
			for _, warn := range r.Warnings {
				fmt.Fprintf(w, "  ⚠ %s\n", warn)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func validateFile(cmd *cobra.Command, pipeline *processor.Pipeline, path string) *ValidationResult {
	result := &ValidationResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = []string{fmt.Sprintf("failed to read file: %v", err)}
		return result
	}

	res := pipeline.ProcessBytes(cmd.Context(), data, path)
	if res.Error != nil {
		result.Reason = model.ReasonOf(res.Error)
		result.Errors = []string{res.Error.Error()}
		return result
	}

	result.Record = res.Record
	result.Warnings = processor.Check(res.Record)
	result.Valid = !strictValidation || len(result.Warnings) == 0
	return result
}
