package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/factura-importer/internal/report"
	"github.com/rezonia/factura-importer/internal/server"
)

var (
	exportFormats []string
	exportDir     string
	listOnly      bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored invoices to Excel, CSV and PDF",
	Long: `Render the stored invoices matching the filters. Files are named
"<today> facturas_export.<ext>"; a failing format does not stop the others.

Examples:
  factura-importer export
  factura-importer export --formats csv --from 2026-03-01 --to 2026-03-31
  factura-importer export --list -f json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addFilterFlags(exportCmd)
	exportCmd.Flags().StringSliceVar(&exportFormats, "formats", nil, "Formats to write: excel,csv,pdf (default: configured)")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "Output directory")
	exportCmd.Flags().BoolVar(&listOnly, "list", false, "Print the matching records instead of writing files")
}

func runExport(cmd *cobra.Command, args []string) error {
	filters, err := flagFilters()
	if err != nil {
		return err
	}
	names := exportFormats
	if len(names) == 0 {
		names = cfg.Export.Formats
	}
	formats, err := report.ParseFormats(names)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.List(cmd.Context(), filters)
	if err != nil {
		return err
	}
	if listOnly {
		return outputRecords(cmd.OutOrStdout(), records)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records match the filters, nothing exported.")
		return nil
	}

	dir := cfg.Export.OutputDirectory
	if exportDir != "" {
		dir = exportDir
	}
	files, errs := report.NewExporter(report.WithLogger(logger)).Export(records, formats, dir, time.Now())

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), server.ExportResponse{
			Status: "success", Files: files, Errors: report.ErrorMessages(errs), Count: len(records),
		})
	}
	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", f.Format, f.Path)
	}
	if len(errs) > 0 {
		return fmt.Errorf("some formats failed: %s", strings.Join(report.ErrorMessages(errs), "; "))
	}
	return nil
}
