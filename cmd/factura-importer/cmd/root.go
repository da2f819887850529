package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/config"
	"github.com/rezonia/factura-importer/internal/logging"
	"github.com/rezonia/factura-importer/internal/store"
)

var (
	version = "1.0.0"

	// Global flags
	configFile   string
	verbose      bool
	outputFormat string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "factura-importer",
	Short: "Import Colombian UBL e-invoices into an accounting ledger",
	Long: `Factura Importer extracts supplier invoices and credit notes from DIAN
UBL 2.1 XML (standalone or wrapped in an AttachedDocument, loose or inside
ZIP archives), stores them once per (NIT, invoice number) and exports the
ledger to Excel, CSV and PDF.

Examples:
  # Preview an import of a directory
  factura-importer import ./facturas --dry-run

  # Pull new invoices from the mailbox
  factura-importer fetch --max 50

  # Export March to every format
  factura-importer export --from 2026-03-01 --to 2026-03-31

  # Check a file without importing it
  factura-importer validate invoice.zip`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "json", "table":
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}

	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if verbose {
		c.Logger.Level = "debug"
	}
	l, err := logging.New(c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	cfg, logger = c, l
	return nil
}

func openStore() (*store.GormStore, error) {
	return store.Open(cfg.Database, logger)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
