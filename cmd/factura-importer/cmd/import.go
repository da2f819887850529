package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/processor"
	"github.com/rezonia/factura-importer/internal/server"
)

var (
	dryRun       bool
	fromDate     string
	toDate       string
	providerName string
)

var importCmd = &cobra.Command{
	Use:   "import [directory]",
	Short: "Import a directory of XML and ZIP invoices",
	Long: `Import every .xml and .zip file directly inside a directory.

Each file is located, normalized and stored unless an invoice with the same
NIT and number already exists. Failures are reported per file and never
stop the run.

Examples:
  factura-importer import ./facturas
  factura-importer import ./facturas --dry-run -f json
  factura-importer import --from 2026-03-01 --provider "Acme SAS"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	addFilterFlags(importCmd)
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be imported without writing")
}

func addFilterFlags(c *cobra.Command) {
	c.Flags().StringVar(&fromDate, "from", "", "Only issue dates on or after YYYY-MM-DD")
	c.Flags().StringVar(&toDate, "to", "", "Only issue dates on or before YYYY-MM-DD")
	c.Flags().StringVar(&providerName, "provider", "", "Only this supplier name")
}

func flagFilters() (model.Filters, error) {
	return server.ParseFilters(fromDate, toDate, providerName)
}

func modeFlag() model.Mode {
	if dryRun {
		return model.ModePreview
	}
	return model.ModeCommit
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runImport(cmd *cobra.Command, args []string) error {
	filters, err := flagFilters()
	if err != nil {
		return err
	}

	dir := cfg.Import.TargetDirectory
	if len(args) == 1 {
		dir = args[0]
	}
	items, err := processor.DirectoryItems(dir)
	if err != nil {
		return err
	}
	printVerbose("Found %d files in %s\n", len(items), dir)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := processor.NewPipeline(processor.WithLogger(logger))
	batch := processor.NewBatch(pipeline, processor.NewGate(st, logger), processor.WithBatchLogger(logger))
	outcomes, stats := batch.Run(ctx, items, filters, modeFlag())
	return outputRun(cmd.OutOrStdout(), outcomes, stats, dryRun)
}
