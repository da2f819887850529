package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/mail"
	"github.com/rezonia/factura-importer/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	withoutMail  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for importing and exporting invoices.

The API provides endpoints for:
  - POST /api/v1/process/xml            - Normalize an XML or ZIP body
  - POST /api/v1/validate               - Validate an XML or ZIP body
  - POST /api/v1/info                   - Inspect a payload
  - POST /api/v1/invoices/import-db     - Import a directory
  - POST /api/v1/invoices/process       - Import from the mailbox
  - POST /api/v1/invoices/export-db     - Export stored invoices
  - GET  /api/v1/invoices               - List stored invoices
  - GET  /api/v1/invoices/providers     - List suppliers
  - GET  /api/v1/invoices/stats         - Aggregate totals
  - GET  /health                        - Health check

Examples:
  factura-importer serve
  factura-importer serve --address :9000 --debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default: configured)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "HTTP read timeout (default: configured)")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 0, "HTTP write timeout (default: configured)")
	serveCmd.Flags().BoolVar(&withoutMail, "no-mail", false, "Disable the mailbox endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := &server.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		Debug:           cfg.Server.Debug || serverDebug,
		TargetDirectory: cfg.Import.TargetDirectory,
		OutputDirectory: cfg.Export.OutputDirectory,
	}
	if serverAddr != "" {
		sc.Address = serverAddr
	}
	if readTimeout > 0 {
		sc.ReadTimeout = readTimeout
	}
	if writeTimeout > 0 {
		sc.WriteTimeout = writeTimeout
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []server.Option{server.WithLogger(logger)}
	if !withoutMail {
		gmailCfg := cfg.Mail.Gmail()
		opts = append(opts, server.WithMail(func(ctx context.Context) (mail.Source, error) {
			return mail.DialGmail(ctx, gmailCfg, logger)
		}, cfg.Mail.Options()))
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Starting server", zap.String("address", sc.Address), zap.Bool("mail", !withoutMail))
	return server.NewServer(sc, st, opts...).Run(ctx)
}
