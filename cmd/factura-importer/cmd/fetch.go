package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/factura-importer/internal/mail"
	"github.com/rezonia/factura-importer/internal/processor"
	"github.com/rezonia/factura-importer/internal/storage"
)

var (
	maxMessages int
	targetDir   string
	keepInvalid bool
	authCode    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Import invoices from the mailbox",
	Long: `Scan unprocessed inbox messages, oldest first, for ZIP attachments
carrying an invoice. Imported messages are labelled and leave the inbox;
messages without a usable invoice are trashed unless --keep-invalid is set.
The XML and PDF of each import are saved to the target directory.

Examples:
  factura-importer fetch
  factura-importer fetch --max 20 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize mailbox access and store the token",
	Args:  cobra.NoArgs,
	RunE:  runAuth,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(authCmd)

	addFilterFlags(fetchCmd)
	fetchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be imported without writing or touching the mailbox")
	fetchCmd.Flags().IntVar(&maxMessages, "max", 0, "Maximum messages to process (0: configured value)")
	fetchCmd.Flags().StringVar(&targetDir, "target", "", "Directory for saved XML and PDF files")
	fetchCmd.Flags().BoolVar(&keepInvalid, "keep-invalid", false, "Never trash messages without a usable invoice")

	authCmd.Flags().StringVar(&authCode, "code", "", "Authorization code (prompted when empty)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	filters, err := flagFilters()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := mail.DialGmail(ctx, cfg.Mail.Gmail(), logger)
	if err != nil {
		return err
	}

	opts := cfg.Mail.Options()
	opts.DryRun = dryRun
	if maxMessages > 0 {
		opts.MaxMessages = maxMessages
	}
	if keepInvalid {
		opts.TrashInvalid = false
	}
	items, err := mail.Items(ctx, src, opts, logger)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	dir := cfg.Import.TargetDirectory
	if targetDir != "" {
		dir = targetDir
	}
	batch := processor.NewBatch(
		processor.NewPipeline(processor.WithLogger(logger)),
		processor.NewGate(st, logger),
		processor.WithBatchLogger(logger),
		processor.WithArchiver(storage.NewFiles(dir, logger)),
	)
	outcomes, stats := batch.Run(ctx, items, filters, modeFlag())
	return outputRun(cmd.OutOrStdout(), outcomes, stats, dryRun)
}

func runAuth(cmd *cobra.Command, args []string) error {
	creds, err := os.ReadFile(cfg.Mail.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	oauthCfg, err := mail.OAuthConfig(creds)
	if err != nil {
		return err
	}

	code := authCode
	if code == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Open this URL, grant access and paste the code:\n\n%s\n\ncode: ", mail.AuthURL(oauthCfg))
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read authorization code: %w", err)
		}
		code = line
	}

	if err := mail.ExchangeAndSave(cmd.Context(), oauthCfg, code, cfg.Mail.TokenFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Mail.TokenFile)
	return nil
}
