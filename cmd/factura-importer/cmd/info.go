package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/factura-importer/internal/processor"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about invoice files",
	Long: `Display what the locator finds in each file without normalizing it.

Shows:
  - Detected payload format (XML, ZIP, PDF)
  - Chosen ZIP member and paired PDF
  - Document type and whether it was embedded in an AttachedDocument
  - Signing certificate and signing time, when the document is signed
  - The reason a file carries no invoice

Examples:
  factura-importer info invoice.xml
  factura-importer info ./facturas`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// FileInfo is the JSON form of one inspected file
type FileInfo struct {
	File string `json:"file"`
	*processor.Info
	Error string `json:"error,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	pipeline := processor.NewPipeline(processor.WithLogger(logger))
	infos := make([]FileInfo, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			infos = append(infos, FileInfo{File: file, Error: err.Error()})
			continue
		}
		infos = append(infos, FileInfo{File: file, Info: pipeline.Inspect(data)})
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), infos)
	}

	w := cmd.OutOrStdout()
	for _, fi := range infos {
		fmt.Fprintf(w, "File: %s\n", fi.File)
		if fi.Info == nil {
			fmt.Fprintf(w, "  Error: %s\n\n", fi.Error)
			continue
		}
		fmt.Fprintf(w, "  Size: %d bytes\n", fi.Size)
		fmt.Fprintf(w, "  Format: %s\n", fi.Format)
		if fi.Member != "" {
			fmt.Fprintf(w, "  Member: %s\n", fi.Member)
		}
		if fi.PDF != "" {
			fmt.Fprintf(w, "  PDF: %s\n", fi.PDF)
		}
		if fi.Reason != "" {
			fmt.Fprintf(w, "  Rejected: %s (%s)\n\n", fi.Reason, fi.Message)
			continue
		}
		fmt.Fprintf(w, "  Document: %s\n", fi.Kind)
		fmt.Fprintf(w, "  Embedded: %t\n", fi.Embedded)
		if s := fi.Signer; s != nil {
			fmt.Fprintf(w, "  Signer: %s (issuer %s, valid to %s)\n", s.Name, s.Issuer, s.ValidTo.Format("2006-01-02"))
			if s.SignedAt != nil {
				fmt.Fprintf(w, "  Signed: %s\n", s.SignedAt.Format(time.RFC3339))
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}
