package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/server"
)

// RunReport is the JSON form of a batch run
type RunReport struct {
	DryRun   bool            `json:"dry_run"`
	Stats    model.Stats     `json:"stats"`
	Outcomes []model.Outcome `json:"results"`
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputRun(w io.Writer, outcomes []model.Outcome, stats model.Stats, dryRun bool) error {
	if outputFormat == "json" {
		return writeJSON(w, RunReport{DryRun: dryRun, Stats: stats, Outcomes: outcomes})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tSTATUS\tDATE\tSUPPLIER\tNIT\tINVOICE\tTOTAL")
	fmt.Fprintln(tw, "----\t------\t----\t--------\t---\t-------\t-----")
	for _, o := range outcomes {
		if o.Status == model.StatusError {
			fmt.Fprintf(tw, "%s\tERROR\t%s: %s\t\t\t\t\n", itemName(o), o.Reason, o.Message)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			itemName(o), strings.ToUpper(string(o.Status)), o.IssueDate, o.SupplierName, o.TaxID, o.InvoiceNumber, o.GrandTotal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	prefix := ""
	if dryRun {
		prefix = "(dry run) "
	}
	fmt.Fprintf(w, "\n%sscanned: %d, new: %d, duplicates: %d, errors: %d, filtered: %d, files saved: %d\n",
		prefix, stats.Scanned, stats.Successful, stats.Duplicate, stats.Errors, stats.Filtered, stats.FilesSaved)
	return nil
}

// itemName shows the sender of mail items next to the message id
func itemName(o model.Outcome) string {
	if o.Sender == "" {
		return o.Label
	}
	return o.Label + " <" + o.Sender + ">"
}

func outputRecords(w io.Writer, records []model.Record) error {
	if outputFormat == "json" {
		return writeJSON(w, server.ListResponse{Invoices: records, Count: len(records)})
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSUPPLIER\tNIT\tINVOICE\tSUBTOTAL\tTAX\tTOTAL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.IssueDateISO(), r.SupplierName, r.TaxID, r.InvoiceNumber,
			r.Subtotal.StringFixed(2), r.TaxTotal.StringFixed(2), r.GrandTotal.StringFixed(2))
	}
	return tw.Flush()
}

// collectFiles expands globs and directories (non-recursive) into .xml and
// .zip paths
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", m)
			}
			if !info.IsDir() {
				files = append(files, m)
				continue
			}
			entries, err := os.ReadDir(m)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !e.IsDir() && isSupportedFile(e.Name()) {
					files = append(files, filepath.Join(m, e.Name()))
				}
			}
		}
	}
	return files, nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".zip":
		return true
	default:
		return false
	}
}
