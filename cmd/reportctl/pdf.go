package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
	"github.com/xelth-com/reg44go/internal/services/printer"
)

var pdfFlags struct {
	org    string
	report string
	out    string
}

var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Export a report as PDF",
	Long: `Export a report as PDF. An unsynced local draft is preferred over
the remote copy, as the editor would show it.`,
	RunE: runPDF,
}

func init() {
	pdfCmd.Flags().StringVar(&pdfFlags.org, "org", "", "organization id (required)")
	pdfCmd.Flags().StringVar(&pdfFlags.report, "report", "", "report id (required)")
	pdfCmd.Flags().StringVarP(&pdfFlags.out, "out", "o", "", "output file (default reg44_<report>.pdf)")
	_ = pdfCmd.MarkFlagRequired("org")
	_ = pdfCmd.MarkFlagRequired("report")
}

func runPDF(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	var (
		data   *report.ReportData
		status = models.ReportStatusDraft
	)
	var row models.Report
	rowErr := e.remote.WithContext(ctx).
		Scopes(database.ForOrganization(pdfFlags.org)).
		Where("id = ?", pdfFlags.report).
		Take(&row).Error
	if rowErr == nil {
		status = row.Status
		d := row.Data.Data()
		data = &d
	}

	draft, err := e.store.LoadDraft(ctx, pdfFlags.report)
	switch {
	case err == nil && draft.OrganizationID == pdfFlags.org:
		data = &draft.Data
	case err != nil && !errors.Is(err, localstore.ErrNotFound):
		return err
	}
	if data == nil {
		return fmt.Errorf("report %s not found: %v", pdfFlags.report, rowErr)
	}
	data.ReportID = pdfFlags.report

	pdfBytes, err := printer.GenerateReportPDF(data, printer.Options{
		Reference:   strings.ToUpper(strings.TrimRight(e.cfg.BaseURL, "/") + "/r/" + pdfFlags.report),
		GeneratedAt: time.Now(),
		Status:      status,
	})
	if err != nil {
		return err
	}

	out := pdfFlags.out
	if out == "" {
		out = "reg44_" + pdfFlags.report + ".pdf"
	}
	if err := os.WriteFile(out, pdfBytes, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "📄 Wrote %s (%d bytes)\n", out, len(pdfBytes))
	return nil
}
