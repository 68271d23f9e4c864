package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/artifacts"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/spreadsheet"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export factures to an xlsx file",
	Long: `Export every facture matching the filters to a spreadsheet.

With --mark-imported the exported factures are then flagged as imported,
exactly like the export button of the web app. If that update fails the
file is still written and the command exits with an error.`,
	Example: `  # Export everything not yet imported and flag it
  facturectl export --status not-imported --out factures.xlsx --mark-imported

  # Export October without touching the store
  facturectl export --from 2026-10-01 --to 2026-10-31 --out octobre.xlsx`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("status", "all", "Import status: all, imported or not-imported")
	exportCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	exportCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	exportCmd.Flags().String("out", domain.ExportFileName, "Output file")
	exportCmd.Flags().Bool("mark-imported", false, "Flag exported factures as imported")
}

func parseStatus(s string) (domain.ImportedFilter, error) {
	switch s {
	case "", "all":
		return domain.ImportedAny, nil
	case "imported":
		return domain.ImportedOnly, nil
	case "not-imported":
		return domain.NotImportedOnly, nil
	}
	return domain.ImportedAny, fmt.Errorf("invalid status %q (must be all, imported or not-imported)", s)
}

func runExport(cmd *cobra.Command, _ []string) error {
	statusFlag, _ := cmd.Flags().GetString("status")
	outPath, _ := cmd.Flags().GetString("out")
	markImported, _ := cmd.Flags().GetBool("mark-imported")

	status, err := parseStatus(statusFlag)
	if err != nil {
		return err
	}
	rng, err := rangeFlags(cmd)
	if err != nil {
		return err
	}
	filter := domain.FilterState{Imported: status, Range: rng}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	sess, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.logger.Sync()

	exporter := spreadsheet.NewExporter(domain.ExportFileName, sess.logger)

	var artifact *domain.Artifact
	var exportErr error
	if markImported {
		artifact, exportErr = exportAndMark(ctx, sess, exporter, filter)
	} else {
		artifact, exportErr = exportOnly(ctx, sess, exporter, filter)
	}
	if artifact == nil {
		return exportErr
	}

	if err := os.WriteFile(outPath, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s written\n", outPath)
	return exportErr
}

// exportOnly writes the matching factures without touching the store.
func exportOnly(ctx context.Context, sess *session, exporter *spreadsheet.Exporter, filter domain.FilterState) (*domain.Artifact, error) {
	factures, err := sess.store.QueryFactures(ctx, sess.identity.UserID, filter)
	if err != nil {
		return nil, &domain.ErrQuery{Err: err}
	}
	if len(factures) == 0 {
		return nil, domain.ErrEmptySelection
	}
	return exporter.Export(ctx, domain.ExportSheetName, domain.ExportColumns, service.ExportRows(factures))
}

// exportAndMark runs the list controller's export: select everything listed,
// produce the file, then flag the factures imported.
func exportAndMark(ctx context.Context, sess *session, exporter *spreadsheet.Exporter, filter domain.FilterState) (*domain.Artifact, error) {
	store := artifacts.NewMemoryStore(time.Hour)
	defer store.Close()

	list := service.NewInvoiceListController(sess.store, exporter, store, sess.identity, observability.NewMetrics(), sess.logger)
	defer list.Close()

	if err := list.SetFilters(ctx, filter); err != nil {
		return nil, err
	}
	list.ToggleSelectAll()

	result, err := list.ExportSelected(ctx)
	if result == nil {
		return nil, err
	}
	if err != nil {
		sess.logger.Error("factures exported but not marked imported",
			zap.String("export_id", result.ExportID),
			zap.Int("count", result.Count),
			zap.Error(err),
		)
	}

	artifact, getErr := list.Download(ctx, result.ExportID)
	if getErr != nil {
		return nil, getErr
	}
	return artifact, err
}
