package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print facture statistics for a date range",
	Example: `  # Current week (Monday to Sunday)
  facturectl stats --week

  # Explicit range as JSON
  facturectl stats --from 2026-10-01 --to 2026-10-31 --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	statsCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	statsCmd.Flags().Bool("week", false, "Use the current week")
	statsCmd.Flags().Bool("month", false, "Use the current month")
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.MarkFlagsMutuallyExclusive("week", "month", "from")
	statsCmd.MarkFlagsMutuallyExclusive("week", "month", "to")
}

func runStats(cmd *cobra.Command, _ []string) error {
	week, _ := cmd.Flags().GetBool("week")
	month, _ := cmd.Flags().GetBool("month")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var rng domain.DateRange
	switch {
	case week:
		rng = service.WeekRange(time.Now())
	case month:
		rng = service.MonthRange(time.Now())
	default:
		var err error
		if rng, err = rangeFlags(cmd); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	sess, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.logger.Sync()

	factures, err := sess.store.QueryFactures(ctx, sess.identity.UserID, domain.FilterState{Range: rng})
	if err != nil {
		return &domain.ErrQuery{Err: err}
	}
	stats := service.Aggregate(factures)
	sess.logger.Info("stats computed",
		zap.String("start", rng.Start.String()),
		zap.String("end", rng.End.String()),
		zap.Int("total", stats.Total),
	)

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(domain.RangeStats{Range: rng, Stats: stats, AmountLabel: domain.FormatAmount(stats.TotalAmount)})
	}
	return printStats(out, rng, stats)
}

func printStats(w io.Writer, rng domain.DateRange, stats domain.InvoiceStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Période\t%s\n", rangeLabel(rng))
	fmt.Fprintf(tw, "Factures\t%d\n", stats.Total)
	fmt.Fprintf(tw, "Importées\t%d\n", stats.Imported)
	fmt.Fprintf(tw, "Non importées\t%d\n", stats.NotImported)
	fmt.Fprintf(tw, "Montant total\t%s\n", domain.FormatAmount(stats.TotalAmount))
	return tw.Flush()
}

func rangeLabel(rng domain.DateRange) string {
	start, end := rng.Start.LongLabel(), rng.End.LongLabel()
	switch {
	case start == "" && end == "":
		return "toutes dates"
	case start == "":
		return "jusqu'au " + end
	case end == "":
		return "depuis le " + start
	}
	return start + " - " + end
}
