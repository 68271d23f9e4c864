package service

import (
	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// Aggregate computes counts and the amount total over factures.
// Amounts are summed exactly; rounding is left to display.
func Aggregate(factures []domain.Facture) domain.InvoiceStats {
	stats := domain.InvoiceStats{
		Total:       len(factures),
		TotalAmount: decimal.Zero,
	}
	for _, f := range factures {
		if f.Imported {
			stats.Imported++
		}
		stats.TotalAmount = stats.TotalAmount.Add(f.TotalAmount)
	}
	stats.NotImported = stats.Total - stats.Imported
	return stats
}

func rangeStats(r domain.DateRange, s domain.InvoiceStats) domain.RangeStats {
	return domain.RangeStats{
		Range:       r,
		Stats:       s,
		AmountLabel: domain.FormatAmount(s.TotalAmount),
	}
}
