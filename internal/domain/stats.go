package domain

import "github.com/shopspring/decimal"

// ============================================================
// Dashboard statistics
// ============================================================

// InvoiceStats aggregates a set of factures. Derived, never persisted.
type InvoiceStats struct {
	Total       int             `json:"total"`
	Imported    int             `json:"imported"`
	NotImported int             `json:"notImported"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// RangeStats pairs a window with the stats computed over it.
type RangeStats struct {
	Range       DateRange    `json:"range"`
	Stats       InvoiceStats `json:"stats"`
	AmountLabel string       `json:"amountLabel"`
}

// DashboardView is returned by GET /v1/dashboard.
type DashboardView struct {
	Weekly  RangeStats `json:"weekly"`
	Monthly RangeStats `json:"monthly"`
	Custom  RangeStats `json:"custom"`
}
