package domain

import (
	"github.com/shopspring/decimal"
)

// ============================================================
// Factures (table facture_btp)
// ============================================================

// Facture is one construction invoice as stored in the facture_btp table.
// Rows are created by an external ingestion process; this service only
// reads them and flips the importe flag.
type Facture struct {
	ID          int64           `json:"id"`
	Number      string          `json:"nfacture"`
	Date        Date            `json:"date_facture"`
	Description string          `json:"description"`
	Quantity    float64         `json:"quantite"`
	TotalAmount decimal.Decimal `json:"montant_total"`
	Imported    bool            `json:"importe"`
	URL         string          `json:"url_facture"`
	UserID      string          `json:"user_id"`
}

// Localized labels used in the table and in exports.
const (
	StatusImportedLabel    = "Importée"
	StatusNotImportedLabel = "Non importée"
)

// StatusLabel returns the localized import status of f.
func (f Facture) StatusLabel() string {
	if f.Imported {
		return StatusImportedLabel
	}
	return StatusNotImportedLabel
}

// FormatAmount renders a currency amount with two decimals and the euro suffix.
// Rounding happens here and nowhere else.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " €"
}

// FactureView is a table row: the stored record plus display fields.
type FactureView struct {
	Facture
	DateLabel   string `json:"dateLabel"`
	AmountLabel string `json:"amountLabel"`
	StatusLabel string `json:"statusLabel"`
	Selected    bool   `json:"selected"`
}

// NewFactureView builds the display row for f.
func NewFactureView(f Facture, selected bool) FactureView {
	return FactureView{
		Facture:     f,
		DateLabel:   f.Date.LongLabel(),
		AmountLabel: FormatAmount(f.TotalAmount),
		StatusLabel: f.StatusLabel(),
		Selected:    selected,
	}
}

// FilterState drives which records the invoice list requests.
type FilterState struct {
	Imported ImportedFilter `json:"imported"`
	Range    DateRange      `json:"range"`
}

// IsEmpty reports whether no constraint is set.
func (f FilterState) IsEmpty() bool {
	return f.Imported == ImportedAny && f.Range.Start.IsZero() && f.Range.End.IsZero()
}

// FactureListView is returned by GET /v1/factures.
type FactureListView struct {
	Filters       FilterState   `json:"filters"`
	Factures      []FactureView `json:"factures"`
	SelectedIDs   []int64       `json:"selectedIds"`
	AllSelected   bool          `json:"allSelected"`
	ExportEnabled bool          `json:"exportEnabled"`
	Exporting     bool          `json:"exporting"`
}
