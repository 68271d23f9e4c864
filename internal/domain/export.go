package domain

import "time"

// ============================================================
// Spreadsheet export
// ============================================================

const (
	ExportSheetName = "Factures"
	ExportFileName  = "factures_export.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Export column headers, in order.
const (
	ColumnNumber      = "N° Facture"
	ColumnDate        = "Date"
	ColumnDescription = "Description"
	ColumnQuantity    = "Quantité"
	ColumnAmount      = "Montant"
	ColumnStatus      = "Statut"
)

// ExportColumns is the fixed column order of the factures sheet.
var ExportColumns = []string{
	ColumnNumber, ColumnDate, ColumnDescription, ColumnQuantity, ColumnAmount, ColumnStatus,
}

// Artifact is a generated, downloadable file.
type Artifact struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"-"`
	OwnerID     string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PendingExport is an export whose file exists but whose ids are not yet
// confirmed as imported in the store.
type PendingExport struct {
	ExportID string  `json:"exportId"`
	IDs      []int64 `json:"ids"`
}

// ExportResult is returned by POST /v1/factures/export and the confirm action.
type ExportResult struct {
	ExportID       string  `json:"exportId"`
	FileName       string  `json:"fileName"`
	DownloadURL    string  `json:"downloadUrl,omitempty"`
	Count          int     `json:"count"`
	IDs            []int64 `json:"ids"`
	MarkedImported bool    `json:"markedImported"`
	Error          string  `json:"error,omitempty"`
}

// ExportMetrics is returned by GET /v1/metrics/exports.
type ExportMetrics struct {
	ExportsSucceeded float64 `json:"exportsSucceeded"`
	ExportsFailed    float64 `json:"exportsFailed"`
	UpdatesFailed    float64 `json:"updatesFailed"`
	RecordsExported  float64 `json:"recordsExported"`
	Confirmations    float64 `json:"confirmations"`
}
