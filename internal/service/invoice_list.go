package service

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var listTracer = otel.Tracer("service/factures")

// InvoiceListController owns one user's facture table: filters, loaded
// records, selection, and the export-then-mark-imported workflow.
type InvoiceListController struct {
	store     port.FactureStore
	exporter  port.SpreadsheetExporter
	artifacts port.ArtifactStore
	identity  domain.Identity
	metrics   *observability.Metrics
	logger    *zap.Logger

	mu        sync.Mutex
	filter    domain.FilterState
	factures  []domain.Facture
	selected  map[int64]struct{}
	loadToken uint64
	exporting bool
	pending   map[string]domain.PendingExport
	closed    bool
}

// NewInvoiceListController creates an empty list bound to identity.
// Call LoadFactures to populate it.
func NewInvoiceListController(store port.FactureStore, exporter port.SpreadsheetExporter, artifacts port.ArtifactStore, identity domain.Identity, metrics *observability.Metrics, logger *zap.Logger) *InvoiceListController {
	return &InvoiceListController{
		store:     store,
		exporter:  exporter,
		artifacts: artifacts,
		identity:  identity,
		metrics:   metrics,
		logger:    logger.With(zap.String("user_id", identity.UserID)),
		selected:  make(map[int64]struct{}),
		pending:   make(map[string]domain.PendingExport),
	}
}

// ============================================================
// Loading and filters
// ============================================================

// LoadFactures replaces the list with the store's records matching the
// current filters. On failure the previous list is kept. A load that
// completes after a newer one was issued is discarded.
func (c *InvoiceListController) LoadFactures(ctx context.Context) error {
	ctx, span := listTracer.Start(ctx, "InvoiceListController.LoadFactures")
	defer span.End()

	c.mu.Lock()
	c.loadToken++
	token := c.loadToken
	filter := c.filter
	c.mu.Unlock()

	start := time.Now()
	factures, err := c.store.QueryFactures(ctx, c.identity.UserID, filter)
	c.metrics.RecordRequestDuration("factures.load", time.Since(start))
	if err != nil {
		c.metrics.IncrExternalError("factures")
		c.logger.Warn("failed to load factures, keeping previous list", zap.Error(err))
		return &domain.ErrQuery{Err: err}
	}
	span.SetAttributes(attribute.Int("factures.count", len(factures)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || token != c.loadToken {
		c.metrics.IncrStaleResult("factures")
		return nil
	}
	c.factures = factures
	return nil
}

// SetImportedFilter changes the import status filter and reloads.
func (c *InvoiceListController) SetImportedFilter(ctx context.Context, f domain.ImportedFilter) error {
	c.mu.Lock()
	c.filter.Imported = f
	c.mu.Unlock()
	return c.LoadFactures(ctx)
}

// SetDateRange changes the date filter and reloads. Either bound may be unset.
func (c *InvoiceListController) SetDateRange(ctx context.Context, r domain.DateRange) error {
	c.mu.Lock()
	c.filter.Range = r
	c.mu.Unlock()
	return c.LoadFactures(ctx)
}

// SetFilters replaces both filters at once and reloads a single time.
func (c *InvoiceListController) SetFilters(ctx context.Context, f domain.FilterState) error {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	return c.LoadFactures(ctx)
}

// ResetFilters clears every filter and reloads.
func (c *InvoiceListController) ResetFilters(ctx context.Context) error {
	return c.SetFilters(ctx, domain.FilterState{})
}

// ============================================================
// Selection
// ============================================================

// ToggleSelection adds id to the selection, or removes it if present.
func (c *InvoiceListController) ToggleSelection(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
		return
	}
	c.selected[id] = struct{}{}
}

// ToggleSelectAll clears the selection when every listed facture is
// selected, and otherwise selects exactly the listed factures.
func (c *InvoiceListController) ToggleSelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allSelectedLocked() {
		c.selected = make(map[int64]struct{})
		return
	}
	c.selected = make(map[int64]struct{}, len(c.factures))
	for _, f := range c.factures {
		c.selected[f.ID] = struct{}{}
	}
}

func (c *InvoiceListController) allSelectedLocked() bool {
	for _, f := range c.factures {
		if _, ok := c.selected[f.ID]; !ok {
			return false
		}
	}
	return true
}

// View returns the table as currently held.
func (c *InvoiceListController) View() domain.FactureListView {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]domain.FactureView, 0, len(c.factures))
	for _, f := range c.factures {
		_, sel := c.selected[f.ID]
		rows = append(rows, domain.NewFactureView(f, sel))
	}

	ids := make([]int64, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return domain.FactureListView{
		Filters:       c.filter,
		Factures:      rows,
		SelectedIDs:   ids,
		AllSelected:   len(c.factures) > 0 && c.allSelectedLocked(),
		ExportEnabled: len(c.selected) > 0 && !c.exporting,
		Exporting:     c.exporting,
	}
}

// ============================================================
// Export workflow
// ============================================================

// ExportSelected writes the selected factures to a spreadsheet, then marks
// them imported in one batched update.
//
// If the spreadsheet cannot be produced nothing is changed. If the update
// fails the file is still returned alongside *domain.ErrUpdate, list and
// selection are left as they were, and the export can be finished later
// with ConfirmImport. Selected ids that are not in the current list are
// never sent to the store.
func (c *InvoiceListController) ExportSelected(ctx context.Context) (*domain.ExportResult, error) {
	ctx, span := listTracer.Start(ctx, "InvoiceListController.ExportSelected")
	defer span.End()

	c.mu.Lock()
	if c.exporting {
		c.mu.Unlock()
		return nil, domain.ErrExportInProgress
	}
	records := c.selectedRecordsLocked()
	if len(records) == 0 {
		c.mu.Unlock()
		return nil, domain.ErrEmptySelection
	}
	c.exporting = true
	c.mu.Unlock()
	defer c.endExport()

	ids := make([]int64, len(records))
	for i, f := range records {
		ids[i] = f.ID
	}
	span.SetAttributes(attribute.Int("export.count", len(ids)))

	artifact, err := c.exporter.Export(ctx, domain.ExportSheetName, domain.ExportColumns, ExportRows(records))
	if err == nil {
		artifact.OwnerID = c.identity.UserID
		err = c.artifacts.Put(ctx, artifact)
	}
	if err != nil {
		c.metrics.IncrExport(observability.ExportFailed, 0)
		c.logger.Error("export failed, store left untouched", zap.Error(err))
		return nil, &domain.ErrExport{Err: err}
	}

	result := &domain.ExportResult{
		ExportID: artifact.ID,
		FileName: artifact.FileName,
		Count:    len(ids),
		IDs:      ids,
	}
	log := c.logger.With(zap.String("export_id", artifact.ID), zap.Int("count", len(ids)))

	if err := c.store.MarkImported(ctx, c.identity.UserID, ids); err != nil {
		c.mu.Lock()
		c.pending[artifact.ID] = domain.PendingExport{ExportID: artifact.ID, IDs: ids}
		c.mu.Unlock()

		c.metrics.IncrExport(observability.ExportUpdateFailed, len(ids))
		log.Error("export produced but marking factures imported failed", zap.Error(err))
		updErr := &domain.ErrUpdate{ExportID: artifact.ID, IDs: ids, Err: err}
		result.Error = updErr.Error()
		return result, updErr
	}

	c.metrics.IncrExport(observability.ExportSucceeded, len(ids))
	log.Info("factures exported and marked imported")
	result.MarkedImported = true
	c.afterImport(ctx)
	return result, nil
}

// ConfirmImport re-issues the status update of a pending export.
func (c *InvoiceListController) ConfirmImport(ctx context.Context, exportID string) (*domain.ExportResult, error) {
	ctx, span := listTracer.Start(ctx, "InvoiceListController.ConfirmImport")
	defer span.End()
	span.SetAttributes(attribute.String("export.id", exportID))

	c.mu.Lock()
	p, ok := c.pending[exportID]
	if !ok {
		c.mu.Unlock()
		return nil, &domain.ErrNotFound{Resource: "pending export", ID: exportID}
	}
	if c.exporting {
		c.mu.Unlock()
		return nil, domain.ErrExportInProgress
	}
	c.exporting = true
	c.mu.Unlock()
	defer c.endExport()

	result := &domain.ExportResult{
		ExportID: exportID,
		FileName: domain.ExportFileName,
		Count:    len(p.IDs),
		IDs:      p.IDs,
	}

	if err := c.store.MarkImported(ctx, c.identity.UserID, p.IDs); err != nil {
		c.metrics.IncrConfirm("error")
		c.logger.Warn("confirm import failed",
			zap.String("export_id", exportID),
			zap.Error(err),
		)
		updErr := &domain.ErrUpdate{ExportID: exportID, IDs: p.IDs, Err: err}
		result.Error = updErr.Error()
		return result, updErr
	}

	c.mu.Lock()
	delete(c.pending, exportID)
	c.mu.Unlock()

	c.metrics.IncrConfirm("success")
	c.logger.Info("pending export confirmed", zap.String("export_id", exportID))
	result.MarkedImported = true
	c.afterImport(ctx)
	return result, nil
}

// PendingExports lists exports still waiting for ConfirmImport.
func (c *InvoiceListController) PendingExports() []domain.PendingExport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.PendingExport, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.PendingExport) int {
		return strings.Compare(a.ExportID, b.ExportID)
	})
	return out
}

// Download returns an artifact produced for this user.
func (c *InvoiceListController) Download(ctx context.Context, exportID string) (*domain.Artifact, error) {
	a, err := c.artifacts.Get(ctx, exportID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != c.identity.UserID {
		return nil, &domain.ErrNotFound{Resource: "export", ID: exportID}
	}
	return a, nil
}

// Close detaches the controller; later load completions are discarded.
func (c *InvoiceListController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// afterImport reloads the list and clears the selection. A failed reload
// is logged only: the update itself succeeded.
func (c *InvoiceListController) afterImport(ctx context.Context) {
	if err := c.LoadFactures(ctx); err != nil {
		c.logger.Warn("reload after import failed", zap.Error(err))
	}
	c.mu.Lock()
	c.selected = make(map[int64]struct{})
	c.mu.Unlock()
}

func (c *InvoiceListController) endExport() {
	c.mu.Lock()
	c.exporting = false
	c.mu.Unlock()
}

// selectedRecordsLocked resolves the selection against the list, in list
// order. Selected ids that are not listed are ignored.
func (c *InvoiceListController) selectedRecordsLocked() []domain.Facture {
	out := make([]domain.Facture, 0, len(c.selected))
	for _, f := range c.factures {
		if _, ok := c.selected[f.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}

// ExportRows maps factures to spreadsheet rows keyed by column header.
func ExportRows(factures []domain.Facture) []map[string]string {
	rows := make([]map[string]string, 0, len(factures))
	for _, f := range factures {
		rows = append(rows, map[string]string{
			domain.ColumnNumber:      f.Number,
			domain.ColumnDate:        f.Date.ShortLabel(),
			domain.ColumnDescription: f.Description,
			domain.ColumnQuantity:    strconv.FormatFloat(f.Quantity, 'f', -1, 64),
			domain.ColumnAmount:      domain.FormatAmount(f.TotalAmount),
			domain.ColumnStatus:      f.StatusLabel(),
		})
	}
	return rows
}
