package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type listFixture struct {
	store     *fakeStore
	exporter  *fakeExporter
	artifacts *memArtifacts
	metrics   *observability.Metrics
	ctrl      *service.InvoiceListController
}

func newListFixture(t *testing.T, factures ...domain.Facture) *listFixture {
	t.Helper()
	f := &listFixture{
		store:     &fakeStore{factures: factures},
		exporter:  &fakeExporter{},
		artifacts: newMemArtifacts(),
		metrics:   observability.NewMetrics(),
	}
	f.ctrl = service.NewInvoiceListController(f.store, f.exporter, f.artifacts, domain.Identity{UserID: owner}, f.metrics, zap.NewNop())
	require.NoError(t, f.ctrl.LoadFactures(context.Background()))
	return f
}

func threeFactures() []domain.Facture {
	return []domain.Facture{
		facture(1, day(2026, time.October, 1), "100.00", false),
		facture(2, day(2026, time.October, 2), "20.50", true),
		facture(3, day(2026, time.October, 3), "7.25", false),
	}
}

func ids(view domain.FactureListView) []int64 {
	out := make([]int64, 0, len(view.Factures))
	for _, f := range view.Factures {
		out = append(out, f.ID)
	}
	return out
}

func TestInvoiceList_LoadAppliesFilters(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	ctx := context.Background()

	require.NoError(t, fx.ctrl.SetImportedFilter(ctx, domain.NotImportedOnly))
	assert.Equal(t, []int64{1, 3}, ids(fx.ctrl.View()))

	require.NoError(t, fx.ctrl.SetDateRange(ctx, domain.DateRange{Start: day(2026, time.October, 2)}))
	assert.Equal(t, []int64{3}, ids(fx.ctrl.View()))

	last := fx.store.queries[len(fx.store.queries)-1]
	assert.Equal(t, domain.NotImportedOnly, last.Imported)
	assert.Equal(t, "2026-10-02", last.Range.Start.String())
	assert.True(t, last.Range.End.IsZero())
}

func TestInvoiceList_QueryErrorKeepsList(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.store.setQueryErr(errors.New("timeout"))

	err := fx.ctrl.SetImportedFilter(context.Background(), domain.ImportedOnly)

	var qErr *domain.ErrQuery
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, []int64{1, 2, 3}, ids(fx.ctrl.View()))
}

func TestInvoiceList_ResetFilters(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	ctx := context.Background()
	require.NoError(t, fx.ctrl.SetFilters(ctx, domain.FilterState{
		Imported: domain.ImportedOnly,
		Range:    domain.DateRange{Start: day(2026, time.October, 2), End: day(2026, time.October, 2)},
	}))
	require.Equal(t, []int64{2}, ids(fx.ctrl.View()))

	require.NoError(t, fx.ctrl.ResetFilters(ctx))

	view := fx.ctrl.View()
	assert.True(t, view.Filters.IsEmpty())
	assert.Equal(t, []int64{1, 2, 3}, ids(view))
}

func TestInvoiceList_ToggleSelection(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)

	fx.ctrl.ToggleSelection(2)
	assert.Equal(t, []int64{2}, fx.ctrl.View().SelectedIDs)
	assert.True(t, fx.ctrl.View().ExportEnabled)

	fx.ctrl.ToggleSelection(2)
	assert.Empty(t, fx.ctrl.View().SelectedIDs)
	assert.False(t, fx.ctrl.View().ExportEnabled)
}

func TestInvoiceList_ToggleSelectAllTwiceRestoresSelection(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)

	// from empty
	fx.ctrl.ToggleSelectAll()
	assert.Equal(t, []int64{1, 2, 3}, fx.ctrl.View().SelectedIDs)
	assert.True(t, fx.ctrl.View().AllSelected)
	fx.ctrl.ToggleSelectAll()
	assert.Empty(t, fx.ctrl.View().SelectedIDs)

	// from all selected
	fx.ctrl.ToggleSelectAll()
	fx.ctrl.ToggleSelectAll()
	fx.ctrl.ToggleSelectAll()
	assert.Equal(t, []int64{1, 2, 3}, fx.ctrl.View().SelectedIDs)
}

func TestInvoiceList_ToggleSelectAllIsListScoped(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.ctrl.ToggleSelection(2)
	require.NoError(t, fx.ctrl.SetImportedFilter(context.Background(), domain.NotImportedOnly))

	fx.ctrl.ToggleSelectAll()

	assert.Equal(t, []int64{1, 3}, fx.ctrl.View().SelectedIDs)
}

func TestInvoiceList_ExportEmptySelection(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)

	result, err := fx.ctrl.ExportSelected(context.Background())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Equal(t, 0, fx.exporter.callCount())
	assert.Empty(t, fx.store.markCalls())
}

func TestInvoiceList_ExportSelectionNotInList(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.ctrl.ToggleSelection(99)

	_, err := fx.ctrl.ExportSelected(context.Background())

	assert.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Equal(t, 0, fx.exporter.callCount())
	assert.Empty(t, fx.store.markCalls())
}

func TestInvoiceList_ExportSuccess(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.ctrl.ToggleSelection(3)
	fx.ctrl.ToggleSelection(1)
	fx.ctrl.ToggleSelection(42) // not listed, ignored
	queriesBefore := fx.store.queryCount()

	result, err := fx.ctrl.ExportSelected(context.Background())
	require.NoError(t, err)

	// one file, rows in list order
	require.Equal(t, 1, fx.exporter.callCount())
	call := fx.exporter.calls[0]
	assert.Equal(t, domain.ExportSheetName, call.sheet)
	assert.Equal(t, domain.ExportColumns, call.columns)
	require.Len(t, call.rows, 2)
	assert.Equal(t, "01/10/2026", call.rows[0][domain.ColumnDate])
	assert.Equal(t, "100.00 €", call.rows[0][domain.ColumnAmount])
	assert.Equal(t, domain.StatusNotImportedLabel, call.rows[0][domain.ColumnStatus])
	assert.Equal(t, "7.25 €", call.rows[1][domain.ColumnAmount])

	// one batched update with exactly the exported ids
	assert.Equal(t, [][]int64{{1, 3}}, fx.store.markCalls())

	assert.True(t, result.MarkedImported)
	assert.Equal(t, 2, result.Count)
	assert.Empty(t, result.Error)

	view := fx.ctrl.View()
	assert.Empty(t, view.SelectedIDs, "selection is cleared")
	assert.Equal(t, queriesBefore+1, fx.store.queryCount(), "list is reloaded")
	for _, f := range view.Factures {
		assert.True(t, f.Imported, "facture %d should be imported", f.ID)
	}

	a, err := fx.ctrl.Download(context.Background(), result.ExportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportFileName, a.FileName)

	snap := fx.metrics.GetExportSnapshot()
	assert.Equal(t, float64(1), snap.ExportsSucceeded)
	assert.Equal(t, float64(2), snap.RecordsExported)
}

func TestInvoiceList_ExportFailureLeavesStoreUntouched(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.exporter.err = errors.New("disk full")
	fx.ctrl.ToggleSelection(1)

	result, err := fx.ctrl.ExportSelected(context.Background())

	assert.Nil(t, result)
	var exErr *domain.ErrExport
	require.ErrorAs(t, err, &exErr)
	assert.Empty(t, fx.store.markCalls())
	assert.Equal(t, []int64{1}, fx.ctrl.View().SelectedIDs)
}

func TestInvoiceList_UpdateFailureThenConfirm(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.store.setMarkErr(errors.New("connection reset"))
	fx.ctrl.ToggleSelection(1)
	fx.ctrl.ToggleSelection(3)
	queriesBefore := fx.store.queryCount()

	result, err := fx.ctrl.ExportSelected(context.Background())

	var updErr *domain.ErrUpdate
	require.ErrorAs(t, err, &updErr)
	require.NotNil(t, result, "the produced file is still returned")
	assert.False(t, result.MarkedImported)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, []int64{1, 3}, updErr.IDs)
	assert.Equal(t, result.ExportID, updErr.ExportID)

	view := fx.ctrl.View()
	assert.Equal(t, []int64{1, 3}, view.SelectedIDs, "selection unchanged")
	assert.Equal(t, queriesBefore, fx.store.queryCount(), "no reload")
	assert.False(t, view.Factures[0].Imported)

	_, err = fx.ctrl.Download(context.Background(), result.ExportID)
	require.NoError(t, err, "file stays downloadable")

	pending := fx.ctrl.PendingExports()
	require.Len(t, pending, 1)
	assert.Equal(t, result.ExportID, pending[0].ExportID)

	// backend is back
	fx.store.setMarkErr(nil)
	confirmed, err := fx.ctrl.ConfirmImport(context.Background(), result.ExportID)
	require.NoError(t, err)
	assert.True(t, confirmed.MarkedImported)
	assert.Equal(t, [][]int64{{1, 3}, {1, 3}}, fx.store.markCalls())
	assert.Empty(t, fx.ctrl.PendingExports())
	assert.Empty(t, fx.ctrl.View().SelectedIDs)
	assert.True(t, fx.ctrl.View().Factures[0].Imported)

	_, err = fx.ctrl.ConfirmImport(context.Background(), result.ExportID)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestInvoiceList_ExportIsSingleFlight(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.exporter.block = make(chan struct{})
	fx.ctrl.ToggleSelection(1)

	done := make(chan error, 1)
	go func() {
		_, err := fx.ctrl.ExportSelected(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return fx.ctrl.View().Exporting }, time.Second, 5*time.Millisecond)
	assert.False(t, fx.ctrl.View().ExportEnabled)

	_, err := fx.ctrl.ExportSelected(context.Background())
	assert.ErrorIs(t, err, domain.ErrExportInProgress)

	close(fx.exporter.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fx.exporter.callCount())
}

func TestInvoiceList_StaleLoadDiscarded(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	arrived := make(chan struct{})
	release := make(chan struct{})
	fx.store.gate = func(filter domain.FilterState) {
		if filter.Imported == domain.ImportedOnly {
			close(arrived)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		_ = fx.ctrl.SetImportedFilter(context.Background(), domain.ImportedOnly)
		close(done)
	}()
	<-arrived

	require.NoError(t, fx.ctrl.SetImportedFilter(context.Background(), domain.NotImportedOnly))
	close(release)
	<-done

	assert.Equal(t, []int64{1, 3}, ids(fx.ctrl.View()))
}

func TestInvoiceList_DownloadIsOwnerScoped(t *testing.T) {
	fx := newListFixture(t, threeFactures()...)
	fx.ctrl.ToggleSelection(1)
	result, err := fx.ctrl.ExportSelected(context.Background())
	require.NoError(t, err)

	other := service.NewInvoiceListController(fx.store, fx.exporter, fx.artifacts, domain.Identity{UserID: "user-2"}, fx.metrics, zap.NewNop())
	_, err = other.Download(context.Background(), result.ExportID)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}
