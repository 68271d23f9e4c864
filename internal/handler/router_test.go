package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/handler"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/artifacts"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/memstore"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/spreadsheet"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================================
// Operational endpoints
// ============================================================

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var health domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) (time.Duration, error) {
	return 5 * time.Millisecond, errors.New("connection refused")
}

func TestHealthz_DegradedBackend(t *testing.T) {
	router := handler.NewRouter(nil, nil, failingPinger{}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "", nil)

	var health domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	require.Len(t, health.Services, 2)
	assert.Equal(t, "supabase", health.Services[1].Name)
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthUnavailableWithoutService(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodPost, "/v1/auth/signin", "", map[string]string{"email": "a@b.fr"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ============================================================
// Application routes, backed by the in-memory store
// ============================================================

type testApp struct {
	router http.Handler
	store  *memstore.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store := memstore.New("handler-test-secret", logger)
	arts := artifacts.NewMemoryStore(time.Hour)
	t.Cleanup(arts.Close)

	workspaces := service.NewWorkspaces(store, spreadsheet.NewExporter(domain.ExportFileName, logger), arts, time.Hour, nil, metrics, logger)
	t.Cleanup(workspaces.Close)

	authSvc := service.NewAuthService(store, workspaces, logger)
	return &testApp{
		router: handler.NewRouter(workspaces, authSvc, nil, metrics, logger),
		store:  store,
	}
}

// signIn registers email and returns its session.
func (a *testApp) signIn(t *testing.T, email string) domain.Session {
	t.Helper()
	creds := domain.Credentials{Email: email, Password: "chantier42"}

	rec := do(t, a.router, http.MethodPost, "/v1/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, a.router, http.MethodPost, "/v1/auth/signin", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)
	return session
}

func (a *testApp) seed(owner string) {
	a.store.Insert(
		facture(1, owner, "2026-10-05", "1200.00", false),
		facture(2, owner, "2026-10-12", "800.50", false),
		facture(3, owner, "2026-09-20", "300.00", true),
	)
}

func facture(id int64, owner, date, amount string, imported bool) domain.Facture {
	d, _ := domain.ParseDate(date)
	return domain.Facture{
		ID:          id,
		Number:      "FB-" + date,
		Date:        d,
		Description: "Travaux",
		Quantity:    1,
		TotalAmount: decimal.RequireFromString(amount),
		Imported:    imported,
		UserID:      owner,
	}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) domain.FactureListView {
	t.Helper()
	var view domain.FactureListView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view), rec.Body.String())
	return view
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app.router, http.MethodGet, "/v1/factures", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, app.router, http.MethodGet, "/v1/dashboard", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignIn_WrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.signIn(t, "artisan@example.fr")

	rec := do(t, app.router, http.MethodPost, "/v1/auth/signin", "",
		domain.Credentials{Email: "artisan@example.fr", Password: "wrong-password"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestSignOut_RevokesToken(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")

	rec := do(t, app.router, http.MethodPost, "/v1/auth/signout", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, app.router, http.MethodGet, "/v1/factures", session.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFactures_FilterSelectExportDownload(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")
	app.seed(session.UserID)

	rec := do(t, app.router, http.MethodGet, "/v1/factures", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeList(t, rec)
	require.Len(t, view.Factures, 3)
	assert.Equal(t, int64(2), view.Factures[0].ID, "newest first")
	assert.False(t, view.ExportEnabled)

	rec = do(t, app.router, http.MethodPut, "/v1/factures/filters", session.AccessToken,
		map[string]any{"imported": false, "startDate": "", "endDate": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decodeList(t, rec)
	require.Len(t, view.Factures, 2)

	rec = do(t, app.router, http.MethodPost, "/v1/factures/selection/toggle-all", session.AccessToken, nil)
	view = decodeList(t, rec)
	assert.True(t, view.AllSelected)
	assert.Equal(t, []int64{1, 2}, view.SelectedIDs)
	assert.True(t, view.ExportEnabled)

	rec = do(t, app.router, http.MethodPost, "/v1/factures/export", session.AccessToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result domain.ExportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.MarkedImported)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "/v1/exports/"+result.ExportID+"/download", result.DownloadURL)

	// The not-imported view is now empty and the selection cleared.
	rec = do(t, app.router, http.MethodGet, "/v1/factures", session.AccessToken, nil)
	view = decodeList(t, rec)
	assert.Empty(t, view.Factures)
	assert.Empty(t, view.SelectedIDs)

	rec = do(t, app.router, http.MethodGet, result.DownloadURL, session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), domain.ExportFileName)
	assert.NotZero(t, rec.Body.Len())

	rec = do(t, app.router, http.MethodGet, "/v1/metrics/exports", "", nil)
	var snap domain.ExportMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, float64(1), snap.ExportsSucceeded)
	assert.Equal(t, float64(2), snap.RecordsExported)
}

func TestFactures_ResetAndToggleOne(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")
	app.seed(session.UserID)

	rec := do(t, app.router, http.MethodPut, "/v1/factures/filters", session.AccessToken,
		map[string]any{"imported": true})
	require.Len(t, decodeList(t, rec).Factures, 1)

	rec = do(t, app.router, http.MethodPost, "/v1/factures/filters/reset", session.AccessToken, nil)
	view := decodeList(t, rec)
	assert.Len(t, view.Factures, 3)
	assert.Equal(t, domain.ImportedAny, view.Filters.Imported)

	rec = do(t, app.router, http.MethodPost, "/v1/factures/selection/3/toggle", session.AccessToken, nil)
	assert.Equal(t, []int64{3}, decodeList(t, rec).SelectedIDs)

	rec = do(t, app.router, http.MethodPost, "/v1/factures/selection/3/toggle", session.AccessToken, nil)
	assert.Empty(t, decodeList(t, rec).SelectedIDs)

	rec = do(t, app.router, http.MethodPost, "/v1/factures/selection/abc/toggle", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactures_InvalidFilterDate(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")

	rec := do(t, app.router, http.MethodPut, "/v1/factures/filters", session.AccessToken,
		map[string]any{"startDate": "19/10/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport_EmptySelection(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")
	app.seed(session.UserID)

	rec := do(t, app.router, http.MethodPost, "/v1/factures/export", session.AccessToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExports_ConfirmUnknown(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")

	rec := do(t, app.router, http.MethodPost, "/v1/exports/does-not-exist/confirm", session.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app.router, http.MethodGet, "/v1/exports/pending", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":[]}`, rec.Body.String())
}

func TestDownload_IsScopedToOwner(t *testing.T) {
	app := newTestApp(t)
	alice := app.signIn(t, "alice@example.fr")
	bob := app.signIn(t, "bob@example.fr")
	app.seed(alice.UserID)

	do(t, app.router, http.MethodPost, "/v1/factures/selection/toggle-all", alice.AccessToken, nil)
	rec := do(t, app.router, http.MethodPost, "/v1/factures/export", alice.AccessToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result domain.ExportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = do(t, app.router, http.MethodGet, result.DownloadURL, bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app.router, http.MethodGet, "/v1/factures", bob.AccessToken, nil)
	assert.Empty(t, decodeList(t, rec).Factures)
}

func TestDashboard_CustomRange(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")
	app.seed(session.UserID)

	rec := do(t, app.router, http.MethodGet, "/v1/dashboard", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app.router, http.MethodPut, "/v1/dashboard/custom-range", session.AccessToken,
		map[string]string{"bound": "start", "value": "2026-10-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, app.router, http.MethodPut, "/v1/dashboard/custom-range", session.AccessToken,
		map[string]string{"bound": "endDate", "value": "2026-10-31"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view domain.DashboardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 2, view.Custom.Stats.Total)
	assert.Equal(t, 0, view.Custom.Stats.Imported)
	assert.True(t, view.Custom.Stats.TotalAmount.Equal(decimal.RequireFromString("2000.50")))

	rec = do(t, app.router, http.MethodPut, "/v1/dashboard/custom-range", session.AccessToken,
		map[string]string{"bound": "middle", "value": "2026-10-31"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_ReflectsExport(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "artisan@example.fr")
	today := domain.DateOf(time.Now()).String()
	app.store.Insert(
		facture(10, session.UserID, today, "450.00", false),
		facture(11, session.UserID, today, "150.00", false),
	)

	rec := do(t, app.router, http.MethodGet, "/v1/dashboard", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before domain.DashboardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, 2, before.Weekly.Stats.NotImported)

	do(t, app.router, http.MethodPost, "/v1/factures/selection/toggle-all", session.AccessToken, nil)
	rec = do(t, app.router, http.MethodPost, "/v1/factures/export", session.AccessToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, app.router, http.MethodGet, "/v1/dashboard", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after domain.DashboardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))

	for name, rs := range map[string]domain.RangeStats{"weekly": after.Weekly, "monthly": after.Monthly} {
		assert.Equal(t, 2, rs.Stats.Total, name)
		assert.Equal(t, 2, rs.Stats.Imported, name)
		assert.Equal(t, 0, rs.Stats.NotImported, name)
	}
}
