package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/cache"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var wsTracer = otel.Tracer("service/workspaces")

// Workspace is the server-side state of one signed-in user: their
// dashboard and their facture table.
type Workspace struct {
	Dashboard *DateRangeController
	Factures  *InvoiceListController

	mount sync.Once
}

// Close detaches both controllers.
func (w *Workspace) Close() {
	w.Dashboard.Close()
	w.Factures.Close()
}

// Workspaces keeps one Workspace per user id. Idle workspaces expire
// after the configured TTL and are closed on eviction.
type Workspaces struct {
	store     port.FactureStore
	exporter  port.SpreadsheetExporter
	artifacts port.ArtifactStore
	now       func() time.Time
	metrics   *observability.Metrics
	logger    *zap.Logger

	mu    sync.Mutex
	cache *cache.InMemory[*Workspace]
}

// NewWorkspaces creates the registry. now may be nil.
func NewWorkspaces(store port.FactureStore, exporter port.SpreadsheetExporter, artifacts port.ArtifactStore, ttl time.Duration, now func() time.Time, metrics *observability.Metrics, logger *zap.Logger) *Workspaces {
	w := &Workspaces{
		store:     store,
		exporter:  exporter,
		artifacts: artifacts,
		now:       now,
		metrics:   metrics,
		logger:    logger,
	}
	w.cache = cache.NewWithEviction(ttl, func(userID string, ws *Workspace) {
		ws.Close()
		logger.Debug("workspace closed", zap.String("user_id", userID))
	})
	return w
}

// Open returns the workspace of identity, creating and loading it on first
// use. The first load mirrors opening the app: all dashboard windows and
// the unfiltered table are fetched.
func (w *Workspaces) Open(ctx context.Context, identity domain.Identity) (*Workspace, error) {
	ctx, span := wsTracer.Start(ctx, "Workspaces.Open")
	defer span.End()

	if identity.UserID == "" {
		return nil, &domain.ErrUnauthorized{Message: "no authenticated user"}
	}

	w.mu.Lock()
	ws, ok := w.cache.Get(identity.UserID)
	if ok {
		w.cache.Touch(identity.UserID)
		w.metrics.IncrCacheHit("workspace")
	} else {
		w.metrics.IncrCacheMiss("workspace")
		ws = &Workspace{
			Dashboard: NewDateRangeController(w.store, identity, w.now, w.metrics, w.logger),
			Factures:  NewInvoiceListController(w.store, w.exporter, w.artifacts, identity, w.metrics, w.logger),
		}
		w.cache.Set(identity.UserID, ws)
	}
	w.mu.Unlock()

	ws.mount.Do(func() {
		// Runs once per workspace, so it must outlive the request that triggered it.
		mountCtx := context.WithoutCancel(ctx)
		ws.Dashboard.Start(mountCtx)
		if err := ws.Factures.LoadFactures(mountCtx); err != nil {
			w.logger.Warn("initial facture load failed",
				zap.String("user_id", identity.UserID),
				zap.Error(err),
			)
		}
	})
	return ws, nil
}

// Drop closes and forgets the workspace of userID, if any.
func (w *Workspaces) Drop(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache.Delete(userID)
}

// Close stops the expiry loop.
func (w *Workspaces) Close() {
	w.cache.Close()
}
