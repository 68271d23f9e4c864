package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashTracer = otel.Tracer("service/dashboard")

// RangeKind names one of the three dashboard windows.
type RangeKind string

const (
	RangeWeekly  RangeKind = "weekly"
	RangeMonthly RangeKind = "monthly"
	RangeCustom  RangeKind = "custom"
)

// WeekRange returns the Monday to Sunday week containing now.
func WeekRange(now time.Time) domain.DateRange {
	today := domain.DateOf(now)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	start := today.AddDays(-sinceMonday)
	return domain.DateRange{Start: start, End: start.AddDays(6)}
}

// MonthRange returns the calendar month containing now.
func MonthRange(now time.Time) domain.DateRange {
	today := domain.DateOf(now)
	start := domain.NewDate(today.Year(), today.Month(), 1)
	end := domain.DateOf(start.Time().AddDate(0, 1, -1))
	return domain.DateRange{Start: start, End: end}
}

// rangeSlot is one window and the stats last applied to it.
// token is the latest issued request; only its completion may be applied.
type rangeSlot struct {
	rng   domain.DateRange
	stats domain.InvoiceStats
	token uint64
}

// DateRangeController owns the weekly, monthly and custom windows of one
// user's dashboard and keeps their stats in sync with the store.
type DateRangeController struct {
	store    port.FactureStore
	identity domain.Identity
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	slots  map[RangeKind]*rangeSlot
	closed bool
}

// NewDateRangeController creates a dashboard bound to identity.
// Weekly and monthly windows are computed from now; custom starts as [today, today].
func NewDateRangeController(store port.FactureStore, identity domain.Identity, now func() time.Time, metrics *observability.Metrics, logger *zap.Logger) *DateRangeController {
	if now == nil {
		now = time.Now
	}
	today := domain.DateOf(now())
	return &DateRangeController{
		store:    store,
		identity: identity,
		now:      now,
		metrics:  metrics,
		logger:   logger.With(zap.String("user_id", identity.UserID)),
		slots: map[RangeKind]*rangeSlot{
			RangeWeekly:  {rng: WeekRange(now())},
			RangeMonthly: {rng: MonthRange(now())},
			RangeCustom:  {rng: domain.DateRange{Start: today, End: today}},
		},
	}
}

// Start recomputes the weekly and monthly windows and loads all three
// windows concurrently. Each load is independent: one failing leaves the
// others untouched. Without an identity nothing is fetched.
func (c *DateRangeController) Start(ctx context.Context) {
	ctx, span := dashTracer.Start(ctx, "DateRangeController.Start")
	defer span.End()

	if c.identity.UserID == "" {
		return
	}

	now := c.now()
	c.mu.Lock()
	c.slots[RangeWeekly].rng = WeekRange(now)
	c.slots[RangeMonthly].rng = MonthRange(now)
	c.mu.Unlock()

	g, gCtx := errgroup.WithContext(ctx)
	for _, kind := range []RangeKind{RangeWeekly, RangeMonthly, RangeCustom} {
		rng, token := c.issue(kind, nil)
		if !rng.Complete() {
			continue
		}
		g.Go(func() error {
			c.load(gCtx, kind, rng, token)
			return nil
		})
	}
	_ = g.Wait()
}

// SetBound replaces one bound of the custom window and reloads it.
// An empty value clears the bound; an incomplete window is not fetched.
func (c *DateRangeController) SetBound(ctx context.Context, bound domain.Bound, value domain.Date) {
	ctx, span := dashTracer.Start(ctx, "DateRangeController.SetBound")
	defer span.End()
	span.SetAttributes(
		attribute.String("bound", string(bound)),
		attribute.String("value", value.String()),
	)

	rng, token := c.issue(RangeCustom, func(r domain.DateRange) domain.DateRange {
		return r.With(bound, value)
	})
	if !rng.Complete() {
		c.logger.Debug("custom range incomplete, fetch skipped",
			zap.String("start", rng.Start.String()),
			zap.String("end", rng.End.String()),
		)
		return
	}
	c.load(ctx, RangeCustom, rng, token)
}

// View returns the current windows and their stats.
func (c *DateRangeController) View() domain.DashboardView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := func(k RangeKind) domain.RangeStats {
		s := c.slots[k]
		return rangeStats(s.rng, s.stats)
	}
	return domain.DashboardView{
		Weekly:  view(RangeWeekly),
		Monthly: view(RangeMonthly),
		Custom:  view(RangeCustom),
	}
}

// Close detaches the controller; later completions are discarded.
func (c *DateRangeController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// issue optionally mutates the window of kind and hands out a new token.
func (c *DateRangeController) issue(kind RangeKind, mutate func(domain.DateRange) domain.DateRange) (domain.DateRange, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots[kind]
	if mutate != nil {
		s.rng = mutate(s.rng)
	}
	s.token++
	return s.rng, s.token
}

func (c *DateRangeController) load(ctx context.Context, kind RangeKind, rng domain.DateRange, token uint64) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRequestDuration("dashboard."+string(kind), time.Since(start))
	}()

	factures, err := c.store.QueryFactures(ctx, c.identity.UserID, domain.FilterState{Range: rng})
	if err != nil {
		c.metrics.IncrExternalError("factures")
		c.logger.Warn("failed to load range stats, keeping previous values",
			zap.String("range", string(kind)),
			zap.Error(&domain.ErrQuery{Err: err}),
		)
		return
	}

	c.apply(kind, token, Aggregate(factures))
}

func (c *DateRangeController) apply(kind RangeKind, token uint64, stats domain.InvoiceStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots[kind]
	if c.closed || s.token != token {
		c.metrics.IncrStaleResult(string(kind))
		c.logger.Debug("discarding stale range result",
			zap.String("range", string(kind)),
			zap.Uint64("token", token),
			zap.Uint64("latest", s.token),
		)
		return
	}
	s.stats = stats
}
