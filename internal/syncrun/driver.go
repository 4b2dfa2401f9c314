// Package syncrun drives one pass over the remote catalog.
//
// The driver fetches page 1 to learn the page count, reconciles it, then
// fetches and reconciles the remaining pages in order. A failed page after
// the first is logged, counted and skipped. A failed first page aborts the
// run before anything is written.
//
// There is no run-level lock: two drivers on the same store interleave at
// product granularity. Each product transaction is still atomic.
package syncrun

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/systemet/internal/catalog"
	"github.com/roach88/systemet/internal/reconcile"
	"github.com/roach88/systemet/internal/store"
	"github.com/roach88/systemet/internal/telemetry"
)

// RunIDGenerator produces sync run ids.
// Implemented by UUIDv7Generator (production) and testutil.FixedRunIDGenerator.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so recent runs
// sort by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Summary is the result of one run.
type Summary struct {
	RunID       string
	State       State
	StartedAt   time.Time
	FinishedAt  time.Time
	PagesTotal  int
	PagesDone   int
	PagesFailed int

	// Result merges every reconciled page in page order.
	Result reconcile.BatchResult

	// PageErrors lists the pages that were skipped.
	PageErrors []*FetchError
}

// Duration returns how long the run took.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Record converts the summary to its sync_runs row.
func (s Summary) Record() store.RunRecord {
	return store.RunRecord{
		ID:          s.RunID,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		State:       s.State.String(),
		PagesTotal:  s.PagesTotal,
		PagesFailed: s.PagesFailed,
		Inserted:    s.Result.Inserted,
		Updated:     s.Result.Updated,
		Unchanged:   s.Result.Unchanged,
		Skipped:     s.Result.Skipped + s.Result.Invalid,
		Failed:      len(s.Result.Failures),
	}
}

// Driver runs syncs from a Source into a store.
// A Driver runs one sync at a time; it is not safe for concurrent Run calls.
type Driver struct {
	source  catalog.Source
	engine  *reconcile.Engine
	store   *store.Store
	clock   reconcile.Clock
	ids     RunIDGenerator
	metrics *telemetry.SyncMetrics
	logger  *slog.Logger
	observe func(Transition)

	state Transition
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for run start and finish times.
func WithClock(c reconcile.Clock) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

// WithRunIDGenerator sets the run id source.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(d *Driver) {
		d.ids = g
	}
}

// WithMetrics records page, product and duration metrics.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithLogger sets the driver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver calls fn on every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(d *Driver) {
		d.observe = fn
	}
}

// New creates a Driver. The store is used to record finished runs; the
// engine does all product writes.
func New(source catalog.Source, engine *reconcile.Engine, s *store.Store, opts ...Option) *Driver {
	d := &Driver{
		source: source,
		engine: engine,
		store:  s,
		clock:  reconcile.SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the driver's current state.
func (d *Driver) State() Transition {
	return d.state
}

func (d *Driver) transition(s State, page int) {
	d.state = Transition{State: s, Page: page}
	d.logger.Debug("sync state", "state", d.state.String())
	if d.observe != nil {
		d.observe(d.state)
	}
}

// Run performs one sync.
//
// It returns an error only when the run aborts on page 1 (a *FetchError with
// Fatal set) or ctx is cancelled; the Summary is filled in either way.
// Failed later pages are reported in Summary.PageErrors.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	sum := Summary{
		RunID:     d.ids.Generate(),
		StartedAt: d.clock.Now(),
	}
	logger := d.logger.With("run_id", sum.RunID)

	d.transition(StateIdle, 0)
	d.transition(StateFetchingPage, 1)
	first, err := d.source.FetchPage(ctx, 1)
	if err != nil {
		if ctx.Err() != nil {
			return d.cancel(ctx, logger, sum, false)
		}
		d.metrics.RecordPage(ctx, telemetry.PageFailed)
		fetchErr := &FetchError{Page: 1, Fatal: true, Err: err}
		logger.Error("first page failed, aborting sync", "page", 1, "error", err)

		sum.PagesFailed = 1
		sum.PageErrors = append(sum.PageErrors, fetchErr)
		d.finish(ctx, logger, &sum, StateAborted)
		return sum, fetchErr
	}
	d.metrics.RecordPage(ctx, telemetry.PageOK)

	sum.PagesTotal = first.TotalPages
	if sum.PagesTotal < 1 {
		sum.PagesTotal = 1
	}
	logger.Info("sync started", "total_pages", sum.PagesTotal)

	if err := d.reconcilePage(ctx, logger, &sum, 1, first.Products); err != nil {
		return d.cancel(ctx, logger, sum, true)
	}

	for n := 2; n <= sum.PagesTotal; n++ {
		if ctx.Err() != nil {
			return d.cancel(ctx, logger, sum, true)
		}

		d.transition(StateFetchingPage, n)
		page, err := d.source.FetchPage(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return d.cancel(ctx, logger, sum, true)
			}
			d.transition(StatePageFailed, n)
			d.metrics.RecordPage(ctx, telemetry.PageFailed)
			logger.Error("page failed, continuing", "page", n, "error", err)
			sum.PagesFailed++
			sum.PageErrors = append(sum.PageErrors, &FetchError{Page: n, Err: err})
			continue
		}
		d.metrics.RecordPage(ctx, telemetry.PageOK)

		if err := d.reconcilePage(ctx, logger, &sum, n, page.Products); err != nil {
			return d.cancel(ctx, logger, sum, true)
		}
	}

	d.finish(ctx, logger, &sum, StateDone)
	return sum, nil
}

func (d *Driver) reconcilePage(ctx context.Context, logger *slog.Logger, sum *Summary, n int, products []catalog.ProductSnapshot) error {
	d.transition(StateReconciling, n)
	result, err := d.engine.Reconcile(ctx, products)
	sum.Result.Merge(result)
	d.recordProducts(ctx, result)
	if err != nil {
		return err
	}

	sum.PagesDone++
	logger.Info("page reconciled",
		"page", n,
		"total_pages", sum.PagesTotal,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged)
	return nil
}

func (d *Driver) recordProducts(ctx context.Context, r reconcile.BatchResult) {
	d.metrics.RecordProducts(ctx, reconcile.OutcomeInserted.String(), r.Inserted)
	d.metrics.RecordProducts(ctx, reconcile.OutcomeUpdated.String(), r.Updated)
	d.metrics.RecordProducts(ctx, reconcile.OutcomeUnchanged.String(), r.Unchanged)
	d.metrics.RecordProducts(ctx, reconcile.OutcomeSkipped.String(), r.Skipped)
	d.metrics.RecordProducts(ctx, reconcile.OutcomeInvalid.String(), r.Invalid)
	d.metrics.RecordProducts(ctx, "failed", len(r.Failures))
}

// cancel ends a run whose context was cancelled. Runs that reconciled
// anything are still recorded.
func (d *Driver) cancel(ctx context.Context, logger *slog.Logger, sum Summary, wrote bool) (Summary, error) {
	logger.Warn("sync cancelled", "pages_done", sum.PagesDone)
	d.finish(ctx, logger, &sum, StateCancelled)
	if wrote && sum.Result.Processed() > 0 {
		// ctx is done; the run log write uses a fresh context.
		d.record(context.WithoutCancel(ctx), logger, sum)
	}
	return sum, ctx.Err()
}

func (d *Driver) finish(ctx context.Context, logger *slog.Logger, sum *Summary, s State) {
	sum.State = s
	sum.FinishedAt = d.clock.Now()
	d.transition(s, 0)
	d.metrics.RecordRun(context.WithoutCancel(ctx), s.String(), sum.Duration())

	if s != StateDone {
		return
	}
	logger.Info("sync finished",
		"pages_total", sum.PagesTotal,
		"pages_failed", sum.PagesFailed,
		"inserted", sum.Result.Inserted,
		"updated", sum.Result.Updated,
		"unchanged", sum.Result.Unchanged,
		"failed", len(sum.Result.Failures))
	d.record(ctx, logger, *sum)
}

func (d *Driver) record(ctx context.Context, logger *slog.Logger, sum Summary) {
	if d.store == nil {
		return
	}
	if err := d.store.RecordRun(ctx, sum.Record()); err != nil {
		logger.Error("failed to record sync run", "error", err)
	}
}

// IsAborted reports whether err is a fatal fetch error from Run.
func IsAborted(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Fatal
}
