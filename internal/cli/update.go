package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/systemet/internal/catalog"
	"github.com/roach88/systemet/internal/reconcile"
	"github.com/roach88/systemet/internal/syncrun"
	"github.com/roach88/systemet/internal/telemetry"
)

// UpdateResult is the printed outcome of a sync run.
type UpdateResult struct {
	RunID           string             `json:"run_id"`
	State           string             `json:"state"`
	PagesTotal      int                `json:"pages_total"`
	PagesDone       int                `json:"pages_done"`
	PagesFailed     int                `json:"pages_failed"`
	FailedPages     []int              `json:"failed_pages,omitempty"`
	Inserted        int                `json:"inserted"`
	Updated         int                `json:"updated"`
	Unchanged       int                `json:"unchanged"`
	Skipped         int                `json:"skipped"`
	Invalid         int                `json:"invalid"`
	Failed          int                `json:"failed"`
	DurationSeconds float64            `json:"duration_seconds"`
	Changes         []reconcile.Change `json:"changes"`
}

func newUpdateResult(sum syncrun.Summary) UpdateResult {
	r := UpdateResult{
		RunID:           sum.RunID,
		State:           sum.State.String(),
		PagesTotal:      sum.PagesTotal,
		PagesDone:       sum.PagesDone,
		PagesFailed:     sum.PagesFailed,
		Inserted:        sum.Result.Inserted,
		Updated:         sum.Result.Updated,
		Unchanged:       sum.Result.Unchanged,
		Skipped:         sum.Result.Skipped,
		Invalid:         sum.Result.Invalid,
		Failed:          len(sum.Result.Failures),
		DurationSeconds: sum.Duration().Seconds(),
		Changes:         sum.Result.Changes,
	}
	if r.Changes == nil {
		r.Changes = []reconcile.Change{}
	}
	for _, pe := range sum.PageErrors {
		r.FailedPages = append(r.FailedPages, pe.Page)
	}
	return r
}

func (r UpdateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sync %s %s in %.1fs\n", r.RunID, r.State, r.DurationSeconds)
	fmt.Fprintf(&b, "Pages:    %d total, %d reconciled, %d failed\n", r.PagesTotal, r.PagesDone, r.PagesFailed)
	if len(r.FailedPages) > 0 {
		fmt.Fprintf(&b, "Failed pages: %v\n", r.FailedPages)
	}
	fmt.Fprintf(&b, "Products: %d new, %d changed, %d unchanged, %d skipped, %d invalid, %d failed",
		r.Inserted, r.Updated, r.Unchanged, r.Skipped, r.Invalid, r.Failed)

	if len(r.Changes) > 0 {
		b.WriteString("\n\nPrice changes:")
		for _, c := range r.Changes {
			b.WriteString("\n  " + c.String())
		}
	}
	return b.String()
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Fetch the catalog and record price changes",
		Long: `Fetch every catalog page and reconcile it into the database.

New products are inserted, changed prices are appended to the price history
and unchanged prices are left alone, so running update twice in a row is
harmless. A failed page is skipped and counted; a failed first page aborts
the run before anything is written.

Example:
  systemet update
  systemet update --db ./products.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, cmd)
		},
	}
}

func runUpdate(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := opts.Logger

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer closeStore(opts, st)

	source := opts.Source
	if source == nil {
		api := opts.Config.API
		source, err = catalog.NewHTTPSource(catalog.HTTPSourceOptions{
			BaseURL:           api.BaseURL,
			APIKey:            api.APIKey,
			PageSize:          api.PageSize,
			MaxRetries:        api.MaxRetries,
			RetryDelay:        api.RetryDelay,
			Timeout:           api.Timeout,
			RequestsPerSecond: api.RequestsPerSecond,
			UserAgent:         api.UserAgent,
			Logger:            logger,
		})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeSource, "failed to create catalog source", err)
		}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := opts.Config.Telemetry
	provider, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint:   tel.OTLPEndpoint,
		OTLPInsecure:   tel.OTLPInsecure,
		MetricInterval: tel.MetricInterval,
	})
	if err != nil {
		// Metrics are optional; the sync runs without them.
		logger.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	metrics, err := telemetry.NewSyncMetrics(provider.Meter())
	if err != nil {
		logger.Warn("sync metrics unavailable", "error", err)
	}

	clock := clockOf(opts)
	engine := reconcile.New(st, reconcile.WithClock(clock), reconcile.WithLogger(logger))
	driverOpts := []syncrun.Option{
		syncrun.WithClock(clock),
		syncrun.WithLogger(logger),
		syncrun.WithMetrics(metrics),
		syncrun.WithObserver(func(tr syncrun.Transition) {
			// idle and the final state are covered by the summary.
			if tr.State == syncrun.StateIdle || tr.State.Terminal() {
				return
			}
			f.VerboseLog("sync: %s", tr)
		}),
	}
	if opts.RunIDs != nil {
		driverOpts = append(driverOpts, syncrun.WithRunIDGenerator(opts.RunIDs))
	}
	driver := syncrun.New(source, engine, st, driverOpts...)

	sum, err := driver.Run(ctx)
	f.RunID = sum.RunID
	switch {
	case syncrun.IsAborted(err):
		return f.Fail(ExitFailure, ErrCodeSyncAborted, "sync aborted", err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return f.Fail(ExitFailure, ErrCodeCancelled, "sync cancelled", err)
	case err != nil:
		return f.Fail(ExitFailure, ErrCodeGeneric, "sync failed", err)
	}

	return f.Success(newUpdateResult(sum))
}
