package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/systemet/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// RunsResult lists recent sync runs.
type RunsResult struct {
	SchemaVersion uint              `json:"schema_version"`
	Runs          []store.RunRecord `json:"runs"`
}

func (r RunsResult) String() string {
	var b strings.Builder
	if len(r.Runs) == 0 {
		b.WriteString("No sync runs recorded")
	} else {
		b.WriteString("Recent sync runs:")
	}
	for _, run := range r.Runs {
		fmt.Fprintf(&b, "\n  %s  %-10s %s  pages %d/%d failed  +%d ~%d =%d  skipped %d  failed %d",
			run.StartedAt.Format("2006-01-02 15:04"),
			run.State,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			run.PagesFailed, run.PagesTotal,
			run.Inserted, run.Updated, run.Unchanged,
			run.Skipped, run.Failed)
	}
	fmt.Fprintf(&b, "\n\nDatabase schema version %d", r.SchemaVersion)
	return b.String()
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of runs to list")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeStore(opts.RootOptions, st)

	version, err := st.SchemaVersion(cmd.Context())
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, "failed to read schema version", err)
	}
	runs, err := st.RecentRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, "failed to list runs", err)
	}
	return f.Success(RunsResult{SchemaVersion: version, Runs: runs})
}
