package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/systemet/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Top int
}

// StatsResult wraps store statistics for output.
type StatsResult struct {
	store.Stats
}

func (r StatsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Products:       %d\n", r.TotalProducts)
	fmt.Fprintf(&b, "Average price:  %.2f kr\n", r.AvgPrice)
	fmt.Fprintf(&b, "Price range:    %.2f - %.2f kr\n", r.MinPrice, r.MaxPrice)
	fmt.Fprintf(&b, "Average APK:    %.2f ml/kr\n", r.AvgAPK)
	fmt.Fprintf(&b, "Price changes:  %d up, %d down, %d unchanged", r.PriceIncreases, r.PriceDecreases, r.PriceStable)

	if len(r.TopCategories) > 0 {
		b.WriteString("\n\nTop categories:")
		for _, c := range r.TopCategories {
			fmt.Fprintf(&b, "\n  %-24s %5d  avg %8.2f kr  APK %.2f", c.Category, c.Count, c.AvgPrice, c.AvgAPK)
		}
	}
	if len(r.BestValue) > 0 {
		b.WriteString("\n\nBest value:")
		for i, p := range r.BestValue {
			fmt.Fprintf(&b, "\n  %2d. %s", i+1, productLine(p))
		}
	}
	return b.String()
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Long: `Show product count, price and APK averages, how many prices moved
since their first observation, the largest categories and the best value
products by APK.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Top, "top", 10, "number of best value products to list")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeStore(opts.RootOptions, st)

	stats, err := st.Stats(cmd.Context(), opts.Top)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, "failed to compute stats", err)
	}
	return f.Success(StatsResult{Stats: stats})
}

// productLine renders one product for listings.
func productLine(p store.Product) string {
	apk := "-"
	if p.APK != nil {
		apk = fmt.Sprintf("%.2f", *p.APK)
	}
	return fmt.Sprintf("%-40s %9.2f kr  APK %5s  [%s]", p.DisplayName(), p.Price, apk, p.ID)
}
