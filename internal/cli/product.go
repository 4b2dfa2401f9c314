package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/systemet/internal/store"
)

// maxHistoryRows bounds the history printed by the product command.
const maxHistoryRows = 10

// ProductOptions holds flags for the product command.
type ProductOptions struct {
	*RootOptions
	HistoryDays int
}

// ProductResult is a product with its recent price history.
type ProductResult struct {
	Product     store.Product        `json:"product"`
	HistoryDays int                  `json:"history_days"`
	History     []store.HistoryEntry `json:"history"`
}

func (r ProductResult) String() string {
	p := r.Product
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", p.DisplayName(), p.ID)
	if p.Producer != "" {
		fmt.Fprintf(&b, "Producer:   %s\n", p.Producer)
	}
	if cat := categoryPath(p.Category); cat != "" {
		fmt.Fprintf(&b, "Category:   %s\n", cat)
	}
	if p.Country != "" {
		fmt.Fprintf(&b, "Country:    %s\n", p.Country)
	}
	fmt.Fprintf(&b, "Price:      %.2f kr (%+.1f%% since first seen)\n", p.Price, p.PriceChangePercent)
	fmt.Fprintf(&b, "Volume:     %.0f ml, %.1f%%\n", p.VolumeML, p.AlcoholPercent)
	if p.APK != nil {
		fmt.Fprintf(&b, "APK:        %.2f ml/kr\n", *p.APK)
	} else {
		b.WriteString("APK:        -\n")
	}
	fmt.Fprintf(&b, "Updated:    %s", p.LastUpdatedAt.Format(time.RFC3339))

	if len(r.History) == 0 {
		fmt.Fprintf(&b, "\n\nNo price history in the last %d days", r.HistoryDays)
		return b.String()
	}
	fmt.Fprintf(&b, "\n\nPrice history (last %d days):", r.HistoryDays)
	for _, e := range r.History {
		fmt.Fprintf(&b, "\n  %s  %9.2f kr", e.ObservedAt.Format("2006-01-02 15:04"), e.Price)
	}
	return b.String()
}

func categoryPath(levels [3]string) string {
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " / ")
}

// NewProductCommand creates the product command.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product and its recent price history",
		Long: `Show a product's current price, APK and change since first seen,
followed by up to ten of its most recent price observations.

Example:
  systemet product 1004489 --history 90`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduct(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.HistoryDays, "history", 30, "days of price history to show")

	return cmd
}

func runProduct(opts *ProductOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeStore(opts.RootOptions, st)

	p, err := st.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("product %s not found", id), nil)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, "failed to load product", err)
	}

	cutoff := clockOf(opts.RootOptions).Now().Add(-time.Duration(opts.HistoryDays) * 24 * time.Hour)
	history, err := st.HistorySince(ctx, id, cutoff)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, "failed to load price history", err)
	}
	if len(history) > maxHistoryRows {
		history = history[len(history)-maxHistoryRows:]
	}

	return f.Success(ProductResult{Product: p, HistoryDays: opts.HistoryDays, History: history})
}
