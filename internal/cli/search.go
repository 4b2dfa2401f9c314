package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/systemet/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Limit int
}

// SearchResult lists the products matching a query.
type SearchResult struct {
	Query    string          `json:"query"`
	Products []store.Product `json:"products"`
}

func (r SearchResult) String() string {
	if len(r.Products) == 0 {
		return fmt.Sprintf("No products match %q", r.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d product(s) matching %q:", len(r.Products), r.Query)
	for _, p := range r.Products {
		b.WriteString("\n  " + productLine(p))
	}
	return b.String()
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search products by name or producer",
		Long: `Search product names and producers. Matching ignores case and
accents, so "cote" finds "Côte". Results are ordered by APK, best first.

Example:
  systemet search "rioja" --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of results")

	return cmd
}

func runSearch(opts *SearchOptions, query string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeStore(opts.RootOptions, st)

	products, err := st.Search(cmd.Context(), query, opts.Limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, "search failed", err)
	}
	return f.Success(SearchResult{Query: query, Products: products})
}
