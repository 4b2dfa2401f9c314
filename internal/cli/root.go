package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/systemet/internal/catalog"
	"github.com/roach88/systemet/internal/config"
	"github.com/roach88/systemet/internal/reconcile"
	"github.com/roach88/systemet/internal/store"
	"github.com/roach88/systemet/internal/syncrun"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides database.path from config

	// Config and Logger are set before any subcommand runs.
	Config config.Config
	Logger *slog.Logger

	// Source, Clock and RunIDs override production defaults (for testing).
	// If nil, update uses an HTTP source, the system clock and UUIDv7 ids.
	Source catalog.Source
	Clock  reconcile.Clock
	RunIDs syncrun.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the systemet CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, letting
// tests inject a source, clock and run id generator.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "systemet",
		Short: "systemet - Systembolaget price tracker",
		Long: `Track Systembolaget product prices and APK (ml of alcohol per krona).

Each update pulls the full catalog, records price changes in an append-only
history and keeps every product's change since its first observed price.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				// The requested format is unusable, so report in text.
				text := &OutputFormatter{Format: "text", Writer: cmd.OutOrStdout()}
				return text.Fail(ExitCommandError, ErrCodeUsage, "invalid --format",
					fmt.Errorf("%q is not one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return newFormatter(opts, cmd).Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
			}
			if opts.Database != "" {
				cfg.Database.Path = opts.Database
			}
			opts.Config = cfg
			opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger builds the slog handler from config. --verbose forces debug.
func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openStore opens the configured database, reporting failures through f.
func openStore(opts *RootOptions, f *OutputFormatter) (*store.Store, error) {
	path := opts.Config.Database.Path
	opts.Logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return st, nil
}

func closeStore(opts *RootOptions, st *store.Store) {
	if err := st.Close(); err != nil {
		opts.Logger.Error("error closing database", "error", err)
	}
}

func clockOf(opts *RootOptions) reconcile.Clock {
	if opts.Clock != nil {
		return opts.Clock
	}
	return reconcile.SystemClock{}
}
