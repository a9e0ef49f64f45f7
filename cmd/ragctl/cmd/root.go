// Package cmd provides the CLI commands for ragctl.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mehul-raul/contract-analysis-agent/internal/app"
	"github.com/mehul-raul/contract-analysis-agent/internal/config"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/memory"
	"github.com/mehul-raul/contract-analysis-agent/internal/service"
)

// globalOptions holds persistent flags shared by every subcommand.
type globalOptions struct {
	store   string // "postgres" or "memory"
	fixture string // JSON fixture for the memory store
	verbose bool
}

// searchOpener builds a search service for the selected store. Tests replace it.
type searchOpener func(ctx context.Context, opts globalOptions, logger *slog.Logger) (*service.SearchService, func(), error)

var openSearch searchOpener = defaultOpenSearch

// NewRootCmd creates the root command for the ragctl CLI.
func NewRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Operate the contract retrieval engine from the command line",
		Long: `ragctl runs hybrid retrieval (vector + keyword + rank fusion + reranking)
against the contract store without going through the HTTP API.

Configuration comes from the same environment variables as ragd.
Use --store memory --fixture file.json to search a JSON fixture instead of Postgres.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.store, "store", "postgres", "Candidate store: postgres, memory")
	cmd.PersistentFlags().StringVar(&opts.fixture, "fixture", "", "JSON fixture loaded into the memory store")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newSearchAllCmd(&opts))
	cmd.AddCommand(newMigrateCmd(&opts))
	cmd.AddCommand(newQdrantSyncCmd(&opts))
	cmd.AddCommand(newTokenCmd(&opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newLogger(opts globalOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func defaultOpenSearch(ctx context.Context, opts globalOptions, logger *slog.Logger) (*service.SearchService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch opts.store {
	case "postgres":
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return a.Search, a.Close, nil
	case "memory":
		store, err := loadFixture(opts.fixture)
		if err != nil {
			return nil, nil, err
		}
		a, err := app.NewWithStore(ctx, cfg, store, logger)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return a.Search, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want postgres or memory)", opts.store)
	}
}

func loadFixture(path string) (*memory.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("--fixture is required with --store memory")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return memory.Load(f)
}
