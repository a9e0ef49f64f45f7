package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mehul-raul/contract-analysis-agent/internal/config"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/postgres"
)

func newMigrateCmd(_ *globalOptions) *cobra.Command {
	var dimension int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		Long: `Create the documents and chunks tables, the pgvector extension and the
full-text index. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if dimension <= 0 {
				dimension = cfg.EmbeddingDimension
			}
			if err := postgres.Migrate(cmd.Context(), cfg.DatabaseURL, dimension); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (embedding dimension %d)\n", dimension)
			return err
		},
	}

	cmd.Flags().IntVar(&dimension, "dimension", 0, "Embedding dimension (0 uses EMBEDDING_DIMENSION)")
	return cmd
}
