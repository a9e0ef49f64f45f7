package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mehul-raul/contract-analysis-agent/internal/config"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/postgres"
	"github.com/mehul-raul/contract-analysis-agent/internal/vectorstore"
)

func newQdrantSyncCmd(global *globalOptions) *cobra.Command {
	var (
		documentIDs []int64
		batchSize   int
	)

	cmd := &cobra.Command{
		Use:   "qdrant-sync",
		Short: "Mirror chunk embeddings from Postgres into Qdrant",
		Long: `Copy chunk embeddings from Postgres into the Qdrant collection used when
VECTOR_BACKEND=qdrant. Each document's vectors are replaced, so re-running is safe.

Examples:
  ragctl qdrant-sync
  ragctl qdrant-sync --document 42 --document 43`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := newLogger(*global)

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := postgres.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			qs, err := vectorstore.NewQdrantStore(cfg.QdrantGRPCURL, cfg.QdrantCollection)
			if err != nil {
				return fmt.Errorf("failed to connect to Qdrant: %w", err)
			}
			defer qs.Close()

			if err := qs.EnsureCollection(ctx, cfg.EmbeddingDimension); err != nil {
				return err
			}

			if len(documentIDs) == 0 {
				documentIDs, err = postgres.NewDocumentRepo(db).ListIDs(ctx)
				if err != nil {
					return err
				}
			}
			logger.Info("syncing documents", "count", len(documentIDs), "collection", cfg.QdrantCollection)

			stats, err := vectorstore.Sync(ctx, postgres.NewChunkRepo(db), qs, documentIDs, batchSize)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "synced %d chunks from %d documents into %s\n",
				stats.Chunks, stats.Documents, cfg.QdrantCollection)
			return err
		},
	}

	cmd.Flags().Int64SliceVar(&documentIDs, "document", nil, "Document id to sync (repeatable, default all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 256, "Vectors per upsert request")
	return cmd
}
