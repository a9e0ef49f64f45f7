package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mehul-raul/contract-analysis-agent/internal/service"
)

// searchOptions holds CLI flags for the search commands.
type searchOptions struct {
	userID     int64
	documentID int64
	topK       int
	format     string // "text", "json"
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search one document",
		Long: `Search a single document owned by the given user.

Examples:
  ragctl search --user 1 --document 42 "termination notice period"
  ragctl search --user 1 --document 42 --top-k 3 --format json "payment terms"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.documentID <= 0 {
				return fmt.Errorf("--document is required")
			}
			query := strings.Join(args, " ")

			search, closeFn, err := openSearch(cmd.Context(), *global, newLogger(*global))
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := search.SearchDocument(cmd.Context(), opts.userID, opts.documentID, query, opts.topK)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), service.FormatDocumentResult(result))
			return err
		},
	}

	addSearchFlags(cmd, &opts)
	cmd.Flags().Int64VarP(&opts.documentID, "document", "d", 0, "Document id to search")
	return cmd
}

func newSearchAllCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search-all <query>",
		Short: "Search every document owned by a user",
		Long: `Search all documents owned by the given user and merge the results.

Examples:
  ragctl search-all --user 1 "limitation of liability"
  ragctl --store memory --fixture contracts.json search-all --user 1 "notice period"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			search, closeFn, err := openSearch(cmd.Context(), *global, newLogger(*global))
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := search.SearchAll(cmd.Context(), opts.userID, query, opts.topK)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), service.FormatSearchAllResult(result))
			return err
		},
	}

	addSearchFlags(cmd, &opts)
	return cmd
}

func addSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	cmd.Flags().Int64VarP(&opts.userID, "user", "u", 0, "Id of the user whose documents are searched")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of passages (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("user")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
