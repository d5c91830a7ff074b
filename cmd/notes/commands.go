package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/vector-notes/internal/app"
	"github.com/bull/vector-notes/internal/config"
	"github.com/bull/vector-notes/internal/indexer"
	"github.com/bull/vector-notes/internal/logging"
	"github.com/bull/vector-notes/internal/notes"
	"github.com/bull/vector-notes/internal/storage"
)

type rootOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "notes",
		Short: "Personal notes backed by a vector database",
		Long: `CLI for storing, searching and managing notes in the vector store.

Configuration is read from --config, then $NOTES_CONFIG, then
configurations/config.yaml. Environment overrides:
  QDRANT_HOST    Qdrant hostname
  QDRANT_PORT    Qdrant gRPC port
  OPENAI_API_KEY OpenAI API key for embeddings
  LOG_LEVEL      debug, info, warn or error`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML config file")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newStoreCmd(opts),
		newSearchCmd(opts),
		newListCmd(opts),
		newCollectionsCmd(opts),
		newDeleteCmd(opts),
		newDeleteChunksCmd(opts),
		newRewriteCmd(opts),
		newReconcileCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// withApp loads configuration, builds the service graph and runs fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(config.ResolvePath(opts.configPath))
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LoggingConfig(), cmd.ErrOrStderr())

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readContent returns the file argument's contents, or stdin for "-" or no argument.
func readContent(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func printReport(cmd *cobra.Command, opts *rootOptions, report *notes.IngestReport) error {
	if report == nil {
		return nil
	}
	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		return printJSON(out, report)
	}
	fmt.Fprintf(out, "Stored %d/%d chunks in %q", report.StoredChunks, report.TotalChunks, report.CollectionName)
	if report.RecordCreated {
		fmt.Fprintf(out, " (record %d)", report.RecordID)
	}
	fmt.Fprintf(out, " in %s\n", report.Duration.Round(time.Millisecond))
	for _, f := range report.FailedChunks {
		fmt.Fprintf(out, "  - chunk %d: %s\n", f.Index, f.Reason)
	}
	return nil
}

func newStoreCmd(opts *rootOptions) *cobra.Command {
	var (
		chunkSize int
		single    bool
	)
	cmd := &cobra.Command{
		Use:   "store <collection> [file|-]",
		Short: "Chunk and store a document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, args[1:])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if single {
					if err := a.Store.StoreDocumentChunk(ctx, args[0], content); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Stored 1 chunk in %q\n", args[0])
					return nil
				}
				report, err := a.Store.StoreDocument(ctx, args[0], content, chunkSize)
				if perr := printReport(cmd, opts, report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "maximum characters per chunk (config default when 0)")
	cmd.Flags().BoolVar(&single, "single", false, "store the content as one chunk without splitting")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "search <collection> <query...>",
		Short: "Search a collection semantically",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				hits, err := a.Store.Search(ctx, args[0], query, topN)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(out, hits)
				}
				if len(hits) == 0 {
					fmt.Fprintln(out, "No matching notes found.")
					return nil
				}
				for i, h := range hits {
					fmt.Fprintf(out, "%d. [%.3f] %s", i+1, h.RelevanceScore, h.ID)
					if h.Section != "" {
						fmt.Fprintf(out, "  %s", h.Section)
					}
					fmt.Fprintf(out, "\n%s\n\n", h.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&topN, "top-n", "n", 5, "number of results")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "List every chunk of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				chunks, err := a.Store.ListDocumentChunks(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(out, chunks)
				}
				for _, c := range chunks {
					fmt.Fprintf(out, "%s\n%s\n\n", c.ID, c.Content)
				}
				fmt.Fprintf(out, "%d chunks\n", len(chunks))
				return nil
			})
		},
	}
}

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List known collection names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				names, err := a.Store.ListKnownCollectionNames(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(out, names)
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection with all of its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Store.DeleteDocument(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
				return nil
			})
		},
	}
}

func newDeleteChunksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-chunks <collection> <id...>",
		Short: "Delete individual chunks by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]storage.PointID, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := storage.ParsePointID(raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Store.DeleteChunks(ctx, ids, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d chunks\n", len(ids))
				return nil
			})
		},
	}
}

func newRewriteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite <collection> [file|-]",
		Short: "Replace a collection's content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, args[1:])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				report, err := a.Store.RewriteDocument(ctx, args[0], content)
				if perr := printReport(cmd, opts, report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild the collection registry from the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				report, err := a.Store.ReconcileRegistry(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(out, report)
				}
				fmt.Fprintf(out, "Added: %s\nRemoved: %s\n",
					strings.Join(report.Added, ", "), strings.Join(report.Removed, ", "))
				return nil
			})
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		chunkSize  int
		replace    bool
		extensions []string
	)
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import every note file of a directory",
		Long: `Walks a directory and stores each note file as its own collection,
named by its relative path without the extension.

Hidden files and directories are skipped. Use --replace to re-import
without duplicating chunks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := indexer.NewDirSource(args[0], extensions)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				pipeline := indexer.NewPipeline(source, a.Store, indexer.Options{
					MaxChunkSize: chunkSize,
					Replace:      replace,
				}, nil)

				result, err := pipeline.IndexAll(ctx)
				if err != nil {
					return fmt.Errorf("import failed: %w", err)
				}

				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(out, result)
				}
				fmt.Fprintln(out, "Import complete!")
				fmt.Fprintf(out, "  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
				fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
				fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))
				if len(result.FailedDocs) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Failed documents:")
					for _, failed := range result.FailedDocs {
						fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "maximum characters per chunk (config default when 0)")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete each collection before storing it")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "file extensions to import (default .md,.markdown,.txt)")
	return cmd
}
