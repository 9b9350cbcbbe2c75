package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/ui"
)

// reindexReportEvery throttles progress events during a rebuild.
const reindexReportEvery = 50

func newReindexCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from stored page text",
		Long: `Drop the search index and rebuild it from the page text kept in the
bundle store. Run it after changing search.backend, search.stop_words or
search.min_token_length.

Reindex needs exclusive access to the data directory, so it cannot be
combined with --server. Stop 'docarchive serve' first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serverURL != "" {
				return fmt.Errorf("reindex runs on the local data directory only; stop the server and retry without --server")
			}
			a, err := openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			renderer := ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
				ui.WithForcePlain(plain),
				ui.WithNoColor(ui.DetectNoColor()),
				ui.WithTitle("docarchive reindex"),
			))
			return runReindex(cmd.Context(), a, renderer)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress lines instead of the progress bar")

	return cmd
}

func runReindex(ctx context.Context, a *archive.Archive, renderer ui.Renderer) error {
	stats, err := a.Stats(ctx)
	if err != nil {
		return err
	}
	total := stats.Store.Fragments

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	start := time.Now()

	count, err := a.Reindex(ctx, func(n int) {
		if n%reindexReportEvery == 0 {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageReindexing,
				Current: n,
				Total:   total,
				Message: fmt.Sprintf("%d pages", n),
			})
		}
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
	}

	renderer.Complete(ui.CompletionStats{
		Stage:    ui.StageReindexing,
		Items:    count,
		Duration: time.Since(start),
	})
	if stopErr := renderer.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
