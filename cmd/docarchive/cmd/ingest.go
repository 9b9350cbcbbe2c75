package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/ui"
)

type ingestOptions struct {
	plain   bool
	noColor bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Add PDF documents to the inbox",
		Long: `Add PDF documents to the archive. Each new document lands in the inbox
until it is archived. Ingesting a document that is already stored is a
no-op that prints the same id.

The id of every ingested file is printed to stdout as "<id>  <file>".
Progress goes to stderr.`,
		Example: `  docarchive ingest scan-001.pdf scan-002.pdf
  docarchive ingest ~/scans/*.pdf --plain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			renderer := ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
				ui.WithForcePlain(opts.plain),
				ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
				ui.WithTitle("docarchive ingest"),
			))
			return runIngest(cmd.Context(), b, renderer, cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress lines instead of the progress bar")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

type ingested struct {
	id   docid.DocID
	path string
}

// runIngest ingests files one at a time. Pages of one file are extracted in
// parallel by the pipeline. A failed file does not stop the rest.
func runIngest(ctx context.Context, b backend, renderer ui.Renderer, out io.Writer, files []string) error {
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	start := time.Now()
	var (
		done    []ingested
		failed  int
		lastErr error
	)
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageIngesting,
			Current:     i + 1,
			Total:       len(files),
			CurrentFile: filepath.Base(path),
		})

		id, err := b.IngestFile(ctx, path)
		if err != nil {
			failed++
			lastErr = err
			renderer.AddError(ui.ErrorEvent{File: path, Err: err})
			continue
		}
		done = append(done, ingested{id: id, path: path})
	}

	renderer.Complete(ui.CompletionStats{
		Stage:    ui.StageIngesting,
		Items:    len(done),
		Failed:   failed,
		Duration: time.Since(start),
	})
	if err := renderer.Stop(); err != nil {
		return err
	}

	for _, d := range done {
		_, _ = fmt.Fprintf(out, "%s  %s\n", d.id, d.path)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed == 1 && len(files) == 1 {
		return lastErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(files))
	}
	return nil
}
