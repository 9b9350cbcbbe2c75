package cmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/output"
)

type searchOptions struct {
	limit      int
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over archived and pending documents",
		Long: `Search the page text of every stored document.

Every query term must occur in a document for it to match. Documents are
ranked by total term occurrences, then by id. The pages that contain a
query term are listed with each hit.`,
		Example: `  docarchive search invoice acme
  docarchive search "tax 2024" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			resp, err := b.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.limit > 0 && len(resp.Hits) > opts.limit {
				resp.Hits = resp.Hits[:opts.limit]
			}
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printSearchResults(output.New(cmd.OutOrStdout()), resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 for all)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printSearchResults(out *output.Writer, resp *api.SearchResponse) {
	if len(resp.Hits) == 0 {
		out.Printf("No documents match %q\n", resp.Query)
		return
	}
	out.Printf("%d documents match %q\n", len(resp.Hits), resp.Query)
	for _, hit := range resp.Hits {
		pages := make([]string, len(hit.Fragments))
		for i, f := range hit.Fragments {
			pages[i] = strconv.Itoa(f)
		}
		out.Printf("  %s  %s\n", out.Label(hit.ID),
			out.Dim("score "+strconv.Itoa(hit.Score)+"  pages "+strings.Join(pages, ", ")))
	}
}
