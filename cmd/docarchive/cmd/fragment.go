package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/output"
)

func newFragmentCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fragment <id> <index>",
		Short: "Print the extracted text of one page",
		Long: `Print the extracted text of page <index> of a document. Pages are
numbered from 0.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := docid.Parse(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return errors.InvalidIdentifier("fragment index must be a non-negative integer, got " + strconv.Quote(args[1]))
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			frag, err := b.Fragment(cmd.Context(), id, index)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(frag)
			}
			out := output.New(cmd.OutOrStdout())
			if frag.Text == nil {
				out.Println(out.Dim("(no text extracted from this page)"))
				return nil
			}
			out.Println(*frag.Text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
