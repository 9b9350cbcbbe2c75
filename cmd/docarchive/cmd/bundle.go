package cmd

import (
	"fmt"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/output"
)

func newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Access stored documents",
	}
	cmd.AddCommand(newBundleGetCmd())
	return cmd
}

func newBundleGetCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write the stored PDF of a document",
		Long: `Write the original bytes of a document to stdout, or to a file with -o.
The bytes hash to the document id.`,
		Example: `  docarchive bundle get 3f9a... -o invoice.pdf
  docarchive bundle get 3f9a... > invoice.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := docid.Parse(args[0])
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			content, err := b.Bundle(cmd.Context(), id)
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err := cmd.OutOrStdout().Write(content)
				return err
			}
			if err := renameio.WriteFile(outPath, content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			output.New(cmd.ErrOrStderr()).Successf("Wrote %d bytes to %s", len(content), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
