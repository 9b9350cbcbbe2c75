package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/output"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Review documents waiting to be archived",
		Long: `Every newly ingested document waits in the inbox. From there it is either
archived with labels and properties, or deleted together with its pages.`,
	}

	cmd.AddCommand(newInboxListCmd())
	cmd.AddCommand(newInboxShowCmd())
	cmd.AddCommand(newInboxDeleteCmd())
	cmd.AddCommand(newInboxArchiveCmd())
	cmd.AddCommand(newInboxUpdateCmd())

	return cmd
}

func newInboxListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			docs, err := b.InboxList(cmd.Context())
			if err != nil {
				return err
			}
			printInboxList(output.New(cmd.OutOrStdout()), docs)
			return nil
		},
	}
}

func newInboxShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pending document",
		Args:  cobra.ExactArgs(1),
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

			entry, err := b.InboxGet(cmd.Context(), id)
			if err != nil {
				return err
			}
			printInboxEntry(output.New(cmd.OutOrStdout()), entry)
			return nil
		},
	}
}

func newInboxDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pending document and its pages",
		Args:  cobra.ExactArgs(1),
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

			if err := b.InboxDelete(cmd.Context(), id); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Deleted %s", id)
			return nil
		},
	}
}

// metadataFlags are the --label and --property flags shared by archive and update.
type metadataFlags struct {
	labels     []string
	properties []string
}

func (f *metadataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.labels, "label", "l", nil, "Label to attach (repeatable)")
	cmd.Flags().StringArrayVarP(&f.properties, "property", "p", nil, "Property key=value to attach (repeatable)")
}

func (f *metadataFlags) request() (api.MetadataRequest, error) {
	props, err := parseProperties(f.properties)
	if err != nil {
		return api.MetadataRequest{}, err
	}
	return api.MetadataRequest{Labels: f.labels, Properties: props}, nil
}

func newInboxArchiveCmd() *cobra.Command {
	var flags metadataFlags

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "File a pending document with labels and properties",
		Example: `  docarchive inbox archive 3f9a... --label invoice --label 2024 \
      --property sender=ACME --property amount=12.50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := docid.Parse(args[0])
			if err != nil {
				return err
			}
			req, err := flags.request()
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			if err := b.InboxArchive(cmd.Context(), id, req); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Archived %s", id)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newInboxUpdateCmd() *cobra.Command {
	var flags metadataFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Add labels and properties to a pending document without filing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := docid.Parse(args[0])
			if err != nil {
				return err
			}
			req, err := flags.request()
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			entry, err := b.InboxUpdate(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			printInboxEntry(output.New(cmd.OutOrStdout()), entry)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

// parseProperties turns key=value pairs into a map. A pair without "="
// is a key with an empty value; later pairs win.
func parseProperties(pairs []string) (map[string]string, error) {
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", pair)
		}
		props[key] = value
	}
	return props, nil
}

func printInboxList(out *output.Writer, docs []string) {
	if len(docs) == 0 {
		out.Println("Inbox is empty")
		return
	}
	out.Printf("%d documents in inbox\n", len(docs))
	for _, doc := range docs {
		out.Printf("  %s\n", out.Label(doc))
	}
}

func printInboxEntry(out *output.Writer, e *api.InboxGetResponse) {
	out.Printf("Document %s:\n", out.Label(e.ID))
	out.Printf("  Uploaded: %s\n", e.Uploaded.UTC().Format(time.RFC3339))

	if len(e.Labels) > 0 {
		out.Printf("  Labels: %s\n", strings.Join(e.Labels, ", "))
	}

	if len(e.Properties) > 0 {
		out.Println("  Properties:")
		keys := make([]string, 0, len(e.Properties))
		for k := range e.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.Printf("  %s: %s\n", k, out.Dim(e.Properties[k]))
		}
	}
}
