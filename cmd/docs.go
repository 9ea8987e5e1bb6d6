package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxis-search/ragline/internal/rag"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Inspect and manage stored documents",
	}
	cmd.AddCommand(newDocsListCmd())
	cmd.AddCommand(newDocsDeleteCmd())
	return cmd
}

func newDocsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			docs, err := a.store.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			for _, doc := range docs {
				fmt.Printf("%s\t%s\t%s\n", doc.ID, doc.Metadata[rag.MetaTimestamp], rag.SourceRef(doc))
			}
			fmt.Printf("%d documents\n", len(docs))
			return nil
		},
	}
}

func newDocsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			if err := a.store.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
