package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			resp, err := a.engine.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
				return nil
			}

			fmt.Println(resp.Answer)
			fmt.Println()
			fmt.Printf("Confidence: %.2f (%s)\n", resp.Confidence, resp.ConfidenceLevel)
			fmt.Println(resp.ConfidenceExplanation)
			if len(resp.Sources) > 0 {
				fmt.Println("Sources:")
				for _, src := range resp.Sources {
					fmt.Printf("  - %s\n", src)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")

	return cmd
}
