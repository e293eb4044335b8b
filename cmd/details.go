package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/coverlens/internal/browser"
)

func newDetailsCmd(opts *globalOptions) *cobra.Command {
	var concurrency int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "details <book-id>...",
		Short: "Show description and publish date for books",
		Example: `  coverlens details OL45883W
  coverlens details OL45883W OL27448W OL1168007W --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				concurrency = 1
			}

			c := opts.coordinator(opts.client(), nil)
			entries := make([]browser.DetailEntry, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for i, id := range args {
				g.Go(func() error {
					entries[i] = c.RequestDetails(ctx, id)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if asJSON {
				out := make(map[string]browser.DetailEntry, len(args))
				for i, id := range args {
					out[id] = entries[i]
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(out)
			}

			for i, id := range args {
				printDetails(cmd.OutOrStdout(), id, entries[i])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel detail requests")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func printDetails(w io.Writer, id string, entry browser.DetailEntry) {
	fmt.Fprintln(w, id)
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Published:   %s\n", entry.Details.PublishDate)
	if entry.Details.ExternalLink != "" {
		fmt.Fprintf(w, "Link:        %s\n", entry.Details.ExternalLink)
	}
	fmt.Fprintf(w, "\n%s\n\n", entry.Details.Description)
}
