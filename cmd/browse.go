package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBrowseCmd(opts *globalOptions) *cobra.Command {
	var pages int
	var all bool
	out := &outputOptions{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List books from the collection",
		Long: `Loads the collection page by page, the same way the infinite scroll of a
front end would, and prints the books loaded so far.`,
		Example: `  # First page
  coverlens browse

  # First three pages as CSV
  coverlens browse --pages 3 --format csv

  # Everything, saved as parquet
  coverlens browse --all --output collection.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1")
			}

			ctx := cmd.Context()
			c := opts.coordinator(opts.client(), nil)

			if err := c.Start(ctx); err != nil {
				return actionError(c, err)
			}
			for loaded := 1; all || loaded < pages; loaded++ {
				if !c.Snapshot().HasMore {
					break
				}
				if err := c.LoadMore(ctx); err != nil {
					return actionError(c, err)
				}
			}

			return out.write(cmd.OutOrStdout(), c.Snapshot())
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	cmd.Flags().BoolVar(&all, "all", false, "Load every page")
	cmd.Flags().StringVar(&out.format, "format", "table", "Output format (table, json, yaml, csv, parquet)")
	cmd.Flags().StringVarP(&out.output, "output", "o", "", "Write results to a file instead of stdout")

	return cmd
}
