package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"
)

func newCoverCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cover <image-url>",
		Short: "Download a cover image through the search service's image proxy",
		Example: `  coverlens cover https://covers.openlibrary.org/b/id/8231856-L.jpg
  coverlens cover https://covers.openlibrary.org/b/id/8231856-L.jpg -o covers/dune.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := args[0]
			if output == "" {
				output = defaultCoverName(ref)
			}

			client := opts.client()
			if err := opts.fetcher(client).DownloadCover(cmd.Context(), ref, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to the image's name)")

	return cmd
}

func defaultCoverName(ref string) string {
	name := path.Base(strings.SplitN(ref, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		return "cover.jpg"
	}
	return name
}
