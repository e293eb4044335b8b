package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/coverlens/internal/browser"
	"github.com/lehigh-university-libraries/coverlens/internal/images"
)

// facetOptions narrow a result list after the search completes
type facetOptions struct {
	threshold int
	category  string
}

func (f *facetOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.threshold, "threshold", 0, "Minimum match percentage (0-100)")
	cmd.Flags().StringVar(&f.category, "category", browser.AllCategories, "Only show this category")
}

func (f *facetOptions) apply(c *browser.Coordinator) error {
	if err := c.SetFilters(&f.threshold, &f.category); err != nil {
		return actionError(c, err)
	}
	return nil
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var imagePath string
	var imageURL string
	facets := &facetOptions{}
	out := &outputOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find books whose covers look like an image",
		Long: `Searches the collection by visual similarity to a local image or an image
URL. Results are ranked by the search service; --threshold and --category
filter them locally without another request.`,
		Example: `  # Search with a photo of a cover
  coverlens search --image ./photo.jpg

  # Search by URL, keep strong poetry matches only
  coverlens search --url https://covers.openlibrary.org/b/id/8231856-L.jpg --threshold 60 --category Poetry`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var input browser.SearchInput
			if imagePath != "" {
				upload, err := images.ReadUploadFile(imagePath, opts.cfg.Images.MaxUploadBytes)
				if err != nil {
					return err
				}
				slog.Debug("Searching by image file", "image", upload)
				input.Image = upload.Data
				input.Filename = upload.Filename
			}
			input.URL = imageURL

			c := opts.coordinator(opts.client(), nil)
			if err := c.Search(cmd.Context(), input); err != nil {
				return actionError(c, err)
			}
			if err := facets.apply(c); err != nil {
				return err
			}
			return out.write(cmd.OutOrStdout(), c.Snapshot())
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a cover image (gif, jpeg or png)")
	cmd.Flags().StringVar(&imageURL, "url", "", "URL of a cover image")
	cmd.MarkFlagsMutuallyExclusive("image", "url")
	facets.register(cmd)
	cmd.Flags().StringVar(&out.format, "format", "table", "Output format (table, json, yaml, csv, parquet)")
	cmd.Flags().StringVarP(&out.output, "output", "o", "", "Write results to a file instead of stdout")

	return cmd
}

func newSimilarCmd(opts *globalOptions) *cobra.Command {
	facets := &facetOptions{}
	out := &outputOptions{}

	cmd := &cobra.Command{
		Use:   "similar <book-id>",
		Short: "Find books that look like an existing book",
		Example: `  coverlens similar OL45883W
  coverlens similar OL45883W --threshold 75 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.coordinator(opts.client(), nil)
			if err := c.FindSimilar(cmd.Context(), args[0]); err != nil {
				return actionError(c, err)
			}
			if err := facets.apply(c); err != nil {
				return err
			}
			if len(c.Snapshot().Books) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No similar books found.")
			}
			return out.write(cmd.OutOrStdout(), c.Snapshot())
		},
	}

	facets.register(cmd)
	cmd.Flags().StringVar(&out.format, "format", "table", "Output format (table, json, yaml, csv, parquet)")
	cmd.Flags().StringVarP(&out.output, "output", "o", "", "Write results to a file instead of stdout")

	return cmd
}
