package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lehigh-university-libraries/coverlens/internal/browser"
	"github.com/lehigh-university-libraries/coverlens/internal/catalog"
	"github.com/lehigh-university-libraries/coverlens/internal/export"
	"github.com/lehigh-university-libraries/coverlens/internal/images"
)

func (o *globalOptions) client() *catalog.Client {
	return catalog.NewClient(o.cfg.API.BaseURL, o.cfg.API.Timeout)
}

func (o *globalOptions) coordinator(client *catalog.Client, observer browser.Observer) *browser.Coordinator {
	opts := []browser.Option{
		browser.WithPageSize(o.cfg.Browse.PageSize),
		browser.WithLogger(slog.Default()),
	}
	if observer != nil {
		opts = append(opts, browser.WithObserver(observer))
	}
	return browser.New(client, opts...)
}

func (o *globalOptions) fetcher(client *catalog.Client) *images.Fetcher {
	return images.NewFetcher(client, o.cfg.Images.RequestsPerSecond, o.cfg.Images.Burst)
}

// actionError turns a failed coordinator action into the message a user
// would have seen in the error slot
func actionError(c *browser.Coordinator, err error) error {
	if err == nil {
		return nil
	}
	slog.Debug("Action failed", "error", err)
	if msg := c.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

// outputOptions are shared by every command that prints a book list
type outputOptions struct {
	format string
	output string
}

func (o *outputOptions) write(w io.Writer, snap browser.Snapshot) error {
	meta := export.Meta{
		Mode:             snap.Mode.String(),
		ThresholdPercent: snap.ThresholdPercent,
		Category:         snap.Category,
		TotalCount:       snap.TotalCount,
		ExportedAt:       time.Now().UTC(),
	}

	if o.output != "" {
		var format export.Format
		if o.format != "" && o.format != "table" {
			f, err := export.ParseFormat(o.format)
			if err != nil {
				return err
			}
			format = f
		}
		if err := export.SaveToFile(o.output, format, meta, snap.Books); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved %d books to %s\n", len(snap.Books), o.output)
		return nil
	}

	if o.format == "" || o.format == "table" {
		return printBooks(w, snap)
	}

	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	if format == export.FormatParquet {
		return fmt.Errorf("parquet output needs --output")
	}
	return export.Write(w, format, meta, snap.Books)
}

func printBooks(w io.Writer, snap browser.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if snap.Mode == browser.ModeSearch {
		fmt.Fprintln(tw, "#\tMATCH\tID\tTITLE\tAUTHOR\tCATEGORY")
	} else {
		fmt.Fprintln(tw, "#\tID\tTITLE\tAUTHOR\tCATEGORY")
	}

	for i, b := range snap.Books {
		if snap.Mode == browser.ModeSearch {
			match := "-"
			if b.Similarity != nil {
				match = fmt.Sprintf("%.1f%%", b.SimilarityPercent())
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, match, b.ID, truncate(b.Title, 60), b.Author, b.Category)
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, b.ID, truncate(b.Title, 60), b.Author, b.Category)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, summary(snap))
	return nil
}

func summary(snap browser.Snapshot) string {
	if snap.Mode == browser.ModeSearch {
		s := fmt.Sprintf("%d of %d results (match >= %d%%, category %s)",
			len(snap.Books), snap.ResultCount, snap.ThresholdPercent, snap.Category)
		if snap.ShowCategories {
			s += "\nCategories: " + strings.Join(snap.Categories, ", ")
		}
		return s
	}

	s := fmt.Sprintf("%d of %d books, page %d", len(snap.Books), snap.TotalCount, snap.PageIndex)
	if snap.HasMore {
		s += " (more available)"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
