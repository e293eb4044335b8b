package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/coverlens/internal/browser"
	"github.com/lehigh-university-libraries/coverlens/internal/export"
	"github.com/lehigh-university-libraries/coverlens/internal/images"
)

const shellHelp = `Commands:
  list                 show the visible books
  more                 load the next collection page
  search <image-url>   search by image URL
  upload <path>        search by a local image
  similar <book-id>    find books like this one
  threshold <0-100>    minimum match percentage
  category <name>      show one category ("All" for every category)
  clear                leave the search and return to the collection
  details <book-id>    description and publish date
  export <file>        save the visible books (.json .yaml .csv .parquet)
  state                mode, counts and facets
  help                 this text
  quit                 leave the shell`

func newShellCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive browse and search session",
		Long: `Starts an interactive session that keeps the collection and the current
search in memory, so filters and clearing a search never refetch anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &shellSession{
				out:            cmd.OutOrStdout(),
				maxUploadBytes: opts.cfg.Images.MaxUploadBytes,
			}
			s.c = opts.coordinator(opts.client(), browser.ObserverFuncs{
				OnScrollToTop: func() { fmt.Fprintln(s.out, strings.Repeat("=", 80)) },
			})
			return s.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type shellSession struct {
	c              *browser.Coordinator
	out            io.Writer
	maxUploadBytes int64
}

func (s *shellSession) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "coverlens shell. Type \"help\" for commands.")
	if err := s.c.Start(ctx); err != nil {
		s.report(err)
	} else {
		_ = printBooks(s.out, s.c.Snapshot())
	}

	reader := bufio.NewReader(in)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nShell interrupted.")
			return nil
		default:
		}

		fmt.Fprint(s.out, "> ")
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if quit := s.exec(ctx, line); quit {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// exec runs one command line and reports whether the shell should exit
func (s *shellSession) exec(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return false
	case "list", "ls":
		_ = printBooks(s.out, s.c.Snapshot())
		return false
	case "state":
		s.printState()
		return false
	case "more", "next":
		if !s.c.Snapshot().HasMore {
			fmt.Fprintln(s.out, "The whole collection is loaded.")
			return false
		}
		err = s.c.LoadMore(ctx)
	case "search":
		err = s.c.Search(ctx, browser.SearchInput{URL: arg})
	case "upload":
		err = s.upload(ctx, arg)
	case "similar":
		err = s.c.FindSimilar(ctx, arg)
	case "threshold":
		n, convErr := strconv.Atoi(arg)
		if convErr != nil {
			fmt.Fprintln(s.out, "threshold needs a number between 0 and 100")
			return false
		}
		err = s.c.SetThreshold(n)
	case "category":
		err = s.c.SetCategory(arg)
	case "clear":
		s.c.ClearSearch()
	case "details":
		entry := s.c.RequestDetails(ctx, arg)
		printDetails(s.out, arg, entry)
		return false
	case "export":
		s.export(arg)
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command %q. Type \"help\" for commands.\n", name)
		return false
	}

	if err != nil {
		s.report(err)
		return false
	}
	_ = printBooks(s.out, s.c.Snapshot())
	return false
}

func (s *shellSession) upload(ctx context.Context, path string) error {
	if path == "" {
		return s.c.Search(ctx, browser.SearchInput{})
	}
	upload, err := images.ReadUploadFile(path, s.maxUploadBytes)
	if errors.Is(err, images.ErrEmptyImage) {
		return s.c.Search(ctx, browser.SearchInput{})
	}
	if err != nil {
		return s.c.Reject("Image rejected: " + err.Error())
	}
	fmt.Fprintf(s.out, "Searching with %s (%s, %dx%d)\n", upload.Filename, upload.Format, upload.Width, upload.Height)
	return s.c.Search(ctx, browser.SearchInput{Image: upload.Data, Filename: upload.Filename})
}

func (s *shellSession) export(path string) {
	if path == "" {
		fmt.Fprintln(s.out, "export needs a file name")
		return
	}
	snap := s.c.Snapshot()
	meta := export.Meta{
		Mode:             snap.Mode.String(),
		ThresholdPercent: snap.ThresholdPercent,
		Category:         snap.Category,
		TotalCount:       snap.TotalCount,
		ExportedAt:       time.Now().UTC(),
	}
	if err := export.SaveToFile(path, "", meta, snap.Books); err != nil {
		fmt.Fprintln(s.out, "Error:", err)
		return
	}
	fmt.Fprintf(s.out, "Saved %d books to %s\n", len(snap.Books), path)
}

func (s *shellSession) report(err error) {
	if browser.IsSuppressed(err) {
		return
	}
	msg := s.c.Snapshot().Error
	if msg == "" {
		msg = err.Error()
	}
	fmt.Fprintln(s.out, "Error:", msg)
}

func (s *shellSession) printState() {
	snap := s.c.Snapshot()
	fmt.Fprintf(s.out, "Mode:        %s\n", snap.Mode)
	fmt.Fprintf(s.out, "Visible:     %d\n", len(snap.Books))
	fmt.Fprintf(s.out, "Collection:  page %d, %d total, more=%t\n", snap.PageIndex, snap.TotalCount, snap.HasMore)
	if snap.Mode == browser.ModeSearch {
		fmt.Fprintf(s.out, "Results:     %d\n", snap.ResultCount)
		fmt.Fprintf(s.out, "Threshold:   %d%%\n", snap.ThresholdPercent)
		fmt.Fprintf(s.out, "Category:    %s of %s\n", snap.Category, strings.Join(snap.Categories, ", "))
	}
	if snap.Error != "" {
		fmt.Fprintf(s.out, "Error:       %s\n", snap.Error)
	}
}
