package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/coverlens/internal/config"
)

// globalOptions holds the persistent flags and the configuration resolved
// from them before any subcommand runs
type globalOptions struct {
	configPath string
	apiURL     string
	pageSize   int
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "coverlens",
		Short: "Browse a book collection and search it by cover similarity",
		Long: `Coverlens is a client for a visual book search service.

Browse the paginated collection, search it with a cover photo, an image URL
or an existing book, then narrow the ranked results by similarity and
category. Run "coverlens shell" for an interactive session or
"coverlens serve" to drive the same state from a web front end.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.apiURL, "api-url", "", "Base URL of the book search service")
	flags.IntVar(&opts.pageSize, "page-size", 0, "Books per collection page")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (text or json)")

	// Add subcommands
	cmd.AddCommand(newBrowseCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newSimilarCmd(opts))
	cmd.AddCommand(newDetailsCmd(opts))
	cmd.AddCommand(newCoverCmd(opts))
	cmd.AddCommand(newShellCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

func (o *globalOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = o.apiURL
	}
	if flags.Changed("page-size") {
		cfg.Browse.PageSize = o.pageSize
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = strings.ToLower(o.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = strings.ToLower(o.logFormat)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	slog.SetDefault(cfg.NewLogger())
	slog.Debug("Configuration resolved", "api", cfg.API.BaseURL, "page_size", cfg.Browse.PageSize)

	o.cfg = cfg
	return nil
}
