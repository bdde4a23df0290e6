package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/httpseal/harsearch/internal/config"
)

const (
	version = "0.1.0"
)

// options holds raw flag values before they are merged into config.Config
type options struct {
	verbose    bool
	quiet      bool
	search     string
	harDir     string
	extension  string
	outputFile string
	format     string
	logFile    string
	exportHAR  string
	progress   bool
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "harsearch [flags] [file.har ...]",
		Short: "harsearch - find POST transactions containing a string in HAR captures",
		Long: `harsearch scans HTTP traffic captures in HAR format and reports every POST
transaction whose request query string, request headers, request body or
response content contains the search string. Requests to well-known
advertising and tracking domains are ignored.

Matching is exact and case-sensitive; the query string is searched in its
raw, URL-encoded form.

Examples:
  # Prompt for the file and the search string
  harsearch

  # Search one capture
  harsearch -s "tell me a joke" session.har

  # Bare names are resolved against a capture directory with .har appended
  harsearch --dir ~/captures -s "tell me a joke" session1 session2

  # Compressed captures are read transparently
  harsearch -s token capture.har.gz capture.har.br

  # Tabular report, or JSON written to a file
  harsearch --format table -s token capture.har
  harsearch -q -o matches.json --format json -s token capture.har

  # Save the matching entries as a smaller HAR file
  harsearch -s token --export-har matches.har capture.har`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(opts, args)
			if err != nil {
				return err
			}
			return runSearch(cmd, cfg)
		},
	}

	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress console output (quiet mode)")
	rootCmd.Flags().StringVarP(&opts.search, "search", "s", "", "String to search for (prompted when omitted)")
	rootCmd.Flags().StringVar(&opts.harDir, "dir", "", "Directory for relative HAR file names")
	rootCmd.Flags().StringVar(&opts.extension, "ext", config.DefaultExtension, "Extension appended to file names given without one")
	rootCmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Write the report to a file instead of stdout")
	rootCmd.Flags().StringVar(&opts.format, "format", string(config.DefaultFormat), "Output format: text, json (one array of per-file reports), csv (one header row, file column first), table")
	rootCmd.Flags().StringVar(&opts.logFile, "log-file", "", "Output system logs to file (separate from the report)")
	rootCmd.Flags().StringVar(&opts.exportHAR, "export-har", "", "Write the matching entries to a filtered HAR file")
	rootCmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar when scanning several files")
	rootCmd.Flags().StringVar(&opts.configPath, "config", "", "Configuration file (default: $XDG_CONFIG_HOME/harsearch/config.yaml)")

	return rootCmd
}

// buildConfig merges flags, environment and config file, in that order of
// precedence
func buildConfig(opts *options, args []string) (*config.Config, error) {
	cfg := &config.Config{
		Verbose:          opts.verbose,
		Quiet:            opts.quiet,
		Search:           opts.search,
		HARDir:           opts.harDir,
		DefaultExtension: opts.extension,
		Files:            args,
		OutputFile:       opts.outputFile,
		OutputFormat:     config.OutputFormat(opts.format),
		LogFile:          opts.logFile,
		ExportHAR:        opts.exportHAR,
		Progress:         opts.progress,
	}

	cfg.MergeWithFileConfig(config.LoadEnv())

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	fileConfig, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.MergeWithFileConfig(fileConfig)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
