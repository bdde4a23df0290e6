package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/httpseal/harsearch/internal/config"
	"github.com/httpseal/harsearch/pkg/har"
	"github.com/httpseal/harsearch/pkg/logger"
	"github.com/httpseal/harsearch/pkg/matcher"
	"github.com/httpseal/harsearch/pkg/report"
)

func runSearch(cmd *cobra.Command, cfg *config.Config) error {
	log, err := logger.NewWithOptions(logger.Options{
		Verbose: cfg.Verbose,
		Quiet:   cfg.Quiet,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	stdin := bufio.NewReader(cmd.InOrStdin())
	stderr := cmd.ErrOrStderr()

	files := cfg.Files
	if len(files) == 0 {
		name, err := prompt(stdin, stderr, "Enter the HAR file path: ")
		if err != nil {
			return err
		}
		files = []string{name}
	}
	if cfg.Search == "" {
		search, err := prompt(stdin, stderr, "Enter the search string: ")
		if err != nil {
			return err
		}
		cfg.Search = search
	}

	scanID := uuid.NewString()
	log.Debug("Scan %s: searching %d file(s) for %q", scanID, len(files), cfg.Search)

	m := matcher.New(matcher.DefaultAdDomains(), matcher.WithLogger(log))

	var bar *progressbar.ProgressBar
	if cfg.Progress && !cfg.Quiet && len(files) > 1 {
		bar = newProgressBar(stderr, len(files))
	}

	var (
		reports  []report.Report
		exported []har.Entry
		failed   int
	)
	for _, name := range files {
		path := cfg.ResolvePath(name)
		result, err := scanFile(m, path, cfg.Search)
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			failed++
			fmt.Fprintln(stderr, describeError(path, err))
			log.Debug("Scan %s: %s: %v", scanID, path, err)
			continue
		}

		log.Debug("Scan %s: %s: %d match(es)", scanID, path, len(result.Records))
		reports = append(reports, report.Report{
			ScanID: scanID,
			File:   path,
			Search: cfg.Search,
			Result: result,
		})
		exported = append(exported, result.Entries()...)
	}
	if bar != nil {
		bar.Finish()
	}

	if err := writeReports(cmd.OutOrStdout(), cfg, reports); err != nil {
		return err
	}

	if cfg.ExportHAR != "" {
		doc := har.NewHAR("harsearch", version)
		for _, e := range exported {
			doc.AddEntry(e)
		}
		if err := har.WriteFile(cfg.ExportHAR, doc); err != nil {
			return err
		}
		log.Info("Exported %d matching entries to %s", len(exported), cfg.ExportHAR)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be scanned", failed, len(files))
	}
	return nil
}

// scanFile loads and matches a single HAR file
func scanFile(m *matcher.Matcher, path, search string) (*matcher.Result, error) {
	data, err := har.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m.Match(data, search)
}

func writeReports(stdout io.Writer, cfg *config.Config, reports []report.Report) error {
	format := report.Format(cfg.OutputFormat)
	if cfg.OutputFile != "" {
		if err := report.WriteToFile(cfg.OutputFile, reports, format); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	if format != report.FormatText || len(cfg.Files) < 2 {
		if err := report.WriteAll(stdout, reports, format); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	for _, r := range reports {
		fmt.Fprintf(stdout, "==> %s <==\n", r.File)
		if err := report.Write(stdout, r, format); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// describeError renders a per-file failure in the user-facing wording
func describeError(path string, err error) string {
	var (
		parseErr  *matcher.ParseError
		structErr *matcher.StructuralError
	)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("Error: File '%s' not found.", path)
	case errors.As(err, &parseErr):
		return fmt.Sprintf("Error: Failed to parse HAR file '%s'. Make sure it is a valid JSON.", path)
	case errors.As(err, &structErr):
		return fmt.Sprintf("Error: Invalid HAR file structure in '%s' (%s).", path, structErr.Reason)
	default:
		return fmt.Sprintf("Error: %s: %v", path, err)
	}
}

// prompt reads one line without its line ending; a blank answer is an error
func prompt(in *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("no input given for %q", strings.TrimSuffix(question, ": "))
	}
	return answer, nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[SCANNING HAR FILES]"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
