package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/miekg/dns"

	"github.com/httpseal/harsearch/pkg/matcher"
)

// Format specifies the output format.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// Report is the outcome of scanning one file
type Report struct {
	ScanID string
	File   string
	Search string
	Result *matcher.Result
}

// HostCount is the number of matches for one host
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

var csvHeader = []string{"file", "packet_number", "url", "method", "status", "start_time", "time_taken_ms", "match_sources", "transaction_type"}

// Write outputs the report in the requested format.
func Write(w io.Writer, r Report, format Format) error {
	if r.Result == nil {
		return fmt.Errorf("report for %s has no result", r.File)
	}
	switch format {
	case FormatText:
		return writeText(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	case FormatTable:
		return writeTable(w, r)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteAll outputs several reports as one document. JSON is a single array
// of per-file objects and CSV shares one header row; text and table output
// are written one report after another.
func WriteAll(w io.Writer, reports []Report, format Format) error {
	for _, r := range reports {
		if r.Result == nil {
			return fmt.Errorf("report for %s has no result", r.File)
		}
	}
	switch format {
	case FormatJSON:
		out := make([]jsonReport, 0, len(reports))
		for _, r := range reports {
			out = append(out, newJSONReport(r))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, r := range reports {
			if err := writeCSVRows(cw, r); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatText, FormatTable:
		for _, r := range reports {
			if err := Write(w, r, format); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteToFile writes the reports to a file instead of stdout.
func WriteToFile(path string, reports []Report, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	if err := WriteAll(f, reports, format); err != nil {
		return err
	}
	return f.Close()
}

// Hosts groups records by canonical host name, most matches first
func Hosts(records []matcher.Record) []HostCount {
	counts := make(map[string]int)
	for _, rec := range records {
		host := ""
		if u, err := url.Parse(rec.URL); err == nil {
			host = u.Hostname()
		}
		if host == "" {
			host = "(unknown)"
		} else {
			host = dns.CanonicalName(host)
		}
		counts[host]++
	}

	out := make([]HostCount, 0, len(counts))
	for host, n := range counts {
		out = append(out, HostCount{Host: host, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Host < out[j].Host
	})
	return out
}

func statusString(status *int, none string) string {
	if status == nil {
		return none
	}
	return strconv.Itoa(*status)
}

func writeText(w io.Writer, r Report) error {
	if r.Result.NoMatch() {
		_, err := fmt.Fprintln(w, r.Result.Message)
		return err
	}
	for _, rec := range r.Result.Records {
		lines := [][2]string{
			{"Packet Number", strconv.Itoa(rec.PacketNumber)},
			{"URL", rec.URL},
			{"Method", rec.Method},
			{"Status", statusString(rec.Status, "None")},
			{"Start Time", rec.StartTime},
			{"Time Taken (ms)", rec.Elapsed.String()},
			{"Match Sources", rec.MatchSources},
			{"Transaction Type", rec.ContentType},
		}
		if _, err := fmt.Fprintln(w, "Match Found:"); err != nil {
			return err
		}
		for _, kv := range lines {
			if _, err := fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, "\n\n"); err != nil {
			return err
		}
	}
	return nil
}

type jsonReport struct {
	ScanID  string           `json:"scan_id,omitempty"`
	File    string           `json:"file"`
	Search  string           `json:"search"`
	Matches []matcher.Record `json:"matches"`
	Hosts   []HostCount      `json:"hosts"`
	Message string           `json:"message,omitempty"`
}

func newJSONReport(r Report) jsonReport {
	out := jsonReport{
		ScanID:  r.ScanID,
		File:    r.File,
		Search:  r.Search,
		Matches: r.Result.Records,
		Hosts:   Hosts(r.Result.Records),
		Message: r.Result.Message,
	}
	if out.Matches == nil {
		out.Matches = []matcher.Record{}
	}
	return out
}

func writeJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newJSONReport(r))
}

func writeCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	if err := writeCSVRows(cw, r); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeCSVRows(cw *csv.Writer, r Report) error {
	for _, rec := range r.Result.Records {
		row := []string{
			r.File,
			strconv.Itoa(rec.PacketNumber),
			rec.URL,
			rec.Method,
			statusString(rec.Status, ""),
			rec.StartTime,
			rec.Elapsed.String(),
			rec.MatchSources,
			rec.ContentType,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, r Report) error {
	if r.File != "" {
		if _, err := fmt.Fprintf(w, "\n%s\n", r.File); err != nil {
			return err
		}
	}
	if r.Result.NoMatch() {
		_, err := fmt.Fprintln(w, r.Result.Message)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "URL", "Method", "Status", "Start Time", "Time (ms)", "Match Sources", "Type"})
	for _, rec := range r.Result.Records {
		t.AppendRow(table.Row{
			rec.PacketNumber,
			rec.URL,
			rec.Method,
			statusString(rec.Status, "-"),
			rec.StartTime,
			rec.Elapsed.String(),
			rec.MatchSources,
			rec.ContentType,
		})
	}

	hosts := Hosts(r.Result.Records)
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d matches across %d hosts", len(r.Result.Records), len(hosts))})
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
	return nil
}
