package matcher

import (
	"strings"

	"github.com/httpseal/harsearch/pkg/har"
)

// Record describes one matching transaction
type Record struct {
	PacketNumber int        `json:"packet_number"`
	URL          string     `json:"url"`
	Method       string     `json:"method"`
	Status       *int       `json:"status"` // nil when the log has no status
	StartTime    string     `json:"start_time"`
	Elapsed      har.Millis `json:"time_taken_ms"`
	MatchSources string     `json:"match_sources"`
	ContentType  string     `json:"transaction_type"`

	// Entry is the source entry, kept for exporting a filtered HAR
	Entry *har.Entry `json:"-"`
}

// Sources splits MatchSources back into its labels
func (r Record) Sources() []string {
	if r.MatchSources == "" {
		return nil
	}
	return strings.Split(r.MatchSources, ", ")
}

// Result holds the records of one scan in log order.
// An empty result is the no-match sentinel and carries Message.
type Result struct {
	Records []Record `json:"matches"`
	Message string   `json:"message,omitempty"`
}

// NoMatch reports whether the scan found nothing
func (r *Result) NoMatch() bool {
	return len(r.Records) == 0
}

// Entries returns the source entries of all records, in order
func (r *Result) Entries() []har.Entry {
	entries := make([]har.Entry, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.Entry != nil {
			entries = append(entries, *rec.Entry)
		}
	}
	return entries
}

func newRecord(packet int, entry *har.Entry, sources []string) Record {
	return Record{
		PacketNumber: packet,
		URL:          entry.Request.URL,
		Method:       entry.Request.MethodName(),
		Status:       entry.Response.Status,
		StartTime:    entry.StartTime(),
		Elapsed:      entry.Elapsed(),
		MatchSources: strings.Join(sources, ", "),
		ContentType:  entry.Response.ContentType(),
		Entry:        entry,
	}
}
