// Package matcher finds POST transactions in a HAR log that contain a
// search string.
//
// Matching is exact, case-sensitive substring containment. The query string
// is checked in its raw, undecoded form, and ad-domain exclusion is a
// substring test on the request authority.
package matcher

import (
	"errors"
	"net/url"
	"strings"

	"github.com/httpseal/harsearch/pkg/har"
	"github.com/httpseal/harsearch/pkg/logger"
)

// Match source labels, listed in check order
const (
	SourceQuery    = "Request Query Parameter"
	SourceHeader   = "Request Header"
	SourceBody     = "Request Body"
	SourceResponse = "Response Content"
)

// NoMatchMessage is carried by a Result that holds no records
const NoMatchMessage = "No matching POST transactions found in the request, response, or query."

// ErrEmptySearch is returned when the search string is empty
var ErrEmptySearch = errors.New("search string must not be empty")

type (
	// ParseError reports input that is not valid JSON
	ParseError = har.ParseError
	// StructuralError reports a document without log.entries
	StructuralError = har.StructuralError
)

// DefaultAdDomains returns the advertising and tracking hosts excluded
// from matching
func DefaultAdDomains() []string {
	return []string{
		"doubleclick.net",
		"googleads.g.doubleclick.net",
		"googleadservices.com",
		"googlesyndication.com",
		"google-analytics.com",
		"ads.linkedin.com",
		"facebook.com",
		"twitter.com",
	}
}

// Option configures a Matcher
type Option func(*Matcher)

// WithLogger traces skipped entries at debug level
func WithLogger(log logger.Logger) Option {
	return func(m *Matcher) {
		m.logger = log
	}
}

// Matcher scans HAR entries for a search string
type Matcher struct {
	adDomains []string
	logger    logger.Logger
}

// New creates a matcher that excludes hosts containing any of adDomains
func New(adDomains []string, opts ...Option) *Matcher {
	m := &Matcher{
		adDomains: append([]string(nil), adDomains...),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match decodes a HAR document and scans it.
// Decoding failures are returned as *ParseError or *StructuralError.
func (m *Matcher) Match(data []byte, search string) (*Result, error) {
	if search == "" {
		return nil, ErrEmptySearch
	}
	doc, err := har.Decode(data)
	if err != nil {
		return nil, err
	}
	return m.MatchEntries(doc.Log.Entries, search)
}

// MatchLog scans an already decoded document
func (m *Matcher) MatchLog(doc *har.HAR, search string) (*Result, error) {
	if doc == nil {
		return nil, &StructuralError{Reason: `missing "log"`}
	}
	return m.MatchEntries(doc.Log.Entries, search)
}

// MatchEntries scans entries in order. Packet numbers are 1-based positions
// in entries.
func (m *Matcher) MatchEntries(entries []har.Entry, search string) (*Result, error) {
	if search == "" {
		return nil, ErrEmptySearch
	}

	result := &Result{}
	for i := range entries {
		entry := &entries[i]
		packet := i + 1

		method := entry.Request.MethodName()
		if method != "POST" {
			continue
		}

		host, query := splitURL(entry.Request.URL)
		if ad := m.adDomain(host); ad != "" {
			m.logger.Debug("packet %d: skipping ad domain %s (%s)", packet, host, ad)
			continue
		}

		sources := matchSources(entry, query, search)
		if len(sources) == 0 {
			continue
		}

		m.logger.Debug("packet %d: %s matched in %s", packet, entry.Request.URL, strings.Join(sources, ", "))
		result.Records = append(result.Records, newRecord(packet, entry, sources))
	}

	if len(result.Records) == 0 {
		result.Message = NoMatchMessage
	}
	return result, nil
}

// adDomain returns the first excluded domain contained in host
func (m *Matcher) adDomain(host string) string {
	for _, domain := range m.adDomains {
		if strings.Contains(host, domain) {
			return domain
		}
	}
	return ""
}

// matchSources runs the four checks in their fixed order
func matchSources(entry *har.Entry, query, search string) []string {
	var sources []string
	if strings.Contains(query, search) {
		sources = append(sources, SourceQuery)
	}
	for _, h := range entry.Request.Headers {
		if strings.Contains(h.Name, search) || strings.Contains(h.Value, search) {
			sources = append(sources, SourceHeader)
			break
		}
	}
	if strings.Contains(entry.Request.BodyText(), search) {
		sources = append(sources, SourceBody)
	}
	if strings.Contains(entry.Response.Content.Text, search) {
		sources = append(sources, SourceResponse)
	}
	return sources
}

// splitURL returns the authority (userinfo@host:port) and the raw query.
// URLs that net/url rejects, such as a bad percent escape or a non-numeric
// port, are split on their delimiters instead.
func splitURL(rawURL string) (authority, query string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return splitRawURL(rawURL)
	}
	authority = u.Host
	if u.User != nil {
		authority = u.User.String() + "@" + authority
	}
	return authority, u.RawQuery
}

// splitRawURL splits scheme://authority/path?query#fragment without
// validating any component
func splitRawURL(rawURL string) (authority, query string) {
	rest := rawURL
	if i := strings.IndexByte(rest, ':'); i > 0 && isScheme(rest[:i]) {
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		authority, rest = rest[:end], rest[end:]
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		query = rest[i+1:]
	}
	return authority, query
}

func isScheme(s string) bool {
	for i, c := range s {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}
