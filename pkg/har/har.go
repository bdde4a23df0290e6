package har

import (
	"encoding/json"
	"strconv"
)

// HAR represents the root HAR object following the W3C specification
type HAR struct {
	Log Log `json:"log"`
}

// Log represents the log object containing all HTTP transaction data
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Pages   []Page  `json:"pages"` // Required by HAR 1.2 spec, must not use omitempty
	Entries []Entry `json:"entries"`
	Comment string  `json:"comment,omitempty"`
}

// Creator represents the application that created the HAR file
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Comment string `json:"comment,omitempty"`
}

// Page represents a page (optional in HAR)
type Page struct {
	StartedDateTime string `json:"startedDateTime"`
	ID              string `json:"id"`
	Title           string `json:"title"`
}

// Entry represents a single HTTP transaction.
//
// Fields whose documented default differs from the Go zero value are
// pointers so that an absent field can be told apart from an empty one.
type Entry struct {
	Pageref         string   `json:"pageref,omitempty"`
	StartedDateTime *string  `json:"startedDateTime,omitempty"`
	Time            *float64 `json:"time,omitempty"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	ServerIPAddress string   `json:"serverIPAddress,omitempty"`
	Connection      string   `json:"connection,omitempty"`
	Comment         string   `json:"comment,omitempty"`
}

// Request represents the HTTP request details
type Request struct {
	Method      *string     `json:"method,omitempty"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion,omitempty"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString,omitempty"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int         `json:"headersSize,omitempty"`
	BodySize    int         `json:"bodySize,omitempty"`
}

// Response represents the HTTP response details
type Response struct {
	Status      *int        `json:"status,omitempty"`
	StatusText  string      `json:"statusText,omitempty"`
	HTTPVersion string      `json:"httpVersion,omitempty"`
	Headers     []NameValue `json:"headers,omitempty"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL,omitempty"`
	HeadersSize int         `json:"headersSize,omitempty"`
	BodySize    int         `json:"bodySize,omitempty"`
}

// NameValue represents a name-value pair for headers, query parameters, etc.
type NameValue struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// PostData represents POST data
type PostData struct {
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
	Comment  string `json:"comment,omitempty"`
}

// Content represents response content
type Content struct {
	Size     int     `json:"size"`
	MimeType *string `json:"mimeType,omitempty"`
	Text     string  `json:"text,omitempty"`
	Encoding string  `json:"encoding,omitempty"`
	Comment  string  `json:"comment,omitempty"`
}

// Unknown is the placeholder reported for absent string fields.
const Unknown = "UNKNOWN"

// MethodName returns the request method, or Unknown when it is absent.
func (r Request) MethodName() string {
	if r.Method == nil {
		return Unknown
	}
	return *r.Method
}

// BodyText returns the request body text, or "" when there is none.
func (r Request) BodyText() string {
	if r.PostData == nil {
		return ""
	}
	return r.PostData.Text
}

// ContentType returns the response MIME type, or Unknown when it is absent.
func (r Response) ContentType() string {
	if r.Content.MimeType == nil {
		return Unknown
	}
	return *r.Content.MimeType
}

// StartTime returns startedDateTime unmodified, or Unknown when it is absent.
func (e Entry) StartTime() string {
	if e.StartedDateTime == nil {
		return Unknown
	}
	return *e.StartedDateTime
}

// Elapsed returns the entry's total time.
func (e Entry) Elapsed() Millis {
	if e.Time == nil {
		return Millis{}
	}
	return Millis{Value: *e.Time, Known: true}
}

// Millis is an elapsed time in milliseconds that may be unknown.
type Millis struct {
	Value float64
	Known bool
}

// String formats the value the way it appears in reports.
func (m Millis) String() string {
	if !m.Known {
		return Unknown
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// MarshalJSON encodes a known value as a number and an unknown one as "UNKNOWN".
func (m Millis) MarshalJSON() ([]byte, error) {
	if !m.Known {
		return json.Marshal(Unknown)
	}
	return json.Marshal(m.Value)
}

// NewHAR creates a new HAR structure with proper initialization
func NewHAR(creator, version string) *HAR {
	return &HAR{
		Log: Log{
			Version: "1.2",
			Creator: Creator{
				Name:    creator,
				Version: version,
			},
			Pages:   []Page{},
			Entries: []Entry{},
		},
	}
}

// AddEntry appends an entry to the log
func (h *HAR) AddEntry(entry Entry) {
	h.Log.Entries = append(h.Log.Entries, entry)
}

// ToJSON converts HAR to JSON bytes
func (h *HAR) ToJSON() ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}
