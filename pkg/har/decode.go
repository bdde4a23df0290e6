package har

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ParseError reports input that is not valid JSON
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "failed to parse HAR file: file is not valid JSON"
	}
	return fmt.Sprintf("failed to parse HAR file: file is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StructuralError reports valid JSON that lacks the log container or its
// entries sequence
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("invalid HAR file structure: %s", e.Reason)
}

// Decode parses a HAR document.
//
// Only the top-level shape is strict: the root must be an object with a
// "log" object holding an "entries" array. Everything inside an entry is
// decoded leniently; a missing or wrong-typed field is treated as absent.
func Decode(data []byte) (*HAR, error) {
	if !json.Valid(data) {
		var v any
		return nil, &ParseError{Err: json.Unmarshal(data, &v)}
	}

	root := object(data)
	if root == nil {
		return nil, &StructuralError{Reason: "top-level value is not an object"}
	}
	logRaw, ok := root["log"]
	if !ok {
		return nil, &StructuralError{Reason: `missing "log"`}
	}
	logObj := object(logRaw)
	if logObj == nil {
		return nil, &StructuralError{Reason: `"log" is not an object`}
	}
	entriesRaw, ok := logObj["entries"]
	if !ok {
		return nil, &StructuralError{Reason: `missing "log.entries"`}
	}

	var items []json.RawMessage
	if isNull(entriesRaw) || json.Unmarshal(entriesRaw, &items) != nil {
		return nil, &StructuralError{Reason: `"log.entries" is not an array`}
	}

	doc := &HAR{
		Log: Log{
			Version: str(logObj["version"]),
			Entries: make([]Entry, len(items)),
		},
	}
	if creator := object(logObj["creator"]); creator != nil {
		doc.Log.Creator = Creator{Name: str(creator["name"]), Version: str(creator["version"])}
	}
	for i, item := range items {
		// Never fails; a malformed entry decodes to the zero Entry so that
		// positions in the log are preserved.
		_ = doc.Log.Entries[i].UnmarshalJSON(item)
	}
	return doc, nil
}

// UnmarshalJSON decodes an entry leniently
func (e *Entry) UnmarshalJSON(data []byte) error {
	*e = Entry{}
	f := object(data)
	if f == nil {
		return nil
	}
	e.Pageref = str(f["pageref"])
	e.StartedDateTime = optString(f["startedDateTime"])
	e.Time = optFloat(f["time"])
	e.ServerIPAddress = str(f["serverIPAddress"])
	e.Connection = str(f["connection"])
	e.Comment = str(f["comment"])
	_ = e.Request.UnmarshalJSON(f["request"])
	_ = e.Response.UnmarshalJSON(f["response"])
	return nil
}

// UnmarshalJSON decodes a request leniently
func (r *Request) UnmarshalJSON(data []byte) error {
	*r = Request{}
	f := object(data)
	if f == nil {
		return nil
	}
	r.Method = optString(f["method"])
	r.URL = str(f["url"])
	r.HTTPVersion = str(f["httpVersion"])
	r.Headers = nameValues(f["headers"])
	r.QueryString = nameValues(f["queryString"])
	if pd := object(f["postData"]); pd != nil {
		r.PostData = &PostData{
			MimeType: str(pd["mimeType"]),
			Text:     str(pd["text"]),
			Comment:  str(pd["comment"]),
		}
	}
	r.HeadersSize = intOr(f["headersSize"])
	r.BodySize = intOr(f["bodySize"])
	return nil
}

// UnmarshalJSON decodes a response leniently
func (r *Response) UnmarshalJSON(data []byte) error {
	*r = Response{}
	f := object(data)
	if f == nil {
		return nil
	}
	r.Status = optInt(f["status"])
	r.StatusText = str(f["statusText"])
	r.HTTPVersion = str(f["httpVersion"])
	r.Headers = nameValues(f["headers"])
	r.RedirectURL = str(f["redirectURL"])
	r.HeadersSize = intOr(f["headersSize"])
	r.BodySize = intOr(f["bodySize"])
	if c := object(f["content"]); c != nil {
		r.Content = Content{
			Size:     intOr(c["size"]),
			MimeType: optString(c["mimeType"]),
			Text:     str(c["text"]),
			Encoding: str(c["encoding"]),
			Comment:  str(c["comment"]),
		}
	}
	return nil
}

// Helper functions

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// object returns the members of a JSON object, or nil when raw is not one
func object(raw json.RawMessage) map[string]json.RawMessage {
	if isNull(raw) {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func optString(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func str(raw json.RawMessage) string {
	if s := optString(raw); s != nil {
		return *s
	}
	return ""
}

func optFloat(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// optInt accepts integral numbers that fit an int, including forms like 200.0
func optInt(raw json.RawMessage) *int {
	f := optFloat(raw)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	if *f < math.MinInt || *f >= math.MaxInt {
		return nil
	}
	n := int(*f)
	return &n
}

func intOr(raw json.RawMessage) int {
	if n := optInt(raw); n != nil {
		return *n
	}
	return 0
}

// nameValues decodes a sequence of {name, value} objects, skipping items
// that are not objects
func nameValues(raw json.RawMessage) []NameValue {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]NameValue, 0, len(items))
	for _, item := range items {
		f := object(item)
		if f == nil {
			continue
		}
		out = append(out, NameValue{
			Name:    str(f["name"]),
			Value:   str(f["value"]),
			Comment: str(f["comment"]),
		})
	}
	return out
}
