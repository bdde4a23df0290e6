package matcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpseal/harsearch/pkg/har"
	"github.com/httpseal/harsearch/pkg/logger"
)

const joke = "tell me a joke"

// entryJSON is a minimal HAR entry used to build test logs
type entryJSON struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     string
	Response string
	MimeType string
}

func (e entryJSON) toMap() map[string]any {
	headers := []map[string]string{}
	for name, value := range e.Headers {
		headers = append(headers, map[string]string{"name": name, "value": value})
	}
	request := map[string]any{
		"method":  e.Method,
		"url":     e.URL,
		"headers": headers,
	}
	if e.Body != "" {
		request["postData"] = map[string]any{"mimeType": "application/json", "text": e.Body}
	}
	content := map[string]any{"size": len(e.Response), "text": e.Response}
	if e.MimeType != "" {
		content["mimeType"] = e.MimeType
	}
	return map[string]any{
		"startedDateTime": "2024-05-01T10:00:00.000Z",
		"time":            42.5,
		"request":         request,
		"response":        map[string]any{"status": 200, "content": content},
	}
}

// makeHAR builds a HAR document from the given entries
func makeHAR(t *testing.T, entries ...entryJSON) []byte {
	t.Helper()
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.toMap())
	}
	data, err := json.Marshal(map[string]any{"log": map[string]any{"version": "1.2", "entries": items}})
	require.NoError(t, err)
	return data
}

func newTestMatcher() *Matcher {
	return New(DefaultAdDomains())
}

func TestMatcher_RawQueryIsNotDecoded(t *testing.T) {
	// Arrange
	data := makeHAR(t, entryJSON{Method: "POST", URL: "https://example.com/api?x=tell+me+a+joke"})

	// Act
	result, err := newTestMatcher().Match(data, joke)

	// Assert
	require.NoError(t, err)
	assert.True(t, result.NoMatch())
	assert.Equal(t, NoMatchMessage, result.Message)
	assert.Empty(t, result.Records)
}

func TestMatcher_ResponseContentMatch(t *testing.T) {
	data := makeHAR(t, entryJSON{
		Method:   "POST",
		URL:      "https://example.com/api?x=tell+me+a+joke",
		Response: "here is a joke: tell me a joke please",
		MimeType: "text/plain",
	})

	result, err := newTestMatcher().Match(data, joke)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, 1, rec.PacketNumber)
	assert.Equal(t, "https://example.com/api?x=tell+me+a+joke", rec.URL)
	assert.Equal(t, "POST", rec.Method)
	require.NotNil(t, rec.Status)
	assert.Equal(t, 200, *rec.Status)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", rec.StartTime)
	assert.Equal(t, "42.5", rec.Elapsed.String())
	assert.Equal(t, SourceResponse, rec.MatchSources)
	assert.Equal(t, "text/plain", rec.ContentType)
	assert.Empty(t, result.Message)
	assert.False(t, result.NoMatch())
}

func TestMatcher_GetIsIgnored(t *testing.T) {
	data := makeHAR(t,
		entryJSON{Method: "GET", URL: "https://example.com/a", Body: joke, Response: joke},
		entryJSON{Method: "post", URL: "https://example.com/b", Body: joke},
	)

	result, err := newTestMatcher().Match(data, joke)

	require.NoError(t, err)
	assert.True(t, result.NoMatch())
}

func TestMatcher_AdDomainsExcluded(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"subdomain", "https://ads.facebook.com/tr"},
		{"exact", "https://doubleclick.net/x"},
		{"embedded substring", "https://notfacebook.com.example.org/x"},
		{"analytics", "https://www.google-analytics.com/collect?v=1"},
		{"with port", "https://twitter.com:8443/i/api"},
		{"userinfo", "https://user@stats.g.doubleclick.net/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeHAR(t, entryJSON{
				Method:   "POST",
				URL:      tt.url + "?q=tell me a joke",
				Headers:  map[string]string{joke: joke},
				Body:     joke,
				Response: joke,
			})

			result, err := newTestMatcher().Match(data, joke)

			require.NoError(t, err)
			assert.True(t, result.NoMatch())
		})
	}
}

func TestMatcher_PathDoesNotTriggerExclusion(t *testing.T) {
	data := makeHAR(t, entryJSON{Method: "POST", URL: "https://example.com/share/facebook.com", Body: joke})

	result, err := newTestMatcher().Match(data, joke)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
}

func TestMatcher_InjectedAdDomains(t *testing.T) {
	data := makeHAR(t,
		entryJSON{Method: "POST", URL: "https://tracker.internal/x", Body: joke},
		entryJSON{Method: "POST", URL: "https://facebook.com/x", Body: joke},
	)

	result, err := New([]string{"tracker.internal"}).Match(data, joke)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.Records[0].PacketNumber)
}

func TestMatcher_AllSourcesInCheckOrder(t *testing.T) {
	data := makeHAR(t, entryJSON{
		Method:   "POST",
		URL:      "https://example.com/api?prompt=needle",
		Headers:  map[string]string{"X-Prompt": "needle", "X-Needle": "other"},
		Body:     `{"prompt":"needle"}`,
		Response: "needle",
	})

	result, err := newTestMatcher().Match(data, "needle")

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Request Query Parameter, Request Header, Request Body, Response Content", result.Records[0].MatchSources)
	assert.Equal(t, []string{SourceQuery, SourceHeader, SourceBody, SourceResponse}, result.Records[0].Sources())
}

func TestMatcher_HeaderNameMatches(t *testing.T) {
	data := makeHAR(t, entryJSON{
		Method:  "POST",
		URL:     "https://example.com/api",
		Headers: map[string]string{"X-Needle-Id": "1"},
	})

	result, err := newTestMatcher().Match(data, "Needle")

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, SourceHeader, result.Records[0].MatchSources)
}

func TestMatcher_CaseSensitive(t *testing.T) {
	data := makeHAR(t, entryJSON{Method: "POST", URL: "https://example.com/api", Body: "Tell Me A Joke"})

	result, err := newTestMatcher().Match(data, joke)

	require.NoError(t, err)
	assert.True(t, result.NoMatch())
}

func TestMatcher_PacketNumbersKeepGaps(t *testing.T) {
	data := makeHAR(t,
		entryJSON{Method: "POST", URL: "https://example.com/1", Body: joke},
		entryJSON{Method: "GET", URL: "https://example.com/2", Body: joke},
		entryJSON{Method: "POST", URL: "https://facebook.com/3", Body: joke},
		entryJSON{Method: "POST", URL: "https://example.com/4"},
		entryJSON{Method: "POST", URL: "https://example.com/5", Response: joke},
	)

	result, err := newTestMatcher().Match(data, joke)

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.Records[0].PacketNumber)
	assert.Equal(t, 5, result.Records[1].PacketNumber)
	assert.Equal(t, "https://example.com/5", result.Records[1].URL)
}

func TestMatcher_Idempotent(t *testing.T) {
	data := makeHAR(t,
		entryJSON{Method: "POST", URL: "https://example.com/1", Body: joke},
		entryJSON{Method: "POST", URL: "https://example.com/2", Response: joke},
	)
	m := newTestMatcher()

	first, err := m.Match(data, joke)
	require.NoError(t, err)
	second, err := m.Match(data, joke)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMatcher_DefaultsForMissingFields(t *testing.T) {
	data := []byte(`{"log":{"entries":[
		{"request":{"method":"POST","url":"https://example.com/x","postData":{"text":"needle"}}, "response":{}}
	]}}`)

	result, err := newTestMatcher().Match(data, "needle")

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Nil(t, rec.Status)
	assert.Equal(t, "UNKNOWN", rec.StartTime)
	assert.False(t, rec.Elapsed.Known)
	assert.Equal(t, "UNKNOWN", rec.Elapsed.String())
	assert.Equal(t, "UNKNOWN", rec.ContentType)

	encoded, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"packet_number": 1,
		"url": "https://example.com/x",
		"method": "POST",
		"status": null,
		"start_time": "UNKNOWN",
		"time_taken_ms": "UNKNOWN",
		"match_sources": "Request Body",
		"transaction_type": "UNKNOWN"
	}`, string(encoded))
}

func TestMatcher_MalformedEntriesAreSkippedNotFatal(t *testing.T) {
	data := []byte(`{"log":{"entries":[
		"not an entry",
		{"request":{"method":"POST","url":"https://example.com/x","headers":"oops"},"response":{"content":{"text":"needle"}}},
		{"request":{"method":"POST","url":"https://example.com/y","headers":[1,{"name":"needle","value":2}]}}
	]}}`)

	result, err := newTestMatcher().Match(data, "needle")

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Records[0].PacketNumber)
	assert.Equal(t, SourceResponse, result.Records[0].MatchSources)
	assert.Equal(t, 3, result.Records[1].PacketNumber)
	assert.Equal(t, SourceHeader, result.Records[1].MatchSources)
}

func TestMatcher_InvalidJSON(t *testing.T) {
	_, err := newTestMatcher().Match([]byte(`{"log":`), joke)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestMatcher_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing log", `{"entries":[]}`},
		{"missing entries", `{"log":{"version":"1.2"}}`},
		{"log not object", `{"log":[]}`},
		{"entries not array", `{"log":{"entries":{}}}`},
		{"top-level array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newTestMatcher().Match([]byte(tt.data), joke)

			assert.Nil(t, result)
			var structErr *StructuralError
			require.True(t, errors.As(err, &structErr))
			assert.Contains(t, err.Error(), "invalid HAR file structure")
		})
	}
}

func TestMatcher_EmptyEntriesIsNoMatch(t *testing.T) {
	result, err := newTestMatcher().Match([]byte(`{"log":{"entries":[]}}`), joke)

	require.NoError(t, err)
	assert.True(t, result.NoMatch())
	assert.Equal(t, NoMatchMessage, result.Message)
}

func TestMatcher_EmptySearch(t *testing.T) {
	_, err := newTestMatcher().Match(makeHAR(t), "")
	assert.ErrorIs(t, err, ErrEmptySearch)

	_, err = newTestMatcher().MatchEntries(nil, "")
	assert.ErrorIs(t, err, ErrEmptySearch)
}

func TestMatcher_MatchLog(t *testing.T) {
	method := "POST"
	doc := har.NewHAR("test", "0")
	doc.AddEntry(har.Entry{Request: har.Request{Method: &method, URL: "https://example.com/x?needle"}})

	result, err := newTestMatcher().MatchLog(doc, "needle")

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, SourceQuery, result.Records[0].MatchSources)
	assert.Same(t, &doc.Log.Entries[0], result.Records[0].Entry)
	assert.Len(t, result.Entries(), 1)

	_, err = newTestMatcher().MatchLog(nil, "needle")
	var structErr *StructuralError
	assert.True(t, errors.As(err, &structErr))
}

func TestDefaultAdDomains_ReturnsCopy(t *testing.T) {
	domains := DefaultAdDomains()
	domains[0] = "changed"

	assert.Equal(t, "doubleclick.net", DefaultAdDomains()[0])
	assert.Len(t, DefaultAdDomains(), 8)
}

func TestMatcher_WithLoggerTracesDecisions(t *testing.T) {
	var buf bytes.Buffer
	data := makeHAR(t,
		entryJSON{Method: "POST", URL: "https://ads.linkedin.com/collect", Body: joke},
		entryJSON{Method: "POST", URL: "https://example.com/x", Body: joke},
	)

	_, err := New(DefaultAdDomains(), WithLogger(logger.NewWriter(&buf, true))).Match(data, joke)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "packet 1: skipping ad domain ads.linkedin.com (ads.linkedin.com)")
	assert.Contains(t, buf.String(), "packet 2: https://example.com/x matched in Request Body")
}

func TestMatcher_URLsRejectedByNetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		search  string
		sources string // "" means excluded or unmatched
	}{
		{"bad escape on ad domain", "https://ads.facebook.com/tr%zz", joke, ""},
		{"non-numeric port on ad domain", "https://www.facebook.com:abc/tr", joke, ""},
		{"bad escape keeps query", "https://example.com/a%zz?q=needle", "needle", SourceQuery},
		{"non-numeric port keeps query", "https://example.com:abc/x?q=needle#frag", "needle", SourceQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ""
			if tt.search == joke {
				body = joke
			}
			data := makeHAR(t, entryJSON{Method: "POST", URL: tt.url, Body: body})

			result, err := newTestMatcher().Match(data, tt.search)

			require.NoError(t, err)
			if tt.sources == "" {
				assert.True(t, result.NoMatch())
				return
			}
			require.Len(t, result.Records, 1)
			assert.Equal(t, tt.sources, result.Records[0].MatchSources)
		})
	}
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		raw       string
		authority string
		query     string
	}{
		{"https://example.com/api?x=tell+me+a+joke", "example.com", "x=tell+me+a+joke"},
		{"https://user@host:8443/p?a=1#f", "user@host:8443", "a=1"},
		{"https://ads.facebook.com/tr%zz", "ads.facebook.com", ""},
		{"https://www.facebook.com:abc/tr", "www.facebook.com:abc", ""},
		{"https://example.com/a%zz?q=needle#frag", "example.com", "q=needle"},
		{"https://example.com:abc?q=1", "example.com:abc", "q=1"},
		{"/relative%zz?q=1", "", "q=1"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			authority, query := splitURL(tt.raw)

			assert.Equal(t, tt.authority, authority)
			assert.Equal(t, tt.query, query)
		})
	}
}
