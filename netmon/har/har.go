// Package har assembles HAR 1.2 archives from netmon.Monitor records.
package har

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kuromi/browser-core/netmon"
)

// HAR is the top-level HAR 1.2 document (http://www.softwareishard.com/blog/har-12-spec/).
type HAR struct {
	Log Log `json:"log"`
}

type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Pages   []Page  `json:"pages,omitempty"`
	Entries []Entry `json:"entries"`
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Page struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	StartedDateTime string `json:"startedDateTime"`
}

type NameValuePair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

type Request struct {
	Method      string          `json:"method"`
	URL         string          `json:"url"`
	HTTPVersion string          `json:"httpVersion"`
	Headers     []NameValuePair `json:"headers"`
	QueryString []NameValuePair `json:"queryString"`
	HeadersSize int64           `json:"headersSize"`
	BodySize    int64           `json:"bodySize"`
}

type Response struct {
	Status      int64           `json:"status"`
	StatusText  string          `json:"statusText"`
	HTTPVersion string          `json:"httpVersion"`
	Headers     []NameValuePair `json:"headers"`
	Content     Content         `json:"content"`
	RedirectURL string          `json:"redirectURL"`
	HeadersSize int64           `json:"headersSize"`
	BodySize    int64           `json:"bodySize"`
}

type Timings struct {
	Blocked float64 `json:"blocked"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
	SSL     float64 `json:"ssl"`
}

type Entry struct {
	Pageref         string   `json:"pageref,omitempty"`
	StartedDateTime string   `json:"startedDateTime"`
	Time            float64  `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Timings         Timings  `json:"timings"`
}

// Assemble builds a HAR document from a Monitor's captured records.
func Assemble(creator Creator, records []*netmon.RequestRecord) HAR {
	h := HAR{Log: Log{
		Version: "1.2",
		Creator: creator,
		Entries: make([]Entry, 0, len(records)),
	}}
	for _, r := range records {
		if r.Response == nil {
			continue
		}
		h.Log.Entries = append(h.Log.Entries, buildEntry(r))
	}
	return h
}

func buildEntry(r *netmon.RequestRecord) Entry {
	resp := r.Response
	timings := buildTimings(resp.Timing)
	bodySize := int64(-1)
	if r.Finished {
		bodySize = r.EncodedDataLength
	}
	entry := Entry{
		Pageref:         r.PageRef,
		StartedDateTime: r.WallTime.Format(time.RFC3339Nano),
		Request: Request{
			Method:      r.Method,
			URL:         r.URL,
			HTTPVersion: resp.Protocol,
			Headers:     headerPairs(r.Headers),
			QueryString: []NameValuePair{},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Response: Response{
			Status:      resp.Status,
			StatusText:  resp.StatusText,
			HTTPVersion: resp.Protocol,
			Headers:     headerPairs(resp.Headers),
			Content:     Content{MimeType: resp.MimeType},
			RedirectURL: headerValue(resp.Headers, "location"),
			HeadersSize: -1,
			BodySize:    bodySize,
		},
		Timings: timings,
	}
	entry.Time = totalTime(timings)
	return entry
}

func buildTimings(t *netmon.ResourceTiming) Timings {
	if t == nil {
		return Timings{Blocked: -1, DNS: -1, Connect: -1, Send: -1, Wait: -1, Receive: -1, SSL: -1}
	}
	wait := float64(-1)
	if t.SendEnd >= 0 && t.ReceiveHeadersEnd >= 0 {
		wait = t.ReceiveHeadersEnd - t.SendEnd
	}
	return Timings{
		Blocked: -1,
		DNS:     phaseOrBlocked(t.DNSStart, t.DNSEnd),
		Connect: phaseOrBlocked(t.ConnectStart, t.ConnectEnd),
		SSL:     phaseOrBlocked(t.SslStart, t.SslEnd),
		Send:    phaseOrBlocked(t.SendStart, t.SendEnd),
		Wait:    wait,
		Receive: -1,
	}
}

func phaseOrBlocked(start, end float64) float64 {
	if start < 0 || end < 0 {
		return -1
	}
	return end - start
}

func totalTime(t Timings) float64 {
	total := 0.0
	for _, v := range []float64{t.Blocked, t.DNS, t.Connect, t.Send, t.Wait, t.Receive, t.SSL} {
		if v > 0 {
			total += v
		}
	}
	return total
}

func headerPairs(headers map[string]string) []NameValuePair {
	pairs := make([]NameValuePair, 0, len(headers))
	for k, v := range headers {
		pairs = append(pairs, NameValuePair{Name: k, Value: v})
	}
	return pairs
}

func headerValue(headers map[string]string, wantLower string) string {
	for k, v := range headers {
		if strings.EqualFold(k, wantLower) {
			return v
		}
	}
	return ""
}

// JSON is a thin convenience wrapper returning h as indented JSON, so
// callers need not import encoding/json just for this one call.
func (h HAR) JSON() ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}
