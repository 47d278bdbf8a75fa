// Package netmon implements passive request/response capture (Monitor) and
// active Fetch-domain interception (Interceptor), plus a HAR 1.2 recorder
// built on top of the Monitor's correlated records.
package netmon

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kuromi/browser-core/mux"
)

// ResourceTiming mirrors CDP's Network.ResourceTiming, values in
// milliseconds relative to the request's wall-clock start; -1 means the
// phase did not occur.
type ResourceTiming struct {
	DNSStart, DNSEnd         float64
	ConnectStart, ConnectEnd float64
	SslStart, SslEnd         float64
	SendStart, SendEnd       float64
	ReceiveHeadersEnd        float64
}

// RequestRecord is one correlated request/response pair.
type RequestRecord struct {
	RequestID    string
	Method       string
	URL          string
	Headers      map[string]string
	WallTime     time.Time
	ResourceType string
	PageRef      string

	Response  *ResponseRecord
	Finished  bool
	Failed    bool
	ErrorText string

	// EncodedDataLength is the total bytes received over the wire, reported
	// by Network.loadingFinished.
	EncodedDataLength int64
}

// ResponseRecord is the response half of a RequestRecord, populated once
// Network.responseReceived fires.
type ResponseRecord struct {
	Status     int64
	StatusText string
	Headers    map[string]string
	MimeType   string
	Protocol   string
	Timing     *ResourceTiming
}

// Monitor passively records every request/response pair on a session,
// correlating lifecycle events by requestId. It never blocks the page:
// CDP events it can't correlate are simply dropped.
type Monitor struct {
	m         *mux.Multiplexer
	sessionID string

	mu      sync.Mutex
	order   []string
	byID    map[string]*RequestRecord
	updated chan struct{}
}

// NewMonitor subscribes to the Network domain's request lifecycle events.
// The caller is responsible for having enabled the Network domain already
// (Page Runtime does this by default).
func NewMonitor(m *mux.Multiplexer, sessionID string) *Monitor {
	mon := &Monitor{
		m:         m,
		sessionID: sessionID,
		byID:      make(map[string]*RequestRecord),
		updated:   make(chan struct{}),
	}
	m.On("Network.requestWillBeSent", sessionID, mon.onRequestWillBeSent)
	m.On("Network.responseReceived", sessionID, mon.onResponseReceived)
	m.On("Network.loadingFinished", sessionID, mon.onLoadingFinished)
	m.On("Network.loadingFailed", sessionID, mon.onLoadingFailed)
	return mon
}

func (mon *Monitor) notify() {
	mon.mu.Lock()
	close(mon.updated)
	mon.updated = make(chan struct{})
	mon.mu.Unlock()
}

func (mon *Monitor) onRequestWillBeSent(p json.RawMessage) {
	var wire struct {
		RequestID string `json:"requestId"`
		LoaderID  string `json:"loaderId"`
		Request   struct {
			URL     string            `json:"url"`
			Method  string            `json:"method"`
			Headers map[string]string `json:"headers"`
		} `json:"request"`
		Type      string  `json:"type"`
		Timestamp float64 `json:"timestamp"`
	}
	if json.Unmarshal(p, &wire) != nil {
		return
	}
	rec := &RequestRecord{
		RequestID:    wire.RequestID,
		Method:       wire.Request.Method,
		URL:          wire.Request.URL,
		Headers:      wire.Request.Headers,
		WallTime:     time.Now(),
		ResourceType: wire.Type,
		PageRef:      wire.LoaderID,
	}
	mon.mu.Lock()
	mon.byID[wire.RequestID] = rec
	mon.order = append(mon.order, wire.RequestID)
	mon.mu.Unlock()
	mon.notify()
}

func (mon *Monitor) onResponseReceived(p json.RawMessage) {
	var wire struct {
		RequestID string `json:"requestId"`
		Response  struct {
			Status     int64             `json:"status"`
			StatusText string            `json:"statusText"`
			Headers    map[string]string `json:"headers"`
			MimeType   string            `json:"mimeType"`
			Protocol   string            `json:"protocol"`
			Timing     *struct {
				DNSStart          float64 `json:"dnsStart"`
				DNSEnd            float64 `json:"dnsEnd"`
				ConnectStart      float64 `json:"connectStart"`
				ConnectEnd        float64 `json:"connectEnd"`
				SslStart          float64 `json:"sslStart"`
				SslEnd            float64 `json:"sslEnd"`
				SendStart         float64 `json:"sendStart"`
				SendEnd           float64 `json:"sendEnd"`
				ReceiveHeadersEnd float64 `json:"receiveHeadersEnd"`
			} `json:"timing"`
		} `json:"response"`
	}
	if json.Unmarshal(p, &wire) != nil {
		return
	}
	mon.mu.Lock()
	rec, ok := mon.byID[wire.RequestID]
	if !ok {
		mon.mu.Unlock()
		return
	}
	resp := &ResponseRecord{
		Status:     wire.Response.Status,
		StatusText: wire.Response.StatusText,
		Headers:    wire.Response.Headers,
		MimeType:   wire.Response.MimeType,
		Protocol:   wire.Response.Protocol,
	}
	if wire.Response.Timing != nil {
		t := wire.Response.Timing
		resp.Timing = &ResourceTiming{
			DNSStart: t.DNSStart, DNSEnd: t.DNSEnd,
			ConnectStart: t.ConnectStart, ConnectEnd: t.ConnectEnd,
			SslStart: t.SslStart, SslEnd: t.SslEnd,
			SendStart: t.SendStart, SendEnd: t.SendEnd,
			ReceiveHeadersEnd: t.ReceiveHeadersEnd,
		}
	}
	rec.Response = resp
	mon.mu.Unlock()
	mon.notify()
}

func (mon *Monitor) onLoadingFinished(p json.RawMessage) {
	var wire struct {
		RequestID         string  `json:"requestId"`
		EncodedDataLength float64 `json:"encodedDataLength"`
	}
	if json.Unmarshal(p, &wire) != nil {
		return
	}
	mon.mu.Lock()
	if rec, ok := mon.byID[wire.RequestID]; ok {
		rec.Finished = true
		rec.EncodedDataLength = int64(wire.EncodedDataLength)
	}
	mon.mu.Unlock()
	mon.notify()
}

func (mon *Monitor) onLoadingFailed(p json.RawMessage) {
	var wire struct {
		RequestID string `json:"requestId"`
		ErrorText string `json:"errorText"`
	}
	if json.Unmarshal(p, &wire) != nil {
		return
	}
	mon.mu.Lock()
	if rec, ok := mon.byID[wire.RequestID]; ok {
		rec.Failed = true
		rec.ErrorText = wire.ErrorText
	}
	mon.mu.Unlock()
	mon.notify()
}

// GetRequests returns a snapshot of every record seen so far, in the order
// requests were first observed.
func (mon *Monitor) GetRequests() []*RequestRecord {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	out := make([]*RequestRecord, 0, len(mon.order))
	for _, id := range mon.order {
		out = append(out, mon.byID[id])
	}
	return out
}

// GetResponseBody fetches the decoded response body via
// Network.getResponseBody. CDP returns the
// body already content-decoded; Base64 indicates binary content.
func (mon *Monitor) GetResponseBody(ctx context.Context, requestID string) (body string, base64Encoded bool, err error) {
	result, err := mon.m.Send(ctx, "Network.getResponseBody", rawJSON(map[string]any{"requestId": requestID}), mon.sessionID)
	if err != nil {
		return "", false, err
	}
	var wire struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return "", false, err
	}
	return wire.Body, wire.Base64Encoded, nil
}

func (mon *Monitor) snapshotChannel() (<-chan struct{}, []*RequestRecord) {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	out := make([]*RequestRecord, 0, len(mon.order))
	for _, id := range mon.order {
		out = append(out, mon.byID[id])
	}
	return mon.updated, out
}

// WaitForRequest blocks until a request matching predicate has been
// observed.
func (mon *Monitor) WaitForRequest(ctx context.Context, predicate func(*RequestRecord) bool) (*RequestRecord, error) {
	for {
		ch, records := mon.snapshotChannel()
		for _, r := range records {
			if predicate(r) {
				return r, nil
			}
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WaitForResponse blocks until a request matching predicate has received a
// response.
func (mon *Monitor) WaitForResponse(ctx context.Context, predicate func(*RequestRecord) bool) (*RequestRecord, error) {
	for {
		ch, records := mon.snapshotChannel()
		for _, r := range records {
			if r.Response != nil && predicate(r) {
				return r, nil
			}
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type rawJSONBytes json.RawMessage

func (r rawJSONBytes) MarshalJSON() ([]byte, error) { return r, nil }

func rawJSON(v map[string]any) json.Marshaler {
	b, _ := json.Marshal(v)
	return rawJSONBytes(b)
}
