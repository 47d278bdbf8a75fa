package netmon

import (
	"context"
	"encoding/json"

	"github.com/kuromi/browser-core/mux"
)

// RuleAction is what an Interceptor Rule does to a matched request.
type RuleAction int

const (
	ActionBlock RuleAction = iota
	ActionModify
	ActionMock
)

// InterceptedRequest is what a Rule's Match/Modify functions see and
// produce: the subset of Fetch.requestPaused's fields a rule can act on.
// Stage is "Request" for the normal request-interception pause, or
// "Response" when the pause carries response headers/status because the
// interceptor also registered a Response-stage pattern (see
// Interceptor.InspectBody).
type InterceptedRequest struct {
	RequestID string
	URL       string
	Method    string
	Headers   map[string]string
	PostData  string

	Stage              string
	ResponseStatusCode int64
	ResponseHeaders    map[string]string
}

// MockResponse is the canned response an ActionMock rule returns instead of
// letting the request reach the network.
type MockResponse struct {
	Status  int64
	Headers map[string]string
	Body    []byte
}

// Rule is one entry in an Interceptor's ordered rule list. Match decides
// whether the rule applies; exactly one of Modify/Mock is consulted,
// depending on Action.
type Rule struct {
	Name   string
	Match  func(*InterceptedRequest) bool
	Action RuleAction

	// Modify, for ActionModify, returns the request to continue with (the
	// caller may mutate and return the same InterceptedRequest).
	Modify func(*InterceptedRequest) *InterceptedRequest
	// Mock, for ActionMock, builds the canned response.
	Mock func(*InterceptedRequest) MockResponse
	// BlockReason, for ActionBlock, is a Fetch.failRequest error reason
	// ("Failed", "Aborted", "BlockedByClient", ...).
	BlockReason string

	// InspectBody, when set, is consulted only at a Response-stage pause
	// (InterceptedRequest.Stage == "Response"): the interceptor fetches and
	// decodes the response body (Fetch.getResponseBody's body is still
	// content-encoded on the wire; body.go's decodeFetchBody undoes a
	// brotli Content-Encoding before this is called) and passes it here.
	// A non-nil return replaces the response with that MockResponse; nil
	// continues the response unmodified. A rule with InspectBody set makes
	// NewInterceptor also register a Response-stage Fetch pattern.
	InspectBody func(*InterceptedRequest, []byte) *MockResponse
}

// FetchEnabler is the narrow interface the Interceptor needs from the Page
// Runtime to turn the Fetch domain on, avoiding a netmon -> page import.
type FetchEnabler interface {
	EnableFetch(ctx context.Context, patterns []map[string]any) error
}

// Interceptor scans Fetch.requestPaused events against an ordered rule
// list, first-match-wins, and resolves unmatched requests by continuing
// them unmodified.
type Interceptor struct {
	m         *mux.Multiplexer
	sessionID string
	rules     []Rule
}

// NewInterceptor enables the Fetch domain (via enabler) for every resource
// type and starts dispatching Fetch.requestPaused events against rules. It
// registers a Response-stage pattern in addition to the default Request
// stage only if some rule's InspectBody is set, since pausing twice per
// request has a real round-trip cost most callers (Block/Modify/Mock at
// the request stage) don't want to pay.
func NewInterceptor(ctx context.Context, m *mux.Multiplexer, sessionID string, enabler FetchEnabler, rules []Rule) (*Interceptor, error) {
	ic := &Interceptor{m: m, sessionID: sessionID, rules: rules}
	patterns := []map[string]any{{"urlPattern": "*", "requestStage": "Request"}}
	if needsResponseStage(rules) {
		patterns = append(patterns, map[string]any{"urlPattern": "*", "requestStage": "Response"})
	}
	if err := enabler.EnableFetch(ctx, patterns); err != nil {
		return nil, err
	}
	m.On("Fetch.requestPaused", sessionID, ic.onRequestPaused)
	return ic, nil
}

func needsResponseStage(rules []Rule) bool {
	for _, r := range rules {
		if r.InspectBody != nil {
			return true
		}
	}
	return false
}

// SetRules replaces the active rule list; rules still apply first-match-wins
// in the new order. Note that a rule added here with InspectBody set only
// sees Response-stage pauses if some rule present at NewInterceptor time
// already needed them (requestStage patterns are fixed at Fetch.enable).
func (ic *Interceptor) SetRules(rules []Rule) { ic.rules = rules }

func (ic *Interceptor) onRequestPaused(p json.RawMessage) {
	var wire struct {
		RequestID string `json:"requestId"`
		Request   struct {
			URL      string            `json:"url"`
			Method   string            `json:"method"`
			Headers  map[string]string `json:"headers"`
			PostData string            `json:"postData"`
		} `json:"request"`
		ResponseStatusCode int64 `json:"responseStatusCode"`
		ResponseHeaders    []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"responseHeaders"`
	}
	if json.Unmarshal(p, &wire) != nil {
		return
	}
	req := &InterceptedRequest{
		RequestID: wire.RequestID,
		URL:       wire.Request.URL,
		Method:    wire.Request.Method,
		Headers:   wire.Request.Headers,
		PostData:  wire.Request.PostData,
	}

	ctx := context.Background()
	if wire.ResponseStatusCode != 0 || len(wire.ResponseHeaders) > 0 {
		req.Stage = "Response"
		req.ResponseStatusCode = wire.ResponseStatusCode
		req.ResponseHeaders = make(map[string]string, len(wire.ResponseHeaders))
		for _, h := range wire.ResponseHeaders {
			req.ResponseHeaders[h.Name] = h.Value
		}
		ic.onResponsePaused(ctx, req)
		return
	}
	req.Stage = "Request"

	for _, rule := range ic.rules {
		if !rule.Match(req) {
			continue
		}
		switch rule.Action {
		case ActionBlock:
			ic.fail(ctx, req.RequestID, rule.BlockReason)
		case ActionModify:
			modified := req
			if rule.Modify != nil {
				modified = rule.Modify(req)
			}
			ic.continueRequest(ctx, modified)
		case ActionMock:
			resp := MockResponse{Status: 200}
			if rule.Mock != nil {
				resp = rule.Mock(req)
			}
			ic.fulfill(ctx, req.RequestID, resp)
		}
		return
	}
	ic.continueRequest(ctx, req)
}

// onResponsePaused handles a Response-stage pause: the first matching rule
// with InspectBody set gets the decoded body and may replace the response;
// everything else is continued untouched via Fetch.continueResponse.
func (ic *Interceptor) onResponsePaused(ctx context.Context, req *InterceptedRequest) {
	for _, rule := range ic.rules {
		if rule.InspectBody == nil || !rule.Match(req) {
			continue
		}
		body, err := ic.fetchBody(ctx, req)
		if err != nil {
			break
		}
		if resp := rule.InspectBody(req, body); resp != nil {
			ic.fulfill(ctx, req.RequestID, *resp)
			return
		}
		break
	}
	_, _ = ic.m.Send(ctx, "Fetch.continueResponse", rawJSON(map[string]any{
		"requestId": req.RequestID,
	}), ic.sessionID)
}

func (ic *Interceptor) fetchBody(ctx context.Context, req *InterceptedRequest) ([]byte, error) {
	result, err := ic.m.Send(ctx, "Fetch.getResponseBody", rawJSON(map[string]any{
		"requestId": req.RequestID,
	}), ic.sessionID)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	if !wire.Base64Encoded {
		return []byte(wire.Body), nil
	}
	return decodeFetchBody(wire.Body, req.ResponseHeaders["content-encoding"])
}

func (ic *Interceptor) continueRequest(ctx context.Context, req *InterceptedRequest) {
	params := map[string]any{"requestId": req.RequestID}
	if req.URL != "" {
		params["url"] = req.URL
	}
	if req.Method != "" {
		params["method"] = req.Method
	}
	if req.PostData != "" {
		params["postData"] = encodeFetchBody([]byte(req.PostData))
	}
	if len(req.Headers) > 0 {
		hdrs := make([]map[string]string, 0, len(req.Headers))
		for k, v := range req.Headers {
			hdrs = append(hdrs, map[string]string{"name": k, "value": v})
		}
		params["headers"] = hdrs
	}
	_, _ = ic.m.Send(ctx, "Fetch.continueRequest", rawJSON(params), ic.sessionID)
}

func (ic *Interceptor) fail(ctx context.Context, requestID, reason string) {
	if reason == "" {
		reason = "BlockedByClient"
	}
	_, _ = ic.m.Send(ctx, "Fetch.failRequest", rawJSON(map[string]any{
		"requestId": requestID, "errorReason": reason,
	}), ic.sessionID)
}

func (ic *Interceptor) fulfill(ctx context.Context, requestID string, resp MockResponse) {
	hdrs := make([]map[string]string, 0, len(resp.Headers))
	for k, v := range resp.Headers {
		hdrs = append(hdrs, map[string]string{"name": k, "value": v})
	}
	status := resp.Status
	if status == 0 {
		status = 200
	}
	_, _ = ic.m.Send(ctx, "Fetch.fulfillRequest", rawJSON(map[string]any{
		"requestId":       requestID,
		"responseCode":    status,
		"responseHeaders": hdrs,
		"body":            encodeFetchBody(resp.Body),
	}), ic.sessionID)
}
