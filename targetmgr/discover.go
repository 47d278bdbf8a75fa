package targetmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// VersionInfo is the /json/version response, used to discover the
// browser-level WebSocket URL.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
}

// PageInfo is one entry of /json/list or /json/new.
type PageInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverVersion queries the DevTools HTTP port for the browser-level
// WebSocket endpoint. host is an already-listening "host:port"; this
// package does not launch or manage the browser process.
func DiscoverVersion(ctx context.Context, host string) (*VersionInfo, error) {
	var v VersionInfo
	if err := getJSON(ctx, host, "/json/version", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DiscoverList queries /json/list for every inspectable target.
func DiscoverList(ctx context.Context, host string) ([]PageInfo, error) {
	var pages []PageInfo
	if err := getJSON(ctx, host, "/json/list", &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// DiscoverNew opens a new target via /json/new, used as a fallback when the
// Target CDP domain is unavailable.
func DiscoverNew(ctx context.Context, host, url string) (*PageInfo, error) {
	path := "/json/new"
	if url != "" {
		path += "?" + url
	}
	var p PageInfo
	if err := getJSON(ctx, host, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func getJSON(ctx context.Context, host, path string, out any) error {
	u := fmt.Sprintf("http://%s%s", strings.TrimPrefix(host, "http://"), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("targetmgr: discovery request to %s returned %s", u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
