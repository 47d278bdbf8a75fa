package netmon

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeFetchBody decodes a Fetch-domain response body, which (unlike
// Network.getResponseBody) is handed back exactly as the wire sent it:
// Base64 of the raw, still content-encoded bytes. Interceptor.InspectBody
// rules inspecting a Response-stage pause go through this (see
// Interceptor.fetchBody in interceptor.go) to see a brotli-encoded
// body decoded; Network domain callers never hit this path since CDP
// already decodes for them there.
func decodeFetchBody(b64 string, contentEncoding string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(strings.ToLower(contentEncoding), "br") {
		return raw, nil
	}
	r := brotli.NewReader(strings.NewReader(string(raw)))
	return io.ReadAll(r)
}

// encodeFetchBody base64-encodes body for Fetch.fulfillRequest, which takes
// the response body as plain (uncompressed) bytes and lets Chrome handle
// any Content-Encoding negotiation on the wire to the renderer.
func encodeFetchBody(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}
