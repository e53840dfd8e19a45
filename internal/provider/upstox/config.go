// Package upstox fetches historical candles from the Upstox v3 REST API.
package upstox

import (
	"net"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://api.upstox.com"

// Config holds configuration for the Upstox API client.
type Config struct {
	AccessToken       string        // bearer token, passed through untouched
	BaseURL           string        // e.g. "https://api.upstox.com"
	Timeout           time.Duration // whole-request timeout
	RequestsPerSecond float64       // 0 disables pacing
}

// NewHTTPClient returns a client with explicit dial and TLS timeouts;
// http.DefaultClient has none.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
