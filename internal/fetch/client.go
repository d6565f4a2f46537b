// Package fetch provides the outbound HTTP pieces of the harvest
// pipeline: detail page scraping and attachment downloads.
package fetch

import (
	"net/http"
	"time"
)

// ClientConfig tunes the shared outbound HTTP client.
type ClientConfig struct {
	UserAgent        string
	Timeout          time.Duration
	MaxRetries       int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	MaxDownloadBytes int64
}

// NewHTTPClient builds the shared client with a tuned transport.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          128,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.Timeout,
			ForceAttemptHTTP2:     true,
		},
	}
}

// backoff returns the wait before retry attempt n (0-based), doubling
// from the initial delay and capped at the max.
func backoff(cfg ClientConfig, attempt int) time.Duration {
	d := cfg.BackoffInitial
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if cfg.BackoffMax > 0 && d >= cfg.BackoffMax {
			return cfg.BackoffMax
		}
	}
	return d
}
