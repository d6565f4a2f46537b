package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Downloader implements guidance.AttachmentFetcher over plain HTTP with
// bounded retries. Attachments are binary blobs, so it bypasses the
// HTML-oriented scraping stack entirely.
type Downloader struct {
	client *http.Client
	cfg    ClientConfig
	logger *zap.Logger
}

// NewDownloader constructs a Downloader.
func NewDownloader(client *http.Client, cfg ClientConfig, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{client: client, cfg: cfg, logger: logger}
}

// Download fetches the attachment bytes, retrying transient failures
// with exponential backoff.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	attempts := d.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := backoff(d.cfg, attempt-1)
			d.logger.Debug("retrying download",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		data, retryable, err := d.tryDownload(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("download %s: %w", url, lastErr)
}

func (d *Downloader) tryDownload(ctx context.Context, url string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Server errors and throttling are worth retrying, client
		// errors are not.
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if d.cfg.MaxDownloadBytes > 0 {
		reader = io.LimitReader(resp.Body, d.cfg.MaxDownloadBytes+1)
	}
	data, err = io.ReadAll(reader)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	if d.cfg.MaxDownloadBytes > 0 && int64(len(data)) > d.cfg.MaxDownloadBytes {
		return nil, false, fmt.Errorf("attachment exceeds %d byte cap", d.cfg.MaxDownloadBytes)
	}
	if len(data) == 0 {
		return nil, true, fmt.Errorf("empty response body")
	}
	return data, false, nil
}
