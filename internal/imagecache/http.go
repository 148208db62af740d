package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jbweber/palforge/internal/progress"
)

// HTTPDownloader downloads over HTTP(S).
type HTTPDownloader struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPDownloader returns a downloader with a connect-level timeout. The
// transfer itself is bounded only by the caller's context since cloud images
// are large.
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   30 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
		UserAgent: "palforge",
	}
}

// Download implements Downloader.
func (d *HTTPDownloader) Download(ctx context.Context, url string, dst io.Writer, fn progress.Func) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}

	counter := &progress.Writer{Total: resp.ContentLength, Fn: fn}
	n, err := io.Copy(dst, io.TeeReader(resp.Body, counter))
	if err != nil {
		return fmt.Errorf("transfer interrupted after %s: %w", progress.FormatBytes(n), err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("short transfer: got %d of %d bytes", n, resp.ContentLength)
	}
	return nil
}
