package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/flora/backend/internal/application/media"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxImageSize bounds a downloaded image
const MaxImageSize = 10 << 20

// HTTPDownloader fetches images that still live on their original hosts
type HTTPDownloader struct {
	client *http.Client
}

var _ media.Downloader = (*HTTPDownloader)(nil)

// NewHTTPDownloader creates a downloader with a per-request timeout
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Download returns the body and media type of rawURL
func (d *HTTPDownloader) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(data) > MaxImageSize {
		return nil, "", fmt.Errorf("download %s: image larger than %d bytes", rawURL, MaxImageSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("download %s: not an image (%s)", rawURL, contentType)
	}
	return data, contentType, nil
}
