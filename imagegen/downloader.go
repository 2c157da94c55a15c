package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HydroGest/lmarena/core"
)

// ErrTooLarge is returned when a download exceeds the size limit.
var ErrTooLarge = errors.New("imagegen: image exceeds size limit")

// Downloader fetches the images users point at.
//
// Thread Safety: Downloader is safe for concurrent use.
// Each download creates its own HTTP request.
type Downloader struct {
	client  *http.Client
	maxSize int64
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is the HTTP client for downloads (optional)
	// If nil, a default client will be created
	HTTPClient *http.Client

	// MaxSize caps each download in bytes. Default: 20 MiB
	MaxSize int64

	// Timeout for download operations
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultDownloaderConfig returns sensible defaults for downloading images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		MaxSize: 20 * core.BytesPerMB,
		Timeout: 30 * time.Second,
	}
}

// NewDownloader creates a downloader using the TLS settings, size limit and
// timeout from cfg.
//
// Example:
//
//	downloader, err := NewDownloader(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data, mime, err := downloader.DownloadBytes(ctx, imageURL)
func NewDownloader(cfg *core.Config) (*Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewDownloaderWithConfig(DownloaderConfig{
		HTTPClient: core.GetHTTPClient(cfg, cfg.DownloadTimeout),
		MaxSize:    cfg.MaxFileSize,
	}), nil
}

// NewDownloaderWithConfig creates a downloader with explicit configuration.
// This is useful for testing or when you need fine-grained control.
func NewDownloaderWithConfig(cfg DownloaderConfig) *Downloader {
	defaults := DefaultDownloaderConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaults.MaxSize
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Downloader{
		client:  httpClient,
		maxSize: cfg.MaxSize,
	}
}

// DownloadBytes returns the bytes and MIME type behind source.
//
// Inline sources (data: and base64://) are decoded without any network
// access. For HTTP sources the MIME type comes from Content-Type, or is
// sniffed when the server sends none or a generic one.
func (d *Downloader) DownloadBytes(ctx context.Context, source string) ([]byte, string, error) {
	if source == "" {
		return nil, "", fmt.Errorf("imagegen: URL cannot be empty")
	}

	if IsInlineSource(source) {
		mime, data, err := DecodeInline(source)
		if err != nil {
			return nil, "", err
		}
		if int64(len(data)) > d.maxSize {
			return nil, "", fmt.Errorf("%w: %s", ErrTooLarge, core.FormatBytes(int64(len(data))))
		}
		return data, mime, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxSize {
		return nil, "", fmt.Errorf("%w: %s", ErrTooLarge, core.FormatBytes(resp.ContentLength))
	}

	// Read one byte past the limit to detect oversized bodies without a
	// Content-Length.
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, "", fmt.Errorf("%w: more than %s", ErrTooLarge, core.FormatBytes(d.maxSize))
	}

	mime := NormalizeMIME(resp.Header.Get("Content-Type"))
	if !IsImageMIME(mime) {
		mime = SniffMIME(data)
	}
	return data, mime, nil
}

// MaxSize returns the per-download size limit.
func (d *Downloader) MaxSize() int64 {
	return d.maxSize
}
