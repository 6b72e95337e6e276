// Package media retrieves student submissions referenced by URL: text
// documents for file grading and images for vision grading.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"
)

const (
	defaultMaxBytes  = 10 << 20
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "gradeproxy/1.0"
)

// ErrTooLarge is returned when a body exceeds the configured limit.
var ErrTooLarge = errors.New("response body too large")

// ErrNotImage is returned by FetchImage for non-image content.
var ErrNotImage = errors.New("content is not an image")

// StatusError reports a non-2xx answer from the origin.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// FetcherConfig configures a Fetcher. Zero values select defaults.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Fetcher downloads submission content over HTTP.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
}

// Image is downloaded image content.
type Image struct {
	URL      string
	Data     []byte
	MIMEType string
}

// FetchText returns the document at rawURL as text. HTML documents are
// reduced to their main content and converted to Markdown.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, contentType, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if !isHTML(contentType, body) {
		return string(body), nil
	}

	md, err := htmlToMarkdown(rawURL, string(body))
	if err != nil {
		return "", fmt.Errorf("convert %s to markdown: %w", rawURL, err)
	}
	return md, nil
}

// FetchImage downloads an image and reports its MIME type.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (Image, error) {
	body, contentType, err := f.get(ctx, rawURL)
	if err != nil {
		return Image{}, err
	}

	mime := mediaType(contentType)
	if !strings.HasPrefix(mime, "image/") {
		mime = mediaType(http.DetectContentType(body))
	}
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("fetch %s: %w (%s)", rawURL, ErrNotImage, mime)
	}

	return Image{URL: rawURL, Data: body, MIMEType: mime}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit to tell "exactly max" from "too large".
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("fetch %s: %w (limit %d bytes)", rawURL, ErrTooLarge, f.maxBytes)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isHTML(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	if mt == "text/html" || mt == "application/xhtml+xml" {
		return true
	}
	if mt != "" && mt != "application/octet-stream" && mt != "text/plain" {
		return false
	}
	return mediaType(http.DetectContentType(body)) == "text/html"
}

// htmlToMarkdown prunes page boilerplate when readability finds an article
// and converts the remainder.
func htmlToMarkdown(pageURL, html string) (string, error) {
	content := html
	u, _ := url.Parse(pageURL)
	if article, err := readability.FromReader(strings.NewReader(html), u); err == nil && strings.TrimSpace(article.Content) != "" {
		content = article.Content
	}
	md, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
