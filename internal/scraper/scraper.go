// Package scraper loads chat pages and exposes them as queryable documents.
//
// A page can come from a live URL, a saved HTML file, or any reader (stdin, or
// HTML handed over by another process). Whatever the origin, the result is a
// Page carrying the parsed document and the URL the page claims to live at.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds configuration options for the scraper.
type Config struct {
	// UserAgent is the User-Agent header value sent with HTTP requests
	UserAgent string
	// Timeout specifies the maximum duration to wait for an HTTP request to complete
	Timeout time.Duration
	// MaxBodyBytes caps how much of a page is read, from the network or from disk
	MaxBodyBytes int64
}

// DefaultConfig returns a default configuration with reasonable values.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:    "Mozilla/5.0 (compatible; gemd/1.0)",
		Timeout:      10 * time.Second,
		MaxBodyBytes: 32 << 20,
	}
}

// Scraper loads pages.
type Scraper struct {
	// Config contains all the configuration options for this scraper
	Config *Config
	// client is the HTTP client used for making requests
	client *http.Client
}

// New creates a new scraper with the given configuration.
// If config is nil, default configuration will be used.
func New(config *Config) *Scraper {
	if config == nil {
		config = DefaultConfig()
	}

	return &Scraper{
		Config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// IsURL reports whether location should be fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Load reads a page from an http(s) URL or a local file.
func (s *Scraper) Load(ctx context.Context, location string) (*Page, error) {
	if location == "" {
		return nil, errors.New("no page location given")
	}
	if IsURL(location) {
		return s.fetchURL(ctx, location)
	}
	return s.loadFile(location)
}

// Source names where a page comes from. Body, when set, is read instead of
// Location. PageURL overrides the URL the page is considered to live at.
type Source struct {
	Location string
	Body     io.Reader
	PageURL  string
}

// String describes the source for logs and history.
func (src Source) String() string {
	if src.Body != nil {
		if src.PageURL != "" {
			return src.PageURL
		}
		return "stdin"
	}
	return src.Location
}

// LoadSource loads the page described by src.
func (s *Scraper) LoadSource(ctx context.Context, src Source) (*Page, error) {
	var (
		page *Page
		err  error
	)
	if src.Body != nil {
		page, err = s.LoadReader(src.Body, src.PageURL)
	} else {
		page, err = s.Load(ctx, src.Location)
	}
	if err != nil {
		return nil, err
	}
	if src.PageURL != "" {
		page.URL = src.PageURL
	}
	return page, nil
}

// LoadReader parses a page from r. pageURL may be empty, in which case the
// canonical URL declared by the document is used.
func (s *Scraper) LoadReader(r io.Reader, pageURL string) (*Page, error) {
	body, err := io.ReadAll(io.LimitReader(r, s.Config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return NewPage(body, pageURL)
}

func (s *Scraper) loadFile(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	page, err := s.LoadReader(f, "")
	if err != nil {
		return nil, err
	}
	if page.URL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		page.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return page, nil
}

// fetchURL fetches the content of a URL and parses it into a Page.
func (s *Scraper) fetchURL(ctx context.Context, urlStr string) (*Page, error) {
	if _, err := url.Parse(urlStr); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.Config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		return nil, fmt.Errorf("not HTML content: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.Config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page, err := NewPage(body, "")
	if err != nil {
		return nil, err
	}
	// The address we actually fetched wins over whatever the page declares.
	page.URL = resp.Request.URL.String()
	return page, nil
}
