package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesh254/gemd/internal/scraper"
)

const savedPageHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Gemini</title>
  <link rel="canonical" href="https://gemini.google.com/app/abc123">
</head>
<body><p>Hello there</p></body>
</html>`

func TestLoad_URL(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(savedPageHTML))
	}))
	defer srv.Close()

	s := scraper.New(nil)
	page, err := s.Load(context.Background(), srv.URL+"/app/abc123")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/app/abc123", page.URL)
	assert.Equal(t, scraper.DefaultConfig().UserAgent, gotUA)
	assert.Equal(t, "Hello there", page.BodyText())
}

func TestLoad_URLRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := scraper.New(nil).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTML content")
}

func TestLoad_URLBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := scraper.New(nil).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestLoad_FileUsesCanonicalURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.html")
	require.NoError(t, os.WriteFile(path, []byte(savedPageHTML), 0o600))

	page, err := scraper.New(nil).Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://gemini.google.com/app/abc123", page.URL)
	assert.True(t, page.OnHost([]string{"gemini.google.com"}))
}

func TestLoad_FileWithoutCanonicalURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.html")
	require.NoError(t, os.WriteFile(path, []byte(`<html><body>x</body></html>`), 0o600))

	page, err := scraper.New(nil).Load(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(page.URL, "file://"))
	assert.False(t, page.OnHost([]string{"gemini.google.com"}))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := scraper.New(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.html"))
	require.Error(t, err)
}

func TestLoadReader_ExplicitURLWins(t *testing.T) {
	page, err := scraper.New(nil).LoadReader(strings.NewReader(savedPageHTML), "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "example.com", page.Host())
}

func TestPage_OnHost(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://gemini.google.com/app/1", true},
		{"https://GEMINI.google.com/app/1", true},
		{"https://eu.gemini.google.com/app/1", true},
		{"https://notgemini.google.com/app/1", false},
		{"https://example.com/?q=gemini.google.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p := &scraper.Page{URL: tt.url}
			assert.Equal(t, tt.want, p.OnHost([]string{"gemini.google.com"}))
		})
	}
}

func TestLoadSource(t *testing.T) {
	s := scraper.New(nil)

	page, err := s.LoadSource(context.Background(), scraper.Source{
		Body:    strings.NewReader(`<html><body>x</body></html>`),
		PageURL: "https://gemini.google.com/app/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini.google.com", page.Host())

	path := filepath.Join(t.TempDir(), "chat.html")
	require.NoError(t, os.WriteFile(path, []byte(savedPageHTML), 0o600))
	page, err = s.LoadSource(context.Background(), scraper.Source{Location: path, PageURL: "https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", page.Host())

	assert.Equal(t, "stdin", scraper.Source{Body: strings.NewReader("")}.String())
	assert.Equal(t, path, scraper.Source{Location: path}.String())
}
