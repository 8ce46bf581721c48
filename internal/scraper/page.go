package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed document together with the address it was rendered at.
type Page struct {
	URL string
	Doc *goquery.Document
}

// NewPage parses body. When pageURL is empty the canonical link or og:url of
// the document is used.
func NewPage(body []byte, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if pageURL == "" {
		pageURL = declaredURL(doc)
	}
	return &Page{URL: pageURL, Doc: doc}, nil
}

// declaredURL returns the URL a saved page says it came from.
func declaredURL(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// Host returns the lower-cased host of the page URL, or "" if it has none.
func (p *Page) Host() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// OnHost reports whether the page lives on one of hosts or a subdomain of one.
func (p *Page) OnHost(hosts []string) bool {
	host := p.Host()
	if host == "" {
		return false
	}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// BodyText returns the rendered text of the document body.
func (p *Page) BodyText() string {
	return InnerText(p.Doc.Find("body").First())
}
