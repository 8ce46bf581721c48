package scraper

import (
	"strings"

	htm "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

type Parser struct{}

// ToMarkdown converts HTML content to Markdown format.
func (p *Parser) ToMarkdown(htmlString string) (string, error) {
	markdown, err := htm.ConvertString(htmlString)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}

// SelectionToMarkdown converts the inner HTML of the first node in sel.
func (p *Parser) SelectionToMarkdown(sel *goquery.Selection) (string, error) {
	inner, err := sel.First().Html()
	if err != nil {
		return "", err
	}
	return p.ToMarkdown(inner)
}
