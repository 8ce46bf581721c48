// Package extractor reads a conversation out of a rendered chat page.
//
// Extraction is best effort. Markup is matched against prioritized selector
// lists (see Rules) and the first usable match wins. When no turn can be found
// at all the extractor still returns a conversation: a single user turn saying
// extraction failed, titled after the first meaningful line of the page, so
// the caller gets a visible signal instead of an empty file.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tesh254/gemd/internal/chat"
	"github.com/tesh254/gemd/internal/scraper"
)

// Extractor turns a page into a chat.Conversation.
type Extractor struct {
	rules  Rules
	parser *scraper.Parser
}

// New returns an Extractor for rules. Unset fields fall back to DefaultRules.
func New(rules Rules) *Extractor {
	return &Extractor{
		rules:  rules.WithDefaults(),
		parser: &scraper.Parser{},
	}
}

// Rules returns the effective rules.
func (e *Extractor) Rules() Rules {
	return e.rules
}

// Extract reads the title and turns from page.
func (e *Extractor) Extract(page *scraper.Page) chat.Conversation {
	return e.ExtractDocument(page.Doc)
}

// ExtractDocument reads the title and turns from doc.
func (e *Extractor) ExtractDocument(doc *goquery.Document) chat.Conversation {
	conv := chat.Conversation{
		Title:    e.title(doc),
		Messages: e.messages(doc),
	}

	if len(conv.Messages) == 0 {
		e.fallback(doc, &conv)
	}
	return conv
}

func (e *Extractor) title(doc *goquery.Document) string {
	for _, sel := range e.rules.TitleSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if text := titleCandidate(el); e.acceptTitle(text) {
			return text
		}
	}

	first := doc.Find(strings.Join(e.rules.FirstUserMessage, ", ")).First()
	if first.Length() > 0 {
		if line := scraper.FirstLine(scraper.InnerText(first)); line != "" {
			return scraper.Truncate(line, e.rules.MaxTitleLength)
		}
	}

	return e.rules.DefaultTitle
}

// titleCandidate reads the text of a title element. Inputs carry it in their
// value, rename buttons in their aria-label.
func titleCandidate(el *goquery.Selection) string {
	if text := strings.TrimSpace(el.Text()); text != "" {
		return text
	}
	if value, ok := el.Attr("value"); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if label, ok := el.Attr("aria-label"); ok {
		return strings.TrimSpace(strings.Replace(label, "Rename ", "", 1))
	}
	return ""
}

func (e *Extractor) acceptTitle(text string) bool {
	if text == "" {
		return false
	}
	for _, reject := range e.rules.RejectTitles {
		if text == reject {
			return false
		}
	}
	for _, reject := range e.rules.RejectTitleSubstrings {
		if strings.Contains(text, reject) {
			return false
		}
	}
	return true
}

// claim ties a content element to every container that selected it,
// outermost first.
type claim struct {
	content *goquery.Selection
	chain   []*goquery.Selection
}

// messages collects turns. Container patterns overlap (a list wrapper, the
// turn, the inner message), so each content element is emitted once and its
// role is taken from the innermost container that carries a role marker.
func (e *Extractor) messages(doc *goquery.Document) []chat.Turn {
	containerSel := strings.Join(e.rules.ContainerSelectors, ", ")
	contentSel := strings.Join(e.rules.ContentSelectors, ", ")

	var order []*html.Node
	claims := make(map[*html.Node]*claim)

	doc.Find(containerSel).Each(func(_ int, container *goquery.Selection) {
		content := container.Find(contentSel).First()
		if content.Length() == 0 {
			return
		}
		node := content.Get(0)
		c, ok := claims[node]
		if !ok {
			c = &claim{content: content}
			claims[node] = c
			order = append(order, node)
		}
		c.chain = append(c.chain, container)
	})

	turns := make([]chat.Turn, 0, len(order))
	for _, node := range order {
		c := claims[node]
		if turn, ok := chat.NewTurn(e.role(c.chain), e.render(c.content)); ok {
			turns = append(turns, turn)
		}
	}
	return turns
}

func (e *Extractor) role(chain []*goquery.Selection) chat.Role {
	for i := len(chain) - 1; i >= 0; i-- {
		switch {
		case matches(chain[i], e.rules.UserMarkers):
			return chat.RoleUser
		case matches(chain[i], e.rules.ModelMarkers):
			return chat.RoleModel
		}
	}
	return chat.RoleModel
}

func matches(container *goquery.Selection, markers RoleMarkers) bool {
	for _, sel := range markers.Self {
		if container.Is(sel) {
			return true
		}
	}
	for _, sel := range markers.Descendant {
		if container.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func (e *Extractor) render(content *goquery.Selection) string {
	if e.rules.ContentFormat == FormatMarkdown {
		if md, err := e.parser.SelectionToMarkdown(content); err == nil && strings.TrimSpace(md) != "" {
			return md
		}
	}
	return scraper.InnerText(content)
}

// fallback fills conv when no turn was found. If the page has no line long
// enough to stand in for a title, conv is left empty for the caller to reject.
func (e *Extractor) fallback(doc *goquery.Document, conv *chat.Conversation) {
	text := scraper.InnerText(doc.Find("body").First())
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= e.rules.MinFallbackLineLength {
			continue
		}
		conv.Title = scraper.Truncate(line, e.rules.MaxTitleLength)
		conv.Messages = []chat.Turn{{Role: chat.RoleUser, Content: e.rules.FailureMessage}}
		return
	}
}
