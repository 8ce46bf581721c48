package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blankRuns  = regexp.MustCompile(`[ \t\f\r\n]+`)
	extraLines = regexp.MustCompile(`\n{3,}`)
)

// blockBreaks maps block level elements to the number of line breaks a
// browser renders around them.
var blockBreaks = map[atom.Atom]int{
	atom.P: 2, atom.H1: 2, atom.H2: 2, atom.H3: 2, atom.H4: 2, atom.H5: 2, atom.H6: 2,
	atom.Div: 1, atom.Li: 1, atom.Ul: 1, atom.Ol: 1, atom.Tr: 1, atom.Table: 1,
	atom.Section: 1, atom.Article: 1, atom.Header: 1, atom.Footer: 1, atom.Main: 1,
	atom.Nav: 1, atom.Blockquote: 1, atom.Pre: 1, atom.Dd: 1, atom.Dt: 1, atom.Dl: 1,
	atom.Hr: 1, atom.Figure: 1, atom.Figcaption: 1,
}

var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true, atom.Head: true,
}

// InnerText renders the selection roughly the way a browser's innerText
// does: whitespace collapsed, block elements on their own lines, <br> as a
// newline and <pre> kept verbatim.
func InnerText(sel *goquery.Selection) string {
	r := &textRenderer{}
	for _, n := range sel.Nodes {
		r.walk(n, false)
	}
	return normalize(r.b.String())
}

// textRenderer accumulates text. Adjacent block boundaries do not add up:
// the largest pending break count wins, as in the browser.
type textRenderer struct {
	b       strings.Builder
	pending int
}

func (r *textRenderer) breakLines(n int) {
	if n > r.pending {
		r.pending = n
	}
}

func (r *textRenderer) write(text string) {
	if text == "" {
		return
	}
	if r.pending > 0 && r.b.Len() > 0 {
		r.b.WriteString(strings.Repeat("\n", r.pending))
	}
	r.pending = 0
	r.b.WriteString(text)
}

func (r *textRenderer) atLineStart() bool {
	s := r.b.String()
	return r.pending > 0 || s == "" || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, " ")
}

func (r *textRenderer) walk(n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			r.write(n.Data)
			return
		}
		text := blankRuns.ReplaceAllString(n.Data, " ")
		if r.atLineStart() {
			text = strings.TrimLeft(text, " ")
		}
		r.write(text)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			r.pending = 0
			r.b.WriteString("\n")
			return
		}
	}

	breaks := 0
	if n.Type == html.ElementNode {
		breaks = blockBreaks[n.DataAtom]
	}
	r.breakLines(breaks)
	inPre := pre || n.DataAtom == atom.Pre
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c, inPre)
	}
	r.breakLines(breaks)
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = extraLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// FirstLine returns the first line of text, trimmed.
func FirstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
