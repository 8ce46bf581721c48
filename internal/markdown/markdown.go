// Package markdown renders a conversation as a Markdown document.
package markdown

import (
	"errors"
	"strings"
	"time"

	"github.com/tesh254/gemd/internal/chat"
)

// Product is the name written after the title and used for model headings.
const Product = "Gemini"

// DateLayout is the long US English date used in the document heading.
const DateLayout = "January 2, 2006"

// Separator is the horizontal rule placed after the heading and between turns.
const Separator = "---"

// ErrEmptyConversation is returned by Convert for a conversation without turns.
var ErrEmptyConversation = errors.New("conversation has no messages")

// Convert renders conv dated now. Callers must not pass an empty conversation.
func Convert(conv chat.Conversation, now time.Time) (string, error) {
	if conv.Empty() {
		return "", ErrEmptyConversation
	}
	return Render(conv, now), nil
}

// Render produces the document. It has no side effects and its output only
// depends on conv and the calendar day of date.
func Render(conv chat.Conversation, date time.Time) string {
	var b strings.Builder

	b.WriteString("# " + conv.Title + " - " + Product + " " + date.Format(DateLayout) + "\n\n")
	b.WriteString(Separator + "\n\n")

	for i, turn := range conv.Messages {
		b.WriteString("## " + turn.Role.Label() + "\n\n")
		b.WriteString(turn.Content + "\n\n")

		if i < len(conv.Messages)-1 {
			b.WriteString(Separator + "\n\n")
		}
	}

	return b.String()
}
