// Package chat holds the conversation model shared by extraction, conversion
// and export.
package chat

import "strings"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Label returns the heading used for the role in exported documents.
// Anything that is not a user turn is attributed to the model.
func (r Role) Label() string {
	if r == RoleUser {
		return "User"
	}
	return "Gemini"
}

// Turn is one message attributed to the user or the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the result of an extraction. It only carries plain values so
// it can be serialized and handed across process boundaries.
type Conversation struct {
	Title    string `json:"title"`
	Messages []Turn `json:"messages"`
}

// NewTurn builds a turn from raw text. It reports false when the trimmed text
// is empty.
func NewTurn(role Role, content string) (Turn, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Turn{}, false
	}
	if role != RoleUser {
		role = RoleModel
	}
	return Turn{Role: role, Content: content}, true
}

// Empty reports whether the conversation has no turns.
func (c *Conversation) Empty() bool {
	return c == nil || len(c.Messages) == 0
}
