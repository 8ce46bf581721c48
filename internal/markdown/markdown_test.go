package markdown_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesh254/gemd/internal/chat"
	"github.com/tesh254/gemd/internal/markdown"
)

var day = time.Date(2025, time.March, 7, 15, 4, 5, 0, time.UTC)

func TestRender_Format(t *testing.T) {
	conv := chat.Conversation{
		Title: "Trip",
		Messages: []chat.Turn{
			{Role: chat.RoleUser, Content: "Hi"},
			{Role: chat.RoleModel, Content: "Hello"},
		},
	}

	want := "# Trip - Gemini March 7, 2025\n\n" +
		"---\n\n" +
		"## User\n\nHi\n\n" +
		"---\n\n" +
		"## Gemini\n\nHello\n\n"

	assert.Equal(t, want, markdown.Render(conv, day))
}

func TestRender_SeparatorCount(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d turns", n), func(t *testing.T) {
			conv := chat.Conversation{Title: "T"}
			for i := 0; i < n; i++ {
				role := chat.RoleUser
				if i%2 == 1 {
					role = chat.RoleModel
				}
				conv.Messages = append(conv.Messages, chat.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
			}

			out := markdown.Render(conv, day)

			assert.True(t, strings.HasPrefix(out, "# "))
			rules := 0
			for _, line := range strings.Split(out, "\n") {
				if line == markdown.Separator {
					rules++
				}
			}
			assert.Equal(t, n, rules, "one leading rule plus n-1 between turns")
			assert.False(t, strings.HasSuffix(strings.TrimSpace(out), markdown.Separator))
		})
	}
}

func TestRender_UnknownRoleIsGemini(t *testing.T) {
	conv := chat.Conversation{Title: "T", Messages: []chat.Turn{{Role: "system", Content: "x"}}}

	assert.Contains(t, markdown.Render(conv, day), "## Gemini\n\nx")
}

func TestConvert_RejectsEmpty(t *testing.T) {
	_, err := markdown.Convert(chat.Conversation{Title: "T"}, day)
	require.ErrorIs(t, err, markdown.ErrEmptyConversation)
}

func TestConvert(t *testing.T) {
	out, err := markdown.Convert(chat.Conversation{Title: "T", Messages: []chat.Turn{{Role: chat.RoleUser, Content: "q"}}}, day)
	require.NoError(t, err)
	assert.Equal(t, "# T - Gemini March 7, 2025\n\n---\n\n## User\n\nq\n\n", out)
}
